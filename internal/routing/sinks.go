package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fawkes-platform/smart-alerting/internal/models"
)

// Sink delivers a notification to one external channel. Implementations make
// exactly one attempt; retries are left to the upstream alert source refiring.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, payload *models.NotificationPayload) error
}

const sinkSource = "fawkes-smart-alerting"

func newSinkClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func postJSON(ctx context.Context, client *http.Client, url string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

// PagerDutySink triggers an incident via the Events API v2.
type PagerDutySink struct {
	routingKey string
	eventsURL  string
	client     *http.Client
}

func NewPagerDutySink(routingKey, eventsURL string) *PagerDutySink {
	return &PagerDutySink{
		routingKey: routingKey,
		eventsURL:  eventsURL,
		client:     newSinkClient(),
	}
}

func (s *PagerDutySink) Name() string { return "pagerduty" }

func (s *PagerDutySink) Deliver(ctx context.Context, p *models.NotificationPayload) error {
	event := map[string]interface{}{
		"routing_key":  s.routingKey,
		"event_action": "trigger",
		"payload": map[string]interface{}{
			"summary":  p.Summary,
			"severity": "critical",
			"source":   sinkSource,
			"custom_details": map[string]interface{}{
				"details":        p.Details,
				"alert_count":    p.Count,
				"priority_score": p.PriorityScore,
				"owners":         p.Owners,
				"runbooks":       p.Runbooks,
			},
		},
	}

	resp, err := postJSON(ctx, s.client, s.eventsURL, event)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("pagerduty returned %d", resp.StatusCode)
	}
	return nil
}

// SlackSink posts an attachment-formatted message to an incoming webhook.
type SlackSink struct {
	webhookURL string
	client     *http.Client
}

func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{webhookURL: webhookURL, client: newSinkClient()}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Deliver(ctx context.Context, p *models.NotificationPayload) error {
	fields := []map[string]interface{}{
		{"title": "Alert Count", "value": fmt.Sprintf("%d", p.Count), "short": true},
		{"title": "Priority Score", "value": fmt.Sprintf("%.2f", p.PriorityScore), "short": true},
		{"title": "Owners", "value": ownersLine(p.Owners), "short": true},
		{"title": "First Seen", "value": p.FirstSeen.UTC().Format(time.RFC3339), "short": true},
	}
	if len(p.Runbooks) > 0 {
		fields = append(fields, map[string]interface{}{
			"title": "Runbooks", "value": strings.Join(p.Runbooks, "\n"), "short": false,
		})
	}

	message := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color":  tierColor(p.Severity),
				"title":  fmt.Sprintf("[%s] %s", p.Severity, p.Summary),
				"text":   p.Details,
				"fields": fields,
			},
		},
	}

	resp, err := postJSON(ctx, s.client, s.webhookURL, message)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

// MattermostSink posts a markdown message to an incoming webhook.
type MattermostSink struct {
	webhookURL string
	client     *http.Client
}

func NewMattermostSink(webhookURL string) *MattermostSink {
	return &MattermostSink{webhookURL: webhookURL, client: newSinkClient()}
}

func (s *MattermostSink) Name() string { return "mattermost" }

func (s *MattermostSink) Deliver(ctx context.Context, p *models.NotificationPayload) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **[%s] %s**\n\n", tierEmoji(p.Severity), p.Severity, p.Summary)
	if p.Details != "" {
		fmt.Fprintf(&b, "%s\n\n", p.Details)
	}
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Alert Count | %d |\n", p.Count)
	fmt.Fprintf(&b, "| Priority Score | %.2f |\n", p.PriorityScore)
	fmt.Fprintf(&b, "| Owners | %s |\n", ownersLine(p.Owners))
	fmt.Fprintf(&b, "| First Seen | %s |\n", p.FirstSeen.UTC().Format(time.RFC3339))
	for _, rb := range p.Runbooks {
		fmt.Fprintf(&b, "\n[Runbook](%s)", rb)
	}

	message := map[string]interface{}{
		"username": "Fawkes Smart Alerting",
		"icon_url": "",
		"text":     b.String(),
	}

	resp, err := postJSON(ctx, s.client, s.webhookURL, message)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned %d", resp.StatusCode)
	}
	return nil
}

func ownersLine(owners []string) string {
	if len(owners) == 0 {
		return "unassigned"
	}
	return strings.Join(owners, ", ")
}

func tierColor(t models.Tier) string {
	switch t {
	case models.TierP0:
		return "danger"
	case models.TierP1:
		return "warning"
	case models.TierP2:
		return "good"
	default:
		return "#808080"
	}
}

func tierEmoji(t models.Tier) string {
	switch t {
	case models.TierP0:
		return ":rotating_light:"
	case models.TierP1:
		return ":warning:"
	case models.TierP2:
		return ":information_source:"
	default:
		return ":memo:"
	}
}
