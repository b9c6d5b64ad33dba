package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fawkes-platform/smart-alerting/internal/metrics"
	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

// Router fans a non-suppressed group out to notification channels by
// severity tier:
//
//	P0: paging plus both chat channels
//	P1: chat channels
//	P2/P3: mattermost only
//
// Sinks are optional; an unconfigured channel is skipped. Delivery failures
// are logged and never block the remaining channels.
type Router struct {
	catalog EntityCatalog
	logger  logger.Logger

	paging     Sink
	slack      Sink
	mattermost Sink
}

func NewRouter(catalog EntityCatalog, log logger.Logger, paging, slack, mattermost Sink) *Router {
	return &Router{
		catalog:    catalog,
		logger:     log,
		paging:     paging,
		slack:      slack,
		mattermost: mattermost,
	}
}

// Route notifies the channels for the group's tier and returns the names of
// the channels that accepted delivery.
func (r *Router) Route(ctx context.Context, group *models.AlertGroup) []string {
	tier := models.TierForPriority(group.PriorityScore)
	payload := r.buildPayload(ctx, group, tier)

	var sinks []Sink
	switch tier {
	case models.TierP0:
		sinks = []Sink{r.paging, r.slack, r.mattermost}
	case models.TierP1:
		sinks = []Sink{r.slack, r.mattermost}
	default:
		sinks = []Sink{r.mattermost}
	}

	var routed []string
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := r.deliver(ctx, sink, payload); err != nil {
			r.logger.Error("Notification delivery failed",
				"channel", sink.Name(), "group_id", group.ID, "tier", tier, "error", err)
			metrics.NotificationsSent.WithLabelValues(sink.Name(), "false").Inc()
			continue
		}
		metrics.NotificationsSent.WithLabelValues(sink.Name(), "true").Inc()
		routed = append(routed, sink.Name())
	}

	r.logger.Info("Routed alert group",
		"group_id", group.ID, "tier", tier, "priority", group.PriorityScore, "channels", routed)
	return routed
}

func (r *Router) deliver(ctx context.Context, sink Sink, payload *models.NotificationPayload) error {
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return sink.Deliver(dctx, payload)
}

// buildPayload assembles the channel-independent notification: summary line,
// detail text, owners from the catalog and deduplicated runbook links.
func (r *Router) buildPayload(ctx context.Context, group *models.AlertGroup, tier models.Tier) *models.NotificationPayload {
	return &models.NotificationPayload{
		Summary:       summaryLine(group),
		Details:       detailText(group),
		Count:         group.Count,
		PriorityScore: group.PriorityScore,
		Owners:        r.serviceOwners(ctx, group),
		Runbooks:      runbookLinks(group),
		Severity:      tier,
		FirstSeen:     group.FirstSeen,
		LastSeen:      group.LastSeen,
	}
}

// serviceOwners resolves each distinct service to its owning team. Catalog
// misses and failures degrade to an empty owner list.
func (r *Router) serviceOwners(ctx context.Context, group *models.AlertGroup) []string {
	if r.catalog == nil {
		return nil
	}

	var owners []string
	seen := make(map[string]struct{})
	for _, service := range group.Services() {
		owner, err := r.catalog.OwnerOf(ctx, service)
		if err != nil {
			r.logger.Warn("Owner lookup failed", "service", service, "error", err)
			continue
		}
		if owner == "" {
			continue
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	return owners
}

func summaryLine(group *models.AlertGroup) string {
	// Groups decoded from the store may carry no alerts.
	if len(group.Alerts) == 0 {
		return "Unknown alert"
	}
	first := &group.Alerts[0]
	if s := first.Summary(); s != "" {
		return s
	}
	name := first.Alertname()
	if name == "" {
		name = "unknown"
	}
	if group.Count > 1 {
		return fmt.Sprintf("%s (%d alerts)", name, group.Count)
	}
	return name
}

func detailText(group *models.AlertGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Group %s: %d alert", group.ID, group.Count)
	if group.Count != 1 {
		b.WriteString("s")
	}
	if services := group.Services(); len(services) > 0 {
		fmt.Fprintf(&b, " across %s", strings.Join(services, ", "))
	}
	if len(group.Alerts) > 0 {
		if desc := group.Alerts[0].Description(); desc != "" {
			b.WriteString(". ")
			b.WriteString(desc)
		}
	}
	return b.String()
}

func runbookLinks(group *models.AlertGroup) []string {
	var out []string
	seen := make(map[string]struct{})
	for i := range group.Alerts {
		url := group.Alerts[i].RunbookURL()
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}
