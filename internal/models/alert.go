package models

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Alert is a single firing condition observed at a point in time. Labels and
// annotations are open string maps; recognized keys have accessors below so
// sources can add keys without ingest changes.
type Alert struct {
	ID           string            `json:"id"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations,omitempty"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       *time.Time        `json:"endsAt,omitempty"`
	Status       string            `json:"status"`
	GeneratorURL string            `json:"generatorURL,omitempty"`
	Fingerprint  string            `json:"fingerprint,omitempty"`

	Acknowledged   bool       `json:"acknowledged,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

const (
	StatusFiring   = "firing"
	StatusResolved = "resolved"
)

func (a *Alert) Alertname() string {
	return a.Labels["alertname"]
}

func (a *Alert) Service() string {
	return a.Labels["service"]
}

// SeverityLabel returns the raw severity label, defaulted to "medium".
func (a *Alert) SeverityLabel() string {
	if s, ok := a.Labels["severity"]; ok && s != "" {
		return s
	}
	return "medium"
}

func (a *Alert) Namespace() string {
	return a.Labels["namespace"]
}

func (a *Alert) Pod() string {
	return a.Labels["pod"]
}

func (a *Alert) Summary() string {
	return a.Annotations["summary"]
}

func (a *Alert) Description() string {
	return a.Annotations["description"]
}

func (a *Alert) RunbookURL() string {
	return a.Annotations["runbook_url"]
}

// ComputeFingerprint derives the stable duplicate-detection hash: MD5 of the
// JSON-serialized labels map. encoding/json writes map keys in sorted order,
// which keeps the hash canonical.
func (a *Alert) ComputeFingerprint() string {
	b, err := json.Marshal(a.Labels)
	if err != nil {
		b = []byte("{}")
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// EffectiveFingerprint returns the supplied fingerprint or computes one.
func (a *Alert) EffectiveFingerprint() string {
	if a.Fingerprint != "" {
		return a.Fingerprint
	}
	return a.ComputeFingerprint()
}

// AlertGroup is the unit of correlation and the subject of suppression and
// routing. Its id is deterministic from the grouping key so later bursts of
// the same key reattach to the same group while it is live.
type AlertGroup struct {
	ID                string    `json:"id"`
	GroupingKey       string    `json:"grouping_key"`
	Alerts            []Alert   `json:"alerts"`
	Count             int       `json:"count"`
	PriorityScore     float64   `json:"priority_score"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
	Suppressed        bool      `json:"suppressed"`
	SuppressionReason string    `json:"suppression_reason,omitempty"`
	RoutedTo          []string  `json:"routed_to,omitempty"`
}

// Services returns the distinct non-empty service labels across the group.
func (g *AlertGroup) Services() []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range g.Alerts {
		s := g.Alerts[i].Service()
		if s == "" {
			continue
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Pods returns the distinct non-empty pod labels across the group.
func (g *AlertGroup) Pods() []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range g.Alerts {
		p := g.Alerts[i].Pod()
		if p == "" {
			continue
		}
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// PrometheusWebhookPayload is the Alertmanager webhook body. Common labels
// and annotations are merged into each alert during normalization.
type PrometheusWebhookPayload struct {
	Alerts            []Alert           `json:"alerts"`
	Status            string            `json:"status"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
}

// NotificationPayload is the uniform shape handed to every sink; each sink
// formats it per its own wire protocol.
type NotificationPayload struct {
	Summary       string    `json:"summary"`
	Details       string    `json:"details"`
	Count         int       `json:"count"`
	PriorityScore float64   `json:"priority_score"`
	Owners        []string  `json:"owners"`
	Runbooks      []string  `json:"runbooks"`
	Severity      Tier      `json:"severity"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}
