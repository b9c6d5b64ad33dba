package models

import "time"

// Suppression rule kinds. Unknown kinds are skipped with a warning.
const (
	RuleTypeMaintenanceWindow = "maintenance_window"
	RuleTypeKnownIssue        = "known_issue"
	RuleTypeFlapping          = "flapping"
	RuleTypeCascade           = "cascade"
	RuleTypeTimeBased         = "time_based"
)

// SuppressionRule is a declarative predicate that may mark a group not to
// route. One document per YAML file on disk; also created via the API.
// Selector fields are shared; the remaining fields are per-type.
type SuppressionRule struct {
	ID      string `json:"id" yaml:"id,omitempty"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Enabled *bool  `json:"enabled" yaml:"enabled,omitempty"`

	// Shared selectors
	AlertPattern     string     `json:"alert_pattern,omitempty" yaml:"alert_pattern,omitempty"`
	Services         []string   `json:"services,omitempty" yaml:"services,omitempty"`
	SuppressSeverity []string   `json:"suppress_severity,omitempty" yaml:"suppress_severity,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`

	// maintenance_window
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Duration int    `json:"duration,omitempty" yaml:"duration,omitempty"` // seconds

	// known_issue
	TicketURL string `json:"ticket_url,omitempty" yaml:"ticket_url,omitempty"`

	// flapping
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Window    int `json:"window,omitempty" yaml:"window,omitempty"` // seconds

	// cascade
	RootCauseAlert   string   `json:"root_cause_alert,omitempty" yaml:"root_cause_alert,omitempty"`
	DependentAlerts  []string `json:"dependent_alerts,omitempty" yaml:"dependent_alerts,omitempty"`
	SuppressDuration int      `json:"suppress_duration,omitempty" yaml:"suppress_duration,omitempty"` // seconds

	// time_based
	SuppressHours []int    `json:"suppress_hours,omitempty" yaml:"suppress_hours,omitempty"`
	SuppressDays  []string `json:"suppress_days,omitempty" yaml:"suppress_days,omitempty"`

	// FilePath records which file a disk rule came from. Diagnostics only.
	FilePath string `json:"-" yaml:"-"`
}

// IsEnabled treats a missing enabled field as true, matching rule documents
// that only set it to opt out.
func (r *SuppressionRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}
