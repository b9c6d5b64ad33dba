package models

import "strings"

// Severity is the canonical alert severity scale. The ordering (critical
// highest) and the numeric scores feed priority computation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ParseSeverity normalizes a severity label, tolerating case and common
// synonyms. Unknown values map to medium.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit", "fatal", "page":
		return SeverityCritical
	case "high", "error", "err", "major":
		return SeverityHigh
	case "warning", "warn":
		return SeverityWarning
	case "medium", "moderate":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	case "info", "informational", "none":
		return SeverityInfo
	default:
		return SeverityMedium
	}
}

// Score maps a severity to its priority weight.
func (s Severity) Score() float64 {
	switch s {
	case SeverityCritical:
		return 10.0
	case SeverityHigh:
		return 7.5
	case SeverityWarning:
		return 5.0
	case SeverityMedium:
		return 5.0
	case SeverityLow:
		return 2.5
	case SeverityInfo:
		return 1.0
	default:
		return 5.0
	}
}

// Rank orders severities for comparisons; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityWarning:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Tier is the routing severity tier derived from a group's priority score.
type Tier string

const (
	TierP0 Tier = "P0" // critical: page + chat
	TierP1 Tier = "P1" // high: chat
	TierP2 Tier = "P2" // medium: mattermost only
	TierP3 Tier = "P3" // low: mattermost only
)

// TierForPriority maps a priority score to its routing tier.
func TierForPriority(score float64) Tier {
	switch {
	case score >= 8.0:
		return TierP0
	case score >= 6.0:
		return TierP1
	case score >= 4.0:
		return TierP2
	default:
		return TierP3
	}
}
