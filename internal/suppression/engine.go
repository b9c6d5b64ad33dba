package suppression

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

const (
	flappingKeyPrefix = "flapping:"
	cascadeKeyPrefix  = "cascade:root_cause:"

	defaultCascadeSuppress = 30 * time.Minute
)

// Engine evaluates every enabled rule against a freshly correlated group.
// Rules run in load order and the first match wins; a rule that errors is
// logged and treated as non-matching so one bad rule cannot black-hole
// notifications.
type Engine struct {
	kv     cache.KVStore
	store  *RuleStore
	logger logger.Logger

	flappingThreshold int
	flappingWindow    time.Duration

	now func() time.Time
}

func NewEngine(kv cache.KVStore, store *RuleStore, log logger.Logger, flappingThreshold int, flappingWindow time.Duration) *Engine {
	return &Engine{
		kv:                kv,
		store:             store,
		logger:            log,
		flappingThreshold: flappingThreshold,
		flappingWindow:    flappingWindow,
		now:               time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ShouldSuppress reports whether the group matches any active rule, along
// with a human-readable reason of the form "{type}: {rule name}".
func (e *Engine) ShouldSuppress(ctx context.Context, group *models.AlertGroup) (bool, string) {
	for _, rule := range e.store.List() {
		if !rule.IsEnabled() {
			continue
		}

		var (
			matched bool
			err     error
		)
		switch rule.Type {
		case models.RuleTypeMaintenanceWindow:
			matched, err = e.checkMaintenanceWindow(rule, group)
		case models.RuleTypeKnownIssue:
			matched, err = e.checkKnownIssue(rule, group)
		case models.RuleTypeFlapping:
			matched, err = e.checkFlapping(ctx, rule, group)
		case models.RuleTypeCascade:
			matched, err = e.checkCascade(ctx, rule, group)
		case models.RuleTypeTimeBased:
			matched, err = e.checkTimeBased(rule, group)
		default:
			e.logger.Warn("Unknown suppression rule type", "rule", rule.Name, "type", rule.Type)
			continue
		}

		if err != nil {
			e.logger.Error("Suppression rule evaluation failed",
				"rule", rule.Name, "type", rule.Type, "error", err)
			continue
		}
		if matched {
			return true, fmt.Sprintf("%s: %s", rule.Type, rule.Name)
		}
	}
	return false, ""
}

// checkMaintenanceWindow matches when now falls inside [last cron fire,
// last fire + duration) and the group touches the rule's services and
// severities.
func (e *Engine) checkMaintenanceWindow(rule *models.SuppressionRule, group *models.AlertGroup) (bool, error) {
	if rule.Schedule == "" {
		return false, fmt.Errorf("maintenance_window rule needs schedule")
	}
	sched, err := cron.ParseStandard(rule.Schedule)
	if err != nil {
		return false, fmt.Errorf("parse schedule %q: %w", rule.Schedule, err)
	}

	duration := time.Duration(rule.Duration) * time.Second
	if rule.Duration <= 0 {
		duration = time.Hour
	}

	now := e.now()
	last, ok := prevFire(sched, now)
	if !ok {
		return false, nil
	}
	if now.Sub(last) >= duration {
		return false, nil
	}

	for i := range group.Alerts {
		if matchesSelectors(rule, &group.Alerts[i]) {
			return true, nil
		}
	}
	return false, nil
}

// prevFire finds the most recent schedule fire at or before now by scanning
// forward from progressively longer lookbacks. cron.Schedule only exposes
// Next, so we walk it.
func prevFire(sched cron.Schedule, now time.Time) (time.Time, bool) {
	lookbacks := []time.Duration{
		24 * time.Hour,
		7 * 24 * time.Hour,
		35 * 24 * time.Hour,
		366 * 24 * time.Hour,
	}
	for _, back := range lookbacks {
		t := now.Add(-back)
		var last time.Time
		for {
			next := sched.Next(t)
			if next.IsZero() || next.After(now) {
				break
			}
			last = next
			t = next
		}
		if !last.IsZero() {
			return last, true
		}
	}
	return time.Time{}, false
}

// checkKnownIssue matches unexpired rules whose pattern matches an alertname
// in the group. A services selector restricts the match to alerts from those
// services.
func (e *Engine) checkKnownIssue(rule *models.SuppressionRule, group *models.AlertGroup) (bool, error) {
	if rule.ExpiresAt != nil && !e.now().Before(*rule.ExpiresAt) {
		return false, nil
	}
	if rule.AlertPattern == "" {
		return false, fmt.Errorf("known_issue rule needs alert_pattern")
	}
	for i := range group.Alerts {
		if len(rule.Services) > 0 && !containsFold(rule.Services, group.Alerts[i].Service()) {
			continue
		}
		matched, err := matchPattern(rule.AlertPattern, group.Alerts[i].Alertname())
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// checkFlapping records this evaluation in the group's sliding occurrence
// window and matches once the window holds at least threshold entries.
func (e *Engine) checkFlapping(ctx context.Context, rule *models.SuppressionRule, group *models.AlertGroup) (bool, error) {
	threshold := rule.Threshold
	if threshold <= 0 {
		threshold = e.flappingThreshold
	}
	window := e.flappingWindow
	if rule.Window > 0 {
		window = time.Duration(rule.Window) * time.Second
	}

	now := e.now()
	key := flappingKeyPrefix + group.GroupingKey
	cutoff := float64(now.Add(-window).UnixNano()) / float64(time.Second)
	score := float64(now.UnixNano()) / float64(time.Second)

	if err := e.kv.ZRemRangeByScore(ctx, key, 0, cutoff); err != nil {
		return false, err
	}
	member := strconv.FormatInt(now.UnixNano(), 10)
	if err := e.kv.ZAdd(ctx, key, score, member); err != nil {
		return false, err
	}
	if err := e.kv.Expire(ctx, key, 2*window); err != nil {
		return false, err
	}

	count, err := e.kv.ZCard(ctx, key)
	if err != nil {
		return false, err
	}
	if count < int64(threshold) {
		return false, nil
	}

	// An unscoped flapping rule applies to every group.
	if rule.AlertPattern == "" {
		return true, nil
	}
	for i := range group.Alerts {
		matched, err := matchPattern(rule.AlertPattern, group.Alerts[i].Alertname())
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// checkCascade suppresses dependent alerts while the root-cause alert has
// fired recently. Groups containing the root itself are never suppressed;
// seeing the root refreshes the active marker.
func (e *Engine) checkCascade(ctx context.Context, rule *models.SuppressionRule, group *models.AlertGroup) (bool, error) {
	if rule.RootCauseAlert == "" || len(rule.DependentAlerts) == 0 {
		return false, fmt.Errorf("cascade rule needs root_cause_alert and dependent_alerts")
	}

	suppressFor := defaultCascadeSuppress
	if rule.SuppressDuration > 0 {
		suppressFor = time.Duration(rule.SuppressDuration) * time.Second
	}

	for i := range group.Alerts {
		if group.Alerts[i].Alertname() == rule.RootCauseAlert {
			key := cascadeKeyPrefix + rule.RootCauseAlert
			if err := e.kv.SetEx(ctx, key, "active", suppressFor); err != nil {
				return false, err
			}
			return false, nil
		}
	}

	_, err := e.kv.Get(ctx, cascadeKeyPrefix+rule.RootCauseAlert)
	if err == cache.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for i := range group.Alerts {
		name := group.Alerts[i].Alertname()
		for _, dep := range rule.DependentAlerts {
			if name == dep {
				return true, nil
			}
		}
	}
	return false, nil
}

// checkTimeBased matches low-urgency severities during quiet hours or days.
// Hours and days are independent triggers: landing in either is enough. An
// empty severity list defaults to low and info so a misconfigured rule
// cannot silence pages.
func (e *Engine) checkTimeBased(rule *models.SuppressionRule, group *models.AlertGroup) (bool, error) {
	now := e.now()

	inQuietTime := containsInt(rule.SuppressHours, now.Hour()) ||
		containsFold(rule.SuppressDays, now.Weekday().String())
	if !inQuietTime {
		return false, nil
	}

	severities := rule.SuppressSeverity
	if len(severities) == 0 {
		severities = []string{"low", "info"}
	}
	for i := range group.Alerts {
		if containsFold(severities, group.Alerts[i].SeverityLabel()) {
			return true, nil
		}
	}
	return false, nil
}

// matchesSelectors applies the shared services and severity selectors; an
// empty selector matches everything.
func matchesSelectors(rule *models.SuppressionRule, alert *models.Alert) bool {
	if len(rule.Services) > 0 && !containsFold(rule.Services, alert.Service()) {
		return false
	}
	if len(rule.SuppressSeverity) > 0 && !containsFold(rule.SuppressSeverity, alert.SeverityLabel()) {
		return false
	}
	return true
}

// matchPattern anchors the regexp at the start of the name, so patterns act
// as prefixes unless they opt into wider matching.
func matchPattern(pattern, name string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	loc := re.FindStringIndex(name)
	return loc != nil && loc[0] == 0, nil
}

func containsInt(list []int, n int) bool {
	for _, x := range list {
		if x == n {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}
