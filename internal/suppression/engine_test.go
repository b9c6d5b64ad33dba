package suppression

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

type engineFixture struct {
	engine *Engine
	store  *RuleStore
	clock  *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newEngineFixture(t *testing.T, start time.Time) *engineFixture {
	t.Helper()
	clock := &fakeClock{t: start}
	kv := cache.NewMemoryStoreWithClock(clock.now)
	store := NewRuleStore(t.TempDir(), logger.NewNop())
	engine := NewEngine(kv, store, logger.NewNop(), 3, 10*time.Minute).WithClock(clock.now)
	return &engineFixture{engine: engine, store: store, clock: clock}
}

func groupWith(service, alertname, severity string) *models.AlertGroup {
	a := models.Alert{
		ID: "a1",
		Labels: map[string]string{
			"service":   service,
			"alertname": alertname,
			"severity":  severity,
		},
		Status: models.StatusFiring,
	}
	return &models.AlertGroup{
		ID:          "group-test",
		GroupingKey: service + ":" + alertname + ":" + severity,
		Alerts:      []models.Alert{a},
		Count:       1,
	}
}

func boolPtr(b bool) *bool { return &b }

func TestNoRulesNoSuppression(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("api", "HighCPU", "critical"))
	assert.False(t, suppressed)
	assert.Empty(t, reason)
}

func TestDisabledRuleIgnored(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:         "disabled-known-issue",
		Type:         models.RuleTypeKnownIssue,
		Enabled:      boolPtr(false),
		AlertPattern: "HighCPU",
	})

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("api", "HighCPU", "critical"))
	assert.False(t, suppressed)
}

func TestUnknownRuleTypeSkipped(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{Name: "weird", Type: "quantum"})

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("api", "HighCPU", "critical"))
	assert.False(t, suppressed)
}

func TestMaintenanceWindowSuppressesDuringWindow(t *testing.T) {
	// Daily window at 02:00 for one hour; it is 02:30.
	f := newEngineFixture(t, time.Date(2026, 8, 1, 2, 30, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:     "nightly-db-maintenance",
		Type:     models.RuleTypeMaintenanceWindow,
		Schedule: "0 2 * * *",
		Duration: 3600,
		Services: []string{"postgres"},
	})

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("postgres", "ConnRefused", "critical"))
	assert.True(t, suppressed)
	assert.Equal(t, "maintenance_window: nightly-db-maintenance", reason)

	// Other services are unaffected.
	suppressed, _ = f.engine.ShouldSuppress(context.Background(), groupWith("api", "ConnRefused", "critical"))
	assert.False(t, suppressed)
}

func TestMaintenanceWindowExpires(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 3, 30, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:     "nightly-db-maintenance",
		Type:     models.RuleTypeMaintenanceWindow,
		Schedule: "0 2 * * *",
		Duration: 3600,
	})

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("postgres", "ConnRefused", "critical"))
	assert.False(t, suppressed)
}

func TestKnownIssueMatchesPattern(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:         "flaky-healthcheck",
		Type:         models.RuleTypeKnownIssue,
		AlertPattern: "HealthCheck.*",
	})

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("api", "HealthCheckTimeout", "warning"))
	assert.True(t, suppressed)
	assert.Equal(t, "known_issue: flaky-healthcheck", reason)

	// Pattern is anchored at the start of the name.
	suppressed, _ = f.engine.ShouldSuppress(context.Background(), groupWith("api", "UpstreamHealthCheck", "warning"))
	assert.False(t, suppressed)
}

func TestKnownIssueServiceScope(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:         "other-disk-full",
		Type:         models.RuleTypeKnownIssue,
		AlertPattern: "DiskFull",
		Services:     []string{"other-service"},
	})

	// A matching pattern on an out-of-scope service must not suppress.
	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("web", "DiskFull", "warning"))
	assert.False(t, suppressed)

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("other-service", "DiskFull", "warning"))
	assert.True(t, suppressed)
	assert.Equal(t, "known_issue: other-disk-full", reason)
}

func TestKnownIssueExpires(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, start)
	expiry := start.Add(time.Hour)
	f.store.Add(&models.SuppressionRule{
		Name:         "temporary",
		Type:         models.RuleTypeKnownIssue,
		AlertPattern: "HighCPU",
		ExpiresAt:    &expiry,
	})

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("api", "HighCPU", "warning"))
	assert.True(t, suppressed)

	f.clock.advance(2 * time.Hour)
	suppressed, _ = f.engine.ShouldSuppress(context.Background(), groupWith("api", "HighCPU", "warning"))
	assert.False(t, suppressed)
}

func TestFlappingSuppressesAfterThreshold(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:      "flap-detector",
		Type:      models.RuleTypeFlapping,
		Threshold: 3,
		Window:    600,
	})
	group := groupWith("api", "PodRestart", "warning")

	for i := 0; i < 2; i++ {
		suppressed, _ := f.engine.ShouldSuppress(context.Background(), group)
		assert.False(t, suppressed, "evaluation %d should not suppress", i+1)
		f.clock.advance(time.Minute)
	}

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), group)
	assert.True(t, suppressed)
	assert.Equal(t, "flapping: flap-detector", reason)
}

func TestFlappingWindowSlides(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:      "flap-detector",
		Type:      models.RuleTypeFlapping,
		Threshold: 3,
		Window:    600,
	})
	group := groupWith("api", "PodRestart", "warning")

	// Two occurrences, then a gap longer than the window.
	for i := 0; i < 2; i++ {
		f.engine.ShouldSuppress(context.Background(), group)
		f.clock.advance(time.Minute)
	}
	f.clock.advance(11 * time.Minute)

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), group)
	assert.False(t, suppressed)
}

func TestCascadeSuppressesDependents(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:             "db-cascade",
		Type:             models.RuleTypeCascade,
		RootCauseAlert:   "DatabaseDown",
		DependentAlerts:  []string{"APIErrors", "QueueBacklog"},
		SuppressDuration: 1800,
	})

	// Root fires: never suppressed, marker recorded.
	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("db", "DatabaseDown", "critical"))
	assert.False(t, suppressed)

	// Dependent within the cascade window is suppressed.
	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("api", "APIErrors", "high"))
	assert.True(t, suppressed)
	assert.Equal(t, "cascade: db-cascade", reason)

	// Unrelated alerts are untouched.
	suppressed, _ = f.engine.ShouldSuppress(context.Background(), groupWith("web", "HighLatency", "high"))
	assert.False(t, suppressed)
}

func TestCascadeMarkerExpires(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:             "db-cascade",
		Type:             models.RuleTypeCascade,
		RootCauseAlert:   "DatabaseDown",
		DependentAlerts:  []string{"APIErrors"},
		SuppressDuration: 1800,
	})

	f.engine.ShouldSuppress(context.Background(), groupWith("db", "DatabaseDown", "critical"))
	f.clock.advance(31 * time.Minute)

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("api", "APIErrors", "high"))
	assert.False(t, suppressed)
}

func TestCascadeWithoutRootDoesNotSuppress(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:            "db-cascade",
		Type:            models.RuleTypeCascade,
		RootCauseAlert:  "DatabaseDown",
		DependentAlerts: []string{"APIErrors"},
	})

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("api", "APIErrors", "high"))
	assert.False(t, suppressed)
}

func TestTimeBasedSuppressesQuietHours(t *testing.T) {
	// Saturday 02:00 UTC.
	f := newEngineFixture(t, time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:             "weekend-nights",
		Type:             models.RuleTypeTimeBased,
		SuppressHours:    []int{0, 1, 2, 3, 4, 5},
		SuppressDays:     []string{"saturday", "sunday"},
		SuppressSeverity: []string{"low", "info"},
	})

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("api", "DiskSlow", "low"))
	assert.True(t, suppressed)
	assert.Equal(t, "time_based: weekend-nights", reason)

	// High urgency passes through regardless.
	suppressed, _ = f.engine.ShouldSuppress(context.Background(), groupWith("api", "DiskSlow", "critical"))
	assert.False(t, suppressed)
}

func TestTimeBasedOutsideWindow(t *testing.T) {
	// Saturday 12:00, outside the configured hours and days.
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:          "weekday-nights",
		Type:          models.RuleTypeTimeBased,
		SuppressHours: []int{0, 1, 2, 3},
		SuppressDays:  []string{"monday"},
	})

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("api", "DiskSlow", "low"))
	assert.False(t, suppressed)
}

func TestTimeBasedDayMatchesWithoutHourMatch(t *testing.T) {
	// Sunday 14:00. Hours and days are independent triggers, so the day
	// alone is enough even though 14 is not a quiet hour.
	f := newEngineFixture(t, time.Date(2026, 8, 2, 14, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:             "quiet-sundays",
		Type:             models.RuleTypeTimeBased,
		SuppressHours:    []int{3},
		SuppressDays:     []string{"sunday"},
		SuppressSeverity: []string{"low"},
	})

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("api", "DiskSlow", "low"))
	assert.True(t, suppressed)
	assert.Equal(t, "time_based: quiet-sundays", reason)
}

func TestTimeBasedHourMatchesWithoutDayMatch(t *testing.T) {
	// Saturday 03:00 against a rule listing only Monday but hour 3.
	f := newEngineFixture(t, time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:          "night-hours",
		Type:          models.RuleTypeTimeBased,
		SuppressHours: []int{3},
		SuppressDays:  []string{"monday"},
	})

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("api", "DiskSlow", "low"))
	assert.True(t, suppressed)
}

func TestFirstMatchingRuleWins(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:         "first",
		Type:         models.RuleTypeKnownIssue,
		AlertPattern: "HighCPU",
	})
	f.store.Add(&models.SuppressionRule{
		Name:         "second",
		Type:         models.RuleTypeKnownIssue,
		AlertPattern: "High.*",
	})

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("api", "HighCPU", "warning"))
	assert.True(t, suppressed)
	assert.Equal(t, "known_issue: first", reason)
}

func TestBadRuleDoesNotBlockOthers(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:         "broken-regex",
		Type:         models.RuleTypeKnownIssue,
		AlertPattern: "([unclosed",
	})
	f.store.Add(&models.SuppressionRule{
		Name:         "working",
		Type:         models.RuleTypeKnownIssue,
		AlertPattern: "HighCPU",
	})

	suppressed, reason := f.engine.ShouldSuppress(context.Background(), groupWith("api", "HighCPU", "warning"))
	assert.True(t, suppressed)
	assert.Equal(t, "known_issue: working", reason)
}

func TestMaintenanceWindowDefaultDuration(t *testing.T) {
	// No duration configured: the window runs for one hour.
	f := newEngineFixture(t, time.Date(2026, 8, 1, 2, 30, 0, 0, time.UTC))
	f.store.Add(&models.SuppressionRule{
		Name:     "nightly",
		Type:     models.RuleTypeMaintenanceWindow,
		Schedule: "0 2 * * *",
	})

	suppressed, _ := f.engine.ShouldSuppress(context.Background(), groupWith("postgres", "ConnRefused", "critical"))
	assert.True(t, suppressed)

	f.clock.advance(time.Hour)
	suppressed, _ = f.engine.ShouldSuppress(context.Background(), groupWith("postgres", "ConnRefused", "critical"))
	assert.False(t, suppressed)
}

func TestMaintenanceWindowWeeklySchedule(t *testing.T) {
	// Sunday 02:30 against a Sunday 02:00 weekly window.
	f2 := newEngineFixture(t, time.Date(2026, 8, 2, 2, 30, 0, 0, time.UTC))
	f2.store.Add(&models.SuppressionRule{
		Name:     "weekly",
		Type:     models.RuleTypeMaintenanceWindow,
		Schedule: "0 2 * * 0",
		Duration: 3600,
	})
	suppressed, _ := f2.engine.ShouldSuppress(context.Background(), groupWith("api", "X", "low"))
	require.True(t, suppressed)
}
