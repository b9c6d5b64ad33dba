package correlation

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

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCorrelator(t *testing.T) (*Correlator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	kv := cache.NewMemoryStoreWithClock(clock.now)
	c := New(kv, logger.NewNop(), 5*time.Minute, 100).WithClock(clock.now)
	return c, clock
}

func alert(id, service, name, severity, fingerprint string) models.Alert {
	return models.Alert{
		ID: id,
		Labels: map[string]string{
			"service":   service,
			"alertname": name,
			"severity":  severity,
		},
		Status:      models.StatusFiring,
		Fingerprint: fingerprint,
	}
}

func TestGroupingKeyDefaults(t *testing.T) {
	a := models.Alert{Labels: map[string]string{}}
	assert.Equal(t, "unknown:unknown:medium", GroupingKey(&a))

	b := alert("1", "api", "HighCPU", "critical", "f1")
	assert.Equal(t, "api:HighCPU:critical", GroupingKey(&b))
}

func TestGroupIDDeterministic(t *testing.T) {
	id1 := GroupID("api:HighCPU:critical")
	id2 := GroupID("api:HighCPU:critical")
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 8)
	assert.NotEqual(t, id1, GroupID("api:HighCPU:warning"))
}

func TestCorrelateCreatesGroupPerKey(t *testing.T) {
	c, _ := newTestCorrelator(t)
	ctx := context.Background()

	groups, err := c.Correlate(ctx, []models.Alert{
		alert("1", "api", "HighCPU", "critical", "f1"),
		alert("2", "api", "HighCPU", "critical", "f2"),
		alert("3", "db", "DiskFull", "warning", "f3"),
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "api:HighCPU:critical", groups[0].GroupingKey)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "db:DiskFull:warning", groups[1].GroupingKey)
	assert.Equal(t, 1, groups[1].Count)
}

func TestCorrelateMergesWithinWindow(t *testing.T) {
	c, clock := newTestCorrelator(t)
	ctx := context.Background()

	first, err := c.Correlate(ctx, []models.Alert{alert("1", "api", "HighCPU", "critical", "f1")})
	require.NoError(t, err)

	clock.advance(2 * time.Minute)
	second, err := c.Correlate(ctx, []models.Alert{alert("2", "api", "HighCPU", "critical", "f2")})
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].Count)
	assert.Equal(t, first[0].FirstSeen, second[0].FirstSeen)
	assert.True(t, second[0].LastSeen.After(second[0].FirstSeen))
}

func TestCorrelateDeduplicatesByFingerprint(t *testing.T) {
	c, clock := newTestCorrelator(t)
	ctx := context.Background()

	batch := []models.Alert{
		alert("1", "api", "HighCPU", "critical", "f1"),
		alert("2", "api", "HighCPU", "critical", "f2"),
	}
	_, err := c.Correlate(ctx, batch)
	require.NoError(t, err)

	clock.advance(time.Minute)
	resent := []models.Alert{
		alert("3", "api", "HighCPU", "critical", "f1"),
		alert("4", "api", "HighCPU", "critical", "f2"),
	}
	groups, err := c.Correlate(ctx, resent)
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Count)
	// First occurrences survive.
	assert.Equal(t, "1", groups[0].Alerts[0].ID)
	assert.Equal(t, "2", groups[0].Alerts[1].ID)
}

func TestCorrelateNewGroupAfterWindowExpires(t *testing.T) {
	c, clock := newTestCorrelator(t)
	ctx := context.Background()

	first, err := c.Correlate(ctx, []models.Alert{alert("1", "api", "HighCPU", "critical", "f1")})
	require.NoError(t, err)

	clock.advance(6 * time.Minute)
	second, err := c.Correlate(ctx, []models.Alert{alert("2", "api", "HighCPU", "critical", "f2")})
	require.NoError(t, err)

	require.Len(t, second, 1)
	// Same deterministic id, but state restarted.
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, second[0].Count)
	assert.Equal(t, "2", second[0].Alerts[0].ID)
}

func TestCorrelatePersistsAlertsAndGroups(t *testing.T) {
	c, _ := newTestCorrelator(t)
	ctx := context.Background()

	groups, err := c.Correlate(ctx, []models.Alert{alert("a-1", "api", "HighCPU", "critical", "f1")})
	require.NoError(t, err)

	stored, err := c.GetGroup(ctx, groups[0].ID)
	require.NoError(t, err)
	assert.Equal(t, groups[0].GroupingKey, stored.GroupingKey)

	a, err := c.GetAlert(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "HighCPU", a.Alertname())
}

func TestRecentGroupsNewestFirst(t *testing.T) {
	c, clock := newTestCorrelator(t)
	ctx := context.Background()

	_, err := c.Correlate(ctx, []models.Alert{alert("1", "api", "HighCPU", "critical", "f1")})
	require.NoError(t, err)
	clock.advance(time.Minute)
	_, err = c.Correlate(ctx, []models.Alert{alert("2", "db", "DiskFull", "warning", "f2")})
	require.NoError(t, err)

	recent, err := c.RecentGroups(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "db:DiskFull:warning", recent[0].GroupingKey)
	assert.Equal(t, "api:HighCPU:critical", recent[1].GroupingKey)
}

func TestRecentGroupsHonorsLimit(t *testing.T) {
	c, _ := newTestCorrelator(t)
	ctx := context.Background()

	for _, svc := range []string{"a", "b", "c"} {
		_, err := c.Correlate(ctx, []models.Alert{alert(svc, svc, "X", "low", "f-"+svc)})
		require.NoError(t, err)
	}

	recent, err := c.RecentGroups(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestPriorityNeverDecreasesOnMerge(t *testing.T) {
	c, clock := newTestCorrelator(t)
	ctx := context.Background()

	first, err := c.Correlate(ctx, []models.Alert{alert("1", "api", "HighCPU", "critical", "f1")})
	require.NoError(t, err)
	before := first[0].PriorityScore

	clock.advance(time.Minute)
	second, err := c.Correlate(ctx, []models.Alert{alert("2", "api", "HighCPU", "critical", "f2")})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, second[0].PriorityScore, before)
}
