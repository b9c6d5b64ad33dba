package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawkes-platform/smart-alerting/internal/correlation"
	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/internal/routing"
	"github.com/fawkes-platform/smart-alerting/internal/suppression"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

type okSink struct{ name string }

func (s *okSink) Name() string                                               { return s.name }
func (s *okSink) Deliver(context.Context, *models.NotificationPayload) error { return nil }

type fixture struct {
	proc      *Processor
	kv        cache.KVStore
	ruleStore *suppression.RuleStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := cache.NewMemoryStore()
	log := logger.NewNop()

	correlator := correlation.New(kv, log, 5*time.Minute, 100)
	ruleStore := suppression.NewRuleStore(t.TempDir(), log)
	suppressor := suppression.NewEngine(kv, ruleStore, log, 3, 10*time.Minute)
	router := routing.NewRouter(nil, log, nil, nil, &okSink{name: "mattermost"})

	return &fixture{
		proc:      New(correlator, suppressor, router, kv, log),
		kv:        kv,
		ruleStore: ruleStore,
	}
}

func firingAlert(id, service, name, severity, fp string) models.Alert {
	return models.Alert{
		ID: id,
		Labels: map[string]string{
			"service":   service,
			"alertname": name,
			"severity":  severity,
		},
		Status:      models.StatusFiring,
		Fingerprint: fp,
	}
}

func counter(t *testing.T, kv cache.KVStore, key string) int64 {
	t.Helper()
	n, err := ReadCounter(context.Background(), kv, key)
	require.NoError(t, err)
	return n
}

func TestEnqueueCountsReceived(t *testing.T) {
	f := newFixture(t)

	ok := f.proc.Enqueue(context.Background(), []models.Alert{
		firingAlert("1", "api", "HighCPU", "critical", "f1"),
		firingAlert("2", "api", "HighCPU", "critical", "f2"),
	}, "prometheus")
	require.True(t, ok)

	assert.Equal(t, int64(2), counter(t, f.kv, StatReceived))
}

func TestProcessRoutesAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alerts := []models.Alert{
		firingAlert("1", "api", "HighCPU", "critical", "f1"),
		firingAlert("2", "api", "HighCPU", "critical", "f2"),
	}
	f.proc.process(job{alerts: alerts, source: "prometheus"})

	assert.Equal(t, int64(1), counter(t, f.kv, StatGrouped))
	assert.Equal(t, int64(2), counter(t, f.kv, StatRouted))
	assert.Equal(t, int64(0), counter(t, f.kv, StatSuppressed))

	// Outcome persisted on the stored group.
	groups, err := f.proc.correlator.RecentGroups(ctx, 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.False(t, groups[0].Suppressed)
	assert.Equal(t, []string{"mattermost"}, groups[0].RoutedTo)
}

func TestProcessSuppressedGroupNotRouted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ruleStore.Add(&models.SuppressionRule{
		Name:         "known-noise",
		Type:         models.RuleTypeKnownIssue,
		AlertPattern: "HighCPU",
	})

	f.proc.process(job{alerts: []models.Alert{
		firingAlert("1", "api", "HighCPU", "critical", "f1"),
	}, source: "generic"})

	assert.Equal(t, int64(1), counter(t, f.kv, StatSuppressed))
	assert.Equal(t, int64(0), counter(t, f.kv, StatRouted))

	groups, err := f.proc.correlator.RecentGroups(ctx, 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Suppressed)
	assert.Equal(t, "known_issue: known-noise", groups[0].SuppressionReason)
	assert.Empty(t, groups[0].RoutedTo)
}

func TestEndToEndThroughQueue(t *testing.T) {
	f := newFixture(t)
	f.proc.Start()

	ok := f.proc.Enqueue(context.Background(), []models.Alert{
		firingAlert("1", "api", "HighCPU", "critical", "f1"),
	}, "prometheus")
	require.True(t, ok)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.proc.Stop(shutdownCtx))

	assert.Equal(t, int64(1), counter(t, f.kv, StatReceived))
	assert.Equal(t, int64(1), counter(t, f.kv, StatGrouped))
	assert.Equal(t, int64(1), counter(t, f.kv, StatRouted))
}

type capturingListener struct {
	groups []*models.AlertGroup
}

func (l *capturingListener) GroupRouted(g *models.AlertGroup) {
	l.groups = append(l.groups, g)
}

func TestRoutedListenerNotified(t *testing.T) {
	f := newFixture(t)
	listener := &capturingListener{}
	f.proc.AddListener(listener)

	f.proc.process(job{alerts: []models.Alert{
		firingAlert("1", "api", "HighCPU", "critical", "f1"),
	}, source: "generic"})

	require.Len(t, listener.groups, 1)
	assert.Equal(t, "api:HighCPU:critical", listener.groups[0].GroupingKey)
}

func TestEnqueueEmptyBatchIsNoop(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.proc.Enqueue(context.Background(), nil, "generic"))
	assert.Equal(t, int64(0), counter(t, f.kv, StatReceived))
}
