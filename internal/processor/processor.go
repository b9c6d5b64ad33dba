package processor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fawkes-platform/smart-alerting/internal/correlation"
	"github.com/fawkes-platform/smart-alerting/internal/metrics"
	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/internal/routing"
	"github.com/fawkes-platform/smart-alerting/internal/suppression"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

// Statistics counter keys. Suppressed and routed count alerts, not groups.
const (
	StatReceived   = "stats:total_received"
	StatSuppressed = "stats:total_suppressed"
	StatGrouped    = "stats:total_grouped"
	StatRouted     = "stats:total_routed"
)

const defaultQueueSize = 1024

// RoutedListener observes groups after successful routing. Used by the
// WebSocket stream; must not block.
type RoutedListener interface {
	GroupRouted(group *models.AlertGroup)
}

type job struct {
	alerts []models.Alert
	source string
}

// Processor runs the correlate-suppress-route pipeline. All pipeline work
// happens on one worker goroutine, which makes group read-modify-write
// cycles in the KV store race-free without locks; ingest handlers only
// enqueue and return.
type Processor struct {
	correlator *correlation.Correlator
	suppressor *suppression.Engine
	router     *routing.Router
	kv         cache.KVStore
	logger     logger.Logger

	jobs      chan job
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu        sync.RWMutex
	listeners []RoutedListener
}

func New(correlator *correlation.Correlator, suppressor *suppression.Engine, router *routing.Router, kv cache.KVStore, log logger.Logger) *Processor {
	return &Processor{
		correlator: correlator,
		suppressor: suppressor,
		router:     router,
		kv:         kv,
		logger:     log,
		jobs:       make(chan job, defaultQueueSize),
	}
}

// AddListener registers a routed-group observer. Call before Start.
func (p *Processor) AddListener(l RoutedListener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Start launches the single pipeline worker.
func (p *Processor) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for j := range p.jobs {
			p.process(j)
		}
	}()
	p.logger.Info("Alert processor started", "queue_size", cap(p.jobs))
}

// Stop closes the queue and drains outstanding jobs, giving up when ctx
// expires.
func (p *Processor) Stop(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.jobs) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Alert processor drained")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Alert processor shutdown timed out with jobs pending")
		return ctx.Err()
	}
}

// Enqueue hands a normalized batch to the pipeline and returns immediately.
// Received counters are bumped here so ingest accounting does not wait on
// pipeline latency. Returns false when the queue is full and the batch was
// dropped.
func (p *Processor) Enqueue(ctx context.Context, alerts []models.Alert, source string) bool {
	if len(alerts) == 0 {
		return true
	}

	metrics.AlertsReceived.WithLabelValues(source).Add(float64(len(alerts)))
	if _, err := p.kv.Incr(ctx, StatReceived, int64(len(alerts))); err != nil {
		p.logger.Warn("Failed to update received counter", "error", err)
	}

	select {
	case p.jobs <- job{alerts: alerts, source: source}:
		return true
	default:
		p.logger.Error("Alert queue full, dropping batch", "source", source, "count", len(alerts))
		return false
	}
}

func (p *Processor) process(j job) {
	started := time.Now()
	ctx := context.Background()

	groups, err := p.correlator.Correlate(ctx, j.alerts)
	if err != nil {
		p.logger.Error("Correlation failed", "source", j.source, "count", len(j.alerts), "error", err)
		return
	}

	metrics.AlertGroupsCreated.Add(float64(len(groups)))
	if _, err := p.kv.Incr(ctx, StatGrouped, int64(len(groups))); err != nil {
		p.logger.Warn("Failed to update grouped counter", "error", err)
	}

	for _, group := range groups {
		p.evaluate(ctx, group)
	}

	p.updateFatigueGauge(ctx)
	metrics.ProcessingDuration.Observe(time.Since(started).Seconds())
}

// evaluate runs suppression and routing for one group and persists the
// outcome back onto the stored group. Suppression is terminal for the life
// of the group: a group already marked suppressed never routes, even if the
// matching rule has since stopped matching.
func (p *Processor) evaluate(ctx context.Context, group *models.AlertGroup) {
	suppressed, reason := group.Suppressed, group.SuppressionReason
	if !suppressed {
		suppressed, reason = p.suppressor.ShouldSuppress(ctx, group)
	}
	group.Suppressed = suppressed
	group.SuppressionReason = reason

	if suppressed {
		p.logger.Info("Suppressed alert group",
			"group_id", group.ID, "reason", reason, "count", group.Count)
		metrics.AlertsSuppressed.WithLabelValues(reason).Add(float64(group.Count))
		if _, err := p.kv.Incr(ctx, StatSuppressed, int64(group.Count)); err != nil {
			p.logger.Warn("Failed to update suppressed counter", "error", err)
		}
	} else {
		group.RoutedTo = p.router.Route(ctx, group)
		for _, channel := range group.RoutedTo {
			metrics.AlertsRouted.WithLabelValues(channel).Add(float64(group.Count))
		}
		if _, err := p.kv.Incr(ctx, StatRouted, int64(group.Count)); err != nil {
			p.logger.Warn("Failed to update routed counter", "error", err)
		}
		p.notifyRouted(group)
	}

	if err := p.correlator.SaveGroup(ctx, group); err != nil {
		p.logger.Error("Failed to persist group outcome", "group_id", group.ID, "error", err)
	}
}

func (p *Processor) notifyRouted(group *models.AlertGroup) {
	p.mu.RLock()
	listeners := p.listeners
	p.mu.RUnlock()
	for _, l := range listeners {
		l.GroupRouted(group)
	}
}

// updateFatigueGauge recomputes the fatigue reduction percentage from the
// persisted counters.
func (p *Processor) updateFatigueGauge(ctx context.Context) {
	received, err := readCounter(ctx, p.kv, StatReceived)
	if err != nil || received == 0 {
		return
	}
	suppressed, err := readCounter(ctx, p.kv, StatSuppressed)
	if err != nil {
		return
	}
	metrics.FatigueReduction.Set(float64(suppressed) / float64(received) * 100)
}

// readCounter reads one stats counter, treating a missing key as zero.
func readCounter(ctx context.Context, kv cache.KVStore, key string) (int64, error) {
	data, err := kv.Get(ctx, key)
	if err == cache.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.Trim(string(data), `"`), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s holds non-integer value: %w", key, err)
	}
	return n, nil
}

// ReadCounter exposes counter reads for the stats API.
func ReadCounter(ctx context.Context, kv cache.KVStore, key string) (int64, error) {
	return readCounter(ctx, kv, key)
}
