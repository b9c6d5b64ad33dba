package handlers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fawkes-platform/smart-alerting/internal/metrics"
	"github.com/fawkes-platform/smart-alerting/internal/processor"
	"github.com/fawkes-platform/smart-alerting/internal/suppression"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

// fatigueReductionTarget is the operational goal for suppressed noise.
const fatigueReductionTarget = 50.0

// StatsHandler serves the pipeline effectiveness counters.
type StatsHandler struct {
	kv     cache.KVStore
	store  *suppression.RuleStore
	logger logger.Logger
}

func NewStatsHandler(kv cache.KVStore, store *suppression.RuleStore, log logger.Logger) *StatsHandler {
	return &StatsHandler{kv: kv, store: store, logger: log}
}

// GetStats handles GET /api/v1/stats.
func (h *StatsHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	received, err := processor.ReadCounter(ctx, h.kv, processor.StatReceived)
	if err != nil {
		h.logger.Error("Failed to read stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stats"})
		return
	}
	suppressed, _ := processor.ReadCounter(ctx, h.kv, processor.StatSuppressed)
	grouped, _ := processor.ReadCounter(ctx, h.kv, processor.StatGrouped)
	routed, _ := processor.ReadCounter(ctx, h.kv, processor.StatRouted)

	reduction := fatigueReduction(received, suppressed)
	metrics.FatigueReduction.Set(reduction)

	c.JSON(http.StatusOK, gin.H{
		"total_received":            received,
		"total_suppressed":          suppressed,
		"total_grouped":             grouped,
		"total_routed":              routed,
		"fatigue_reduction_percent": reduction,
		"active_rules":              len(h.store.List()),
	})
}

// GetReduction handles GET /api/v1/stats/reduction, reporting progress
// against the fatigue reduction target.
func (h *StatsHandler) GetReduction(c *gin.Context) {
	ctx := c.Request.Context()

	received, err := processor.ReadCounter(ctx, h.kv, processor.StatReceived)
	if err != nil {
		h.logger.Error("Failed to read stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stats"})
		return
	}
	suppressed, _ := processor.ReadCounter(ctx, h.kv, processor.StatSuppressed)

	reduction := fatigueReduction(received, suppressed)
	c.JSON(http.StatusOK, gin.H{
		"fatigue_reduction_percent": reduction,
		"target_percent":            fatigueReductionTarget,
		"target_met":                reduction >= fatigueReductionTarget,
	})
}

// fatigueReduction is the share of received alerts that were suppressed,
// rounded to two decimals. Zero received means zero reduction.
func fatigueReduction(received, suppressed int64) float64 {
	if received == 0 {
		return 0
	}
	pct := float64(suppressed) / float64(received) * 100
	return math.Round(pct*100) / 100
}
