package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

const serviceName = "smart-alerting"

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	kv     cache.KVStore
	logger logger.Logger
}

func NewHealthHandler(kv cache.KVStore, log logger.Logger) *HealthHandler {
	return &HealthHandler{kv: kv, logger: log}
}

// HealthCheck handles GET /health. Always healthy while the process runs.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. Not ready when the KV store is down,
// since group state and counters live there.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if err := h.kv.HealthCheck(c.Request.Context()); err != nil {
		h.logger.Warn("Readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "kv store unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
