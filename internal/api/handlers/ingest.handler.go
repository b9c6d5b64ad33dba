package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fawkes-platform/smart-alerting/internal/ingest"
	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

// AlertEnqueuer is the processor surface ingest needs.
type AlertEnqueuer interface {
	Enqueue(ctx context.Context, alerts []models.Alert, source string) bool
}

// IngestHandler accepts webhook payloads from the supported alert sources,
// normalizes them and hands them to the pipeline. It responds 202 before any
// pipeline work happens.
type IngestHandler struct {
	normalizer *ingest.Normalizer
	processor  AlertEnqueuer
	logger     logger.Logger
}

func NewIngestHandler(normalizer *ingest.Normalizer, processor AlertEnqueuer, log logger.Logger) *IngestHandler {
	return &IngestHandler{normalizer: normalizer, processor: processor, logger: log}
}

// IngestPrometheus handles POST /api/v1/alerts/prometheus (Alertmanager
// webhook format).
func (h *IngestHandler) IngestPrometheus(c *gin.Context) {
	var payload models.PrometheusWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload: " + err.Error()})
		return
	}

	alerts := h.normalizer.NormalizePrometheus(&payload)
	h.accept(c, alerts, "prometheus")
}

// IngestGrafana handles POST /api/v1/alerts/grafana.
func (h *IngestHandler) IngestGrafana(c *gin.Context) {
	h.ingestAlertList(c, "grafana")
}

// IngestDataHub handles POST /api/v1/alerts/datahub.
func (h *IngestHandler) IngestDataHub(c *gin.Context) {
	h.ingestAlertList(c, "datahub")
}

// IngestGeneric handles POST /api/v1/alerts/generic.
func (h *IngestHandler) IngestGeneric(c *gin.Context) {
	h.ingestAlertList(c, "generic")
}

// ingestAlertList binds a bare JSON array of alerts. A wrapped
// {"alerts": [...]} body is accepted too for callers reusing the
// Alertmanager envelope.
func (h *IngestHandler) ingestAlertList(c *gin.Context, source string) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body: " + err.Error()})
		return
	}

	var list []models.Alert
	if err := json.Unmarshal(data, &list); err != nil {
		var wrapped struct {
			Alerts []models.Alert `json:"alerts"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
			return
		}
		list = wrapped.Alerts
	}

	alerts := h.normalizer.Normalize(list)
	h.accept(c, alerts, source)
}

func (h *IngestHandler) accept(c *gin.Context, alerts []models.Alert, source string) {
	if !h.processor.Enqueue(c.Request.Context(), alerts, source) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert queue full"})
		return
	}

	h.logger.Debug("Accepted alert batch", "source", source, "count", len(alerts))
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "processing",
		"message": fmt.Sprintf("Received %d alerts", len(alerts)),
	})
}
