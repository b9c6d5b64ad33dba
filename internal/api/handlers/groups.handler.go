package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fawkes-platform/smart-alerting/internal/correlation"
	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

const defaultGroupsLimit = 50

// GroupsHandler serves alert-group and single-alert queries plus the
// acknowledge/resolve state transitions.
type GroupsHandler struct {
	correlator *correlation.Correlator
	logger     logger.Logger
}

func NewGroupsHandler(correlator *correlation.Correlator, log logger.Logger) *GroupsHandler {
	return &GroupsHandler{correlator: correlator, logger: log}
}

// ListGroups handles GET /api/v1/alert-groups.
func (h *GroupsHandler) ListGroups(c *gin.Context) {
	limit := defaultGroupsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	groups, err := h.correlator.RecentGroups(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list alert groups", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list alert groups"})
		return
	}
	if groups == nil {
		groups = []*models.AlertGroup{}
	}

	c.JSON(http.StatusOK, groups)
}

// GetGroup handles GET /api/v1/alert-groups/:id.
func (h *GroupsHandler) GetGroup(c *gin.Context) {
	id := c.Param("id")
	group, err := h.correlator.GetGroup(c.Request.Context(), id)
	if err == cache.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load alert group", "group_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load alert group"})
		return
	}

	c.JSON(http.StatusOK, group)
}

// GetAlert handles GET /api/v1/alerts/:id.
func (h *GroupsHandler) GetAlert(c *gin.Context) {
	id := c.Param("id")
	alert, err := h.correlator.GetAlert(c.Request.Context(), id)
	if err == cache.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load alert", "alert_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load alert"})
		return
	}

	c.JSON(http.StatusOK, alert)
}

// AcknowledgeAlert handles PUT /api/v1/alerts/:id/acknowledge.
func (h *GroupsHandler) AcknowledgeAlert(c *gin.Context) {
	id := c.Param("id")
	alert, err := h.correlator.GetAlert(c.Request.Context(), id)
	if err == cache.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load alert", "alert_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load alert"})
		return
	}

	now := time.Now().UTC()
	alert.Acknowledged = true
	alert.AcknowledgedAt = &now
	if err := h.correlator.SaveAlert(c.Request.Context(), alert); err != nil {
		h.logger.Error("Failed to persist acknowledgement", "alert_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist acknowledgement"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "acknowledged", "alert_id": id})
}

// ResolveAlert handles PUT /api/v1/alerts/:id/resolve.
func (h *GroupsHandler) ResolveAlert(c *gin.Context) {
	id := c.Param("id")
	alert, err := h.correlator.GetAlert(c.Request.Context(), id)
	if err == cache.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load alert", "alert_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load alert"})
		return
	}

	now := time.Now().UTC()
	alert.Status = models.StatusResolved
	alert.ResolvedAt = &now
	if err := h.correlator.SaveAlert(c.Request.Context(), alert); err != nil {
		h.logger.Error("Failed to persist resolution", "alert_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist resolution"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "resolved", "alert_id": id})
}
