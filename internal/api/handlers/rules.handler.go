package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/internal/suppression"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

var validRuleTypes = map[string]bool{
	models.RuleTypeMaintenanceWindow: true,
	models.RuleTypeKnownIssue:        true,
	models.RuleTypeFlapping:          true,
	models.RuleTypeCascade:           true,
	models.RuleTypeTimeBased:         true,
}

// RulesHandler serves suppression rule CRUD. API-created rules live in
// memory only; disk rules are managed by editing the rules directory.
type RulesHandler struct {
	store  *suppression.RuleStore
	logger logger.Logger
}

func NewRulesHandler(store *suppression.RuleStore, log logger.Logger) *RulesHandler {
	return &RulesHandler{store: store, logger: log}
}

// ListRules handles GET /api/v1/rules.
func (h *RulesHandler) ListRules(c *gin.Context) {
	rules := h.store.List()
	c.JSON(http.StatusOK, gin.H{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRule handles GET /api/v1/rules/:id.
func (h *RulesHandler) GetRule(c *gin.Context) {
	rule := h.store.Get(c.Param("id"))
	if rule == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// CreateRule handles POST /api/v1/rules.
func (h *RulesHandler) CreateRule(c *gin.Context) {
	var rule models.SuppressionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule: " + err.Error()})
		return
	}
	if err := validateRule(&rule); err != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	created := h.store.Add(&rule)
	h.logger.Info("Created suppression rule", "rule_id", created.ID, "name", created.Name, "type", created.Type)
	c.JSON(http.StatusCreated, created)
}

// UpdateRule handles PUT /api/v1/rules/:id.
func (h *RulesHandler) UpdateRule(c *gin.Context) {
	var rule models.SuppressionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule: " + err.Error()})
		return
	}
	rule.ID = c.Param("id")
	if err := validateRule(&rule); err != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	if !h.store.Update(&rule) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	h.logger.Info("Updated suppression rule", "rule_id", rule.ID, "name", rule.Name)
	c.JSON(http.StatusOK, &rule)
}

// DeleteRule handles DELETE /api/v1/rules/:id.
func (h *RulesHandler) DeleteRule(c *gin.Context) {
	id := c.Param("id")
	if !h.store.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	h.logger.Info("Deleted suppression rule", "rule_id", id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "rule_id": id})
}

func validateRule(rule *models.SuppressionRule) string {
	if rule.Name == "" {
		return "rule name is required"
	}
	if !validRuleTypes[rule.Type] {
		return "unknown rule type: " + rule.Type
	}
	return ""
}
