package handlers

import (
	"net/http"

	"refill-backend/internal/providers"
	"refill-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler exposes the operator surface: manual reconciliation and
// provider health.
type AdminHandler struct {
	reconciliation *services.ReconciliationService
	registry       *providers.Registry
	logger         *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(reconciliation *services.ReconciliationService, registry *providers.Registry, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		reconciliation: reconciliation,
		registry:       registry,
		logger:         logger,
	}
}

// TriggerReconciliation runs one reconciliation cycle immediately instead of
// waiting for the next tick.
// POST /api/v1/admin/reconcile
func (h *AdminHandler) TriggerReconciliation(c *gin.Context) {
	h.logger.WithField("admin", c.GetString("admin_username")).Info("Manual reconciliation triggered")

	h.reconciliation.RunCycle(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "reconciliation cycle completed",
	})
}

// ProviderHealth probes every registered custody backend's credentials.
// GET /api/v1/admin/providers/health
func (h *AdminHandler) ProviderHealth(c *gin.Context) {
	report := h.registry.HealthReport(c.Request.Context())

	healthy := true
	for _, check := range report {
		if !check.Success {
			healthy = false
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"healthy":   healthy,
		"providers": report,
	})
}
