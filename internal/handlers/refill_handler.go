package handlers

import (
	"net/http"
	"strings"

	"refill-backend/internal/dto"
	"refill-backend/internal/models"
	"refill-backend/internal/services"
	"refill-backend/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RefillHandler exposes the refill decision engine over HTTP.
type RefillHandler struct {
	refillService *services.RefillService
	logger        *logrus.Logger
}

// NewRefillHandler creates a new RefillHandler instance.
func NewRefillHandler(refillService *services.RefillService, logger *logrus.Logger) *RefillHandler {
	return &RefillHandler{
		refillService: refillService,
		logger:        logger,
	}
}

// CreateRefill accepts one refill request from the balance monitor.
// POST /api/v1/refills
func (h *RefillHandler) CreateRefill(c *gin.Context) {
	var req dto.RefillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.RefillResponse{
			Success: false,
			Code:    validation.CodeMissingFields,
			Error:   "invalid request body: " + err.Error(),
		})
		return
	}

	result := h.refillService.ProcessRefill(c.Request.Context(), &req)

	h.logger.WithFields(logrus.Fields{
		"request_id": req.RequestID,
		"asset":      req.AssetSymbol,
		"chain":      req.ChainName,
		"success":    result.Success,
		"code":       result.Code,
	}).Info("Refill request processed")

	c.JSON(statusForResult(result), dto.RefillResponse{
		Success: result.Success,
		Code:    result.Code,
		Error:   result.Error,
		Data:    result.Data,
	})
}

// GetRefill returns the persisted state of one refill transaction.
// GET /api/v1/refills/:requestId
func (h *RefillHandler) GetRefill(c *gin.Context) {
	requestID := c.Param("requestId")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "requestId is required",
		})
		return
	}

	status, err := h.refillService.GetRefillStatus(c.Request.Context(), requestID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Refill status lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "status lookup failed",
		})
		return
	}
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "refill transaction not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    status,
	})
}

// ListRefills returns refill transactions filtered by status.
// GET /api/v1/refills?status=PENDING,PROCESSING
func (h *RefillHandler) ListRefills(c *gin.Context) {
	statuses := models.ActiveRefillStatuses
	if raw := c.Query("status"); raw != "" {
		statuses = nil
		for _, s := range strings.Split(raw, ",") {
			status := models.RefillStatus(strings.ToUpper(strings.TrimSpace(s)))
			switch status {
			case models.RefillStatusPending, models.RefillStatusProcessing,
				models.RefillStatusCompleted, models.RefillStatusFailed,
				models.RefillStatusCancelled:
				statuses = append(statuses, status)
			default:
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   "unknown status: " + string(status),
				})
				return
			}
		}
	}

	items, err := h.refillService.ListRefillsByStatus(c.Request.Context(), statuses)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Refill list query failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "list query failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(items),
		"data":    items,
	})
}

// statusForResult maps outcome codes to HTTP statuses: REFILL_IN_PROGRESS is
// a conflict, infrastructure faults are 5xx, everything else a rejection.
func statusForResult(result *validation.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Code {
	case validation.CodeRefillInProgress, validation.CodeRefillCooldownActive:
		return http.StatusConflict
	case validation.CodeProviderUnavailable,
		validation.CodeBalanceValidationError,
		validation.CodePendingRefillCheckError,
		validation.CodeTransferRequestError,
		validation.CodeLedgerWriteError,
		validation.CodeInternalError:
		return http.StatusInternalServerError
	case validation.CodeSufficientBalance, validation.CodeAboveTriggerThreshold:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
