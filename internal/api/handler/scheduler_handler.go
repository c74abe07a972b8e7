package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huecodes/hunter/internal/logger"
	"github.com/huecodes/hunter/internal/service"
	"gorm.io/gorm"
)

// SchedulerHandler exposes the two scheduler trigger endpoints and the manual
// per-integration scan trigger. Both cycle endpoints are idempotent: a cycle
// that finds no work returns an empty report.
type SchedulerHandler struct {
	scheduler *service.SchedulerService
}

// NewSchedulerHandler creates a scheduler handler.
// Parameters:
//   - scheduler: scheduler service instance.
// Returns:
//   - *SchedulerHandler: initialized handler.
func NewSchedulerHandler(scheduler *service.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// RunScanCycle handles the "run scan cycle" trigger.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SchedulerHandler) RunScanCycle(c *gin.Context) {
	ctx := c.Request.Context()

	report, err := h.scheduler.RunScanCycle(ctx)
	if err != nil {
		logger.CtxError(ctx, "Scan cycle aborted: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// RunRecoverySweep handles the "recover stale leases" trigger.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SchedulerHandler) RunRecoverySweep(c *gin.Context) {
	ctx := c.Request.Context()

	report, err := h.scheduler.RunRecoverySweep(ctx)
	if err != nil {
		logger.CtxError(ctx, "Recovery sweep aborted: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// TriggerScan runs one integration immediately with a manual trigger.
// Parameters:
//   - c: Gin request context with the integration ID path parameter.
// Returns: none (writes JSON response).
func (h *SchedulerHandler) TriggerScan(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	outcome, err := h.scheduler.ExecuteIntegration(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
		case errors.Is(err, service.ErrIntegrationDisabled):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.CtxError(ctx, "Manual scan failed: integration_id=%s, error=%v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	if outcome.Skipped {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "integration is currently being scanned",
			"outcome": outcome,
		})
		return
	}

	c.JSON(http.StatusOK, outcome)
}
