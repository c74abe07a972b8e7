package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huecodes/hunter/internal/domain"
	"github.com/huecodes/hunter/internal/hunter"
	"github.com/huecodes/hunter/internal/logger"
	"github.com/huecodes/hunter/internal/service"
	"gorm.io/gorm"
)

// IntegrationHandler handles integration lifecycle and audit endpoints.
type IntegrationHandler struct {
	integrations *service.IntegrationService
}

// NewIntegrationHandler creates an integration handler.
// Parameters:
//   - integrations: integration service instance.
// Returns:
//   - *IntegrationHandler: initialized handler.
func NewIntegrationHandler(integrations *service.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations}
}

// CreateIntegrationRequest represents the create API request.
type CreateIntegrationRequest struct {
	ProjectID         string                   `json:"project_id" binding:"required"`
	Platform          string                   `json:"platform" binding:"required"`
	Name              string                   `json:"name" binding:"required"`
	Config            domain.IntegrationConfig `json:"config"`
	ScanFrequencySecs int                      `json:"scan_frequency_secs" binding:"required,min=60"`
}

// Create handles integration creation.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IntegrationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	integration, err := h.integrations.Create(ctx, service.CreateParams{
		ProjectID:         req.ProjectID,
		Platform:          domain.PlatformType(req.Platform),
		Name:              req.Name,
		Config:            req.Config,
		ScanFrequencySecs: req.ScanFrequencySecs,
	})
	if err != nil {
		if errors.Is(err, hunter.ErrUnknownPlatform) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.CtxError(ctx, "Failed to create integration: project=%s, error=%v", req.ProjectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.CtxInfo(ctx, "Integration created: id=%s, project=%s, platform=%s",
		integration.ID, integration.ProjectID, integration.Platform)
	c.JSON(http.StatusCreated, integration)
}

// List handles integration listing with optional project filter.
func (h *IntegrationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	integrations, err := h.integrations.List(c.Request.Context(), c.Query("project_id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": integrations, "count": len(integrations)})
}

// Get handles single integration retrieval.
func (h *IntegrationHandler) Get(c *gin.Context) {
	integration, err := h.integrations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, integration)
}

// Pause suspends scheduling for an integration.
func (h *IntegrationHandler) Pause(c *gin.Context) {
	if err := h.integrations.Pause(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domain.IntegrationStatusPaused)})
}

// Resume reactivates a paused integration.
func (h *IntegrationHandler) Resume(c *gin.Context) {
	if err := h.integrations.Resume(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domain.IntegrationStatusActive)})
}

// Logs lists scan attempts for an integration, newest first.
func (h *IntegrationHandler) Logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx := c.Request.Context()
	id := c.Param("id")

	logs, err := h.integrations.Logs(ctx, id, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, failed, err := h.integrations.LogCounts(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs), "total": total, "failed": failed})
}

// Stats summarizes the integration fleet.
func (h *IntegrationHandler) Stats(c *gin.Context) {
	stats, err := h.integrations.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
