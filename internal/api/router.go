package api

import (
	"github.com/gin-gonic/gin"
	"github.com/huecodes/hunter/internal/api/handler"
	"github.com/huecodes/hunter/internal/api/middleware"
	"github.com/huecodes/hunter/internal/config"
	"github.com/huecodes/hunter/internal/service"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	db *gorm.DB,
	scheduler *service.SchedulerService,
	integrations *service.IntegrationService,
	cfg *config.Config,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(db)
	schedulerHandler := handler.NewSchedulerHandler(scheduler)
	integrationHandler := handler.NewIntegrationHandler(integrations)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes (token-protected)
	v1 := r.Group("/api/v1")
	v1.Use(middleware.TokenAuth(cfg.Server.APIToken))
	{
		// Scheduler trigger surface: hit by the external cron environment
		v1.POST("/scheduler/scan-cycle", schedulerHandler.RunScanCycle)
		v1.POST("/scheduler/recovery-sweep", schedulerHandler.RunRecoverySweep)

		// Integrations
		v1.POST("/integrations", integrationHandler.Create)
		v1.GET("/integrations", integrationHandler.List)
		v1.GET("/integrations/:id", integrationHandler.Get)
		v1.POST("/integrations/:id/pause", integrationHandler.Pause)
		v1.POST("/integrations/:id/resume", integrationHandler.Resume)
		v1.POST("/integrations/:id/scan", schedulerHandler.TriggerScan)
		v1.GET("/integrations/:id/logs", integrationHandler.Logs)

		// Stats
		v1.GET("/stats", integrationHandler.Stats)
	}

	return r
}
