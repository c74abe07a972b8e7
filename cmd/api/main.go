package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/huecodes/hunter/internal/api"
	"github.com/huecodes/hunter/internal/config"
	"github.com/huecodes/hunter/internal/hunter"
	"github.com/huecodes/hunter/internal/logger"
	"github.com/huecodes/hunter/internal/repository"
	"github.com/huecodes/hunter/internal/service"
	"github.com/huecodes/hunter/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "hunter",
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
	})
	logger.SetDefault(appLogger)

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	integrationRepo := repository.NewIntegrationRepository(db)
	scanLogRepo := repository.NewScanLogRepository(db)

	// Initialize raw payload archive
	var archive storage.ObjectStorage = storage.Noop{}
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewS3Storage(&storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := s3Storage.EnsureBucket(context.Background()); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
		archive = s3Storage
	}

	// Initialize hunters
	recorder := hunter.NewRecorder(scanLogRepo, archive, appLogger)
	var hunters []hunter.Hunter
	if cfg.Hunters.Forum.Enabled {
		hunters = append(hunters, hunter.NewForumHunter(cfg.Hunters.Forum, recorder))
	}
	if cfg.Hunters.AppStore.Enabled {
		hunters = append(hunters, hunter.NewAppStoreHunter(cfg.Hunters.AppStore, recorder))
	}
	if cfg.Hunters.PlayStore.Enabled {
		hunters = append(hunters, hunter.NewPlayStoreHunter(cfg.Hunters.PlayStore, recorder))
	}
	if cfg.Hunters.ReviewSite.Enabled {
		hunters = append(hunters, hunter.NewReviewSiteHunter(cfg.Hunters.ReviewSite, recorder))
	}
	registry := hunter.NewRegistry(hunters...)

	// Initialize services
	schedulerService := service.NewSchedulerService(
		integrationRepo,
		registry,
		recorder,
		service.NewSpacingThrottle(cfg.Scheduler.MinSpacing),
		appLogger,
		service.SchedulerConfig{
			BatchCap:             cfg.Scheduler.BatchCap,
			LeaseTimeout:         cfg.Scheduler.LeaseTimeout,
			ScanTimeout:          cfg.Scheduler.ScanTimeout,
			MaxBackoffMultiplier: cfg.Scheduler.MaxBackoffMultiplier,
		},
	)
	integrationService := service.NewIntegrationService(integrationRepo, scanLogRepo, registry)

	// Optional embedded trigger timers. In most deployments an external cron
	// hits the trigger endpoints instead.
	var cronRunner *cron.Cron
	if cfg.Scheduler.Cron.Enabled {
		cronRunner = cron.New()
		if _, err := cronRunner.AddFunc(cfg.Scheduler.Cron.ScanSpec, func() {
			if _, err := schedulerService.RunScanCycle(context.Background()); err != nil {
				appLogger.WithError(err).Error("Scheduled scan cycle failed")
			}
		}); err != nil {
			appLogger.WithError(err).Fatal("Invalid scan cron spec")
		}
		if _, err := cronRunner.AddFunc(cfg.Scheduler.Cron.SweepSpec, func() {
			if _, err := schedulerService.RunRecoverySweep(context.Background()); err != nil {
				appLogger.WithError(err).Error("Scheduled recovery sweep failed")
			}
		}); err != nil {
			appLogger.WithError(err).Fatal("Invalid sweep cron spec")
		}
		cronRunner.Start()
		appLogger.Infof("Embedded cron enabled: scan=%q, sweep=%q",
			cfg.Scheduler.Cron.ScanSpec, cfg.Scheduler.Cron.SweepSpec)
	}

	// Setup router
	router := api.SetupRouter(db, schedulerService, integrationService, cfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.Infof("Starting API server: port=%d, mode=%s", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	if cronRunner != nil {
		// Let an in-flight cycle finish; its lease protects against overlap anyway
		<-cronRunner.Stop().Done()
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
