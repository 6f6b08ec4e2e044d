package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/itinerary-elevation/internal/api/http"
	"github.com/i474232898/itinerary-elevation/internal/config"
	"github.com/i474232898/itinerary-elevation/internal/elevation"
	"github.com/i474232898/itinerary-elevation/internal/elevation/providers"
	"github.com/i474232898/itinerary-elevation/internal/events"
	"github.com/i474232898/itinerary-elevation/internal/itinerary"
	"github.com/i474232898/itinerary-elevation/internal/logging"
	"github.com/i474232898/itinerary-elevation/internal/report"
	"github.com/i474232898/itinerary-elevation/internal/repository"
	"github.com/i474232898/itinerary-elevation/internal/scheduler"
	"github.com/i474232898/itinerary-elevation/internal/store"
)

func main() {
	boot, err := zap.NewProduction()
	if err != nil {
		boot = zap.NewExample()
	}

	// Load configuration.
	cfg, err := config.Load(boot)
	if err != nil {
		boot.Fatal("failed to load config", zap.Error(err))
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (backoff + circuit breaker), in fallback order.
	backoffCfg := providers.DefaultBackoff()
	backoffCfg.MaxRetries = cfg.Providers.MaxRetries
	batch, sequential := providers.NewChain(providers.ChainConfig{
		HTTPClient:            httpClient,
		Backoff:               backoffCfg,
		USGSBaseURL:           cfg.Providers.USGSBaseURL,
		OpenElevationBaseURL:  cfg.Providers.OpenElevationBaseURL,
		OpenTopographyBaseURL: cfg.Providers.OpenTopographyBaseURL,
		OpenTopographyAPIKey:  cfg.Providers.OpenTopographyAPIKey,
		OpenTopographyDataset: cfg.Providers.OpenTopographyDataset,
		GoogleMapsAPIKey:      cfg.Providers.GoogleMapsAPIKey,
	}, log)

	orchestrator := elevation.NewOrchestrator(batch, sequential, elevation.OrchestratorConfig{
		Acceptance: elevation.Acceptance{
			MinSuccessful:   cfg.AcceptMinSuccessful,
			MinSuccessRatio: cfg.AcceptMinRatio,
		},
		MinDelay:    cfg.MinRequestDelay,
		Concurrency: cfg.SequentialConcurrency,
	}, log)

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Optional report sinks.
	var sinks []elevation.ReportSink
	if cfg.ReportDir != "" {
		sinks = append(sinks, report.NewFileWriter(cfg.ReportDir))
	}
	if cfg.DatabaseDSN != "" {
		db, err := repository.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		repo := repository.NewGormReportRepository(db)
		warmStore(repo, memStore, cfg.ItineraryFiles, log)
		sinks = append(sinks, repo)
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewReportPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer func() { _ = publisher.Close() }()
		sinks = append(sinks, publisher)
	}

	// Core service orchestrating providers, store and sinks.
	service := elevation.NewService(orchestrator, memStore, sinks, nil, log)

	// Scheduler that periodically resolves the configured itineraries.
	sched := scheduler.New(cfg.ItineraryFiles, cfg.RefreshInterval, service, log)
	if err := sched.Start(); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "itinerary-elevation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Resolving a long itinerary point by point takes a while.
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "itinerary-elevation",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", zap.Error(err))
		}
	}()
	log.Info("server started", zap.String("port", cfg.Port), zap.Int("batch_providers", len(batch)))

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
}

// warmStore loads the last persisted report of every configured itinerary
// into the in-memory store so the API answers before the first refresh.
func warmStore(repo *repository.GormReportRepository, memStore *store.MemoryStore, files []string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, path := range files {
		name := itinerary.Name(path)
		latest, err := repo.FindLatest(ctx, name)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Warn("failed to load persisted report", zap.String("itinerary", name), zap.Error(err))
			}
			continue
		}
		memStore.SaveReport(name, latest)
	}
}
