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

	"github.com/chimera-labs/trend-skills/internal/api"
	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/media"
	"github.com/chimera-labs/trend-skills/internal/metrics"
	"github.com/chimera-labs/trend-skills/internal/publish"
	"github.com/chimera-labs/trend-skills/internal/scheduler"
	"github.com/chimera-labs/trend-skills/internal/storage"
	"github.com/chimera-labs/trend-skills/internal/trends"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting trend skills service")

	store, err := newStorage(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	m := metrics.New("trendskills")

	// Skills
	fetcher := trends.NewFetcher(cfg, store, m, trends.DefaultSources(cfg, store)...)
	generator := media.NewGenerator(cfg, store, m, media.DefaultBackends(cfg)...)
	executor := publish.NewExecutor(store, m, publish.DefaultChannels(cfg)...)

	// Initialize scheduler
	schedulerService, err := scheduler.NewService(cfg, fetcher)
	if err != nil {
		logrus.Fatalf("Failed to create scheduler: %v", err)
	}

	// Start scheduler
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := api.NewRouter(api.Handlers{
		Trends:  fetcher,
		Media:   generator,
		Publish: executor,
		Trigger: schedulerService,
		Metrics: m.Handler(),
	})

	// Media generation may legitimately run for minutes; requests carry their
	// own latency bound.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func newStorage(cfg *config.Config) (storage.StorageInterface, error) {
	switch cfg.StorageBackend {
	case "azure":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logrus.Infof("Using Azure blob storage (account %s, container %s)", cfg.StorageAccount, cfg.StorageContainer)
		return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	default:
		logrus.Infof("Using local storage in %s", cfg.LocalStorageDir)
		return storage.NewLocalStorage(cfg.LocalStorageDir)
	}
}
