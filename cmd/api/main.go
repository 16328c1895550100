package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/api/handlers"
	"github.com/dvloznov/subscription-tracker/internal/api/middleware"
	"github.com/dvloznov/subscription-tracker/internal/categorize"
	"github.com/dvloznov/subscription-tracker/internal/config"
	"github.com/dvloznov/subscription-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/subscription-tracker/internal/infra/bigquery"
	"github.com/dvloznov/subscription-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/subscription-tracker/internal/logger"
	"github.com/dvloznov/subscription-tracker/internal/notionsync"
	"github.com/dvloznov/subscription-tracker/internal/pipeline"
	"github.com/dvloznov/subscription-tracker/internal/store"
	"github.com/dvloznov/subscription-tracker/internal/subscriptions"
)

func main() {
	// Parse command-line flags
	var (
		envFile = flag.String("env-file", ".env", "Optional .env file to load")
		port    = flag.String("port", "", "HTTP server port (overrides SERVER_PORT)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()
	cfg := config.Load(*envFile, log)
	if err := logger.SetLevel(cfg.App.LogLevel); err != nil {
		log.Warn().Err(err).Str("level", cfg.App.LogLevel).Msg("Invalid log level, keeping default")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx := context.Background()

	// Optional cloud dependencies. Each one missing only disables the
	// scan sources or steps that need it.
	deps := pipeline.Dependencies{
		Detector: subscriptions.NewDetector(cfg.Detection.Heuristics(), cfg.Detection.Concurrency),
	}

	if cfg.GCP.Bucket != "" {
		storageService, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Cloud Storage unavailable - gs:// scans disabled")
		} else {
			defer storageService.Close()
			deps.Storage = storageService
		}
	} else {
		log.Warn().Msg("No GCS bucket configured - gs:// scans disabled")
	}

	var categorySource categorize.CategorySource
	repo, err := infraBQ.NewBigQueryRepository(ctx, cfg.GCP.ProjectID, cfg.GCP.DatasetID)
	if err != nil {
		log.Warn().Err(err).Msg("BigQuery unavailable - bigquery scans and snapshots disabled")
	} else {
		defer repo.Close()
		deps.Transactions = repo
		deps.Snapshots = repo
		categorySource = repo
	}

	chain := categorize.Chain{categorize.NewKeywordCategorizer()}
	if cfg.Gemini.Enabled {
		gemini, err := categorize.NewGeminiCategorizer(ctx, cfg.Gemini.Model, categorySource, log)
		if err != nil {
			log.Warn().Err(err).Msg("Gemini unavailable - keyword categorization only")
		} else {
			chain = append(chain, gemini)
		}
	}
	deps.Categorizer = chain

	if cfg.Notion.Token != "" && cfg.Notion.DatabaseID != "" {
		deps.Notion = notionsync.NewNotionClient(cfg.Notion.Token)
		deps.NotionDatabaseID = cfg.Notion.DatabaseID
	}

	subStore := store.NewMemory()
	deps.Store = subStore
	scanPipeline := pipeline.NewScanPipeline(deps)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Queue.Size, jobStore, inmemory.Options{
		Workers:    cfg.Queue.Workers,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: time.Duration(cfg.Queue.RetryDelaySec) * time.Second,
	})

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	log.Info().Int("workers", cfg.Queue.Workers).Int("steps", scanPipeline.Len()).Msg("Starting scan workers")
	if err := jobQueue.Start(workerCtx, pipeline.ScanJobHandler(scanPipeline)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scan workers")
	}

	// Create router
	mux := handlers.NewMux(handlers.Router{
		Scans:         handlers.NewScansHandler(jobQueue, log),
		Jobs:          handlers.NewJobsHandler(jobStore, log),
		Subscriptions: handlers.NewSubscriptionsHandler(subStore, log),
		Calendar:      handlers.NewCalendarHandler(subStore, log),
	})

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
		middleware.Auth(cfg.Server.APIToken),
	)
	if cfg.Server.APIToken == "" {
		log.Warn().Msg("API_TOKEN not set - /api routes are unauthenticated")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.App.Environment).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
