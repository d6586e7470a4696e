package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/stratix/okrimport/internal/config"
	"github.com/stratix/okrimport/internal/db"
	"github.com/stratix/okrimport/internal/importer"
	"github.com/stratix/okrimport/internal/middleware"
	"github.com/stratix/okrimport/internal/parser"
	"github.com/stratix/okrimport/internal/progress"
	"github.com/stratix/okrimport/internal/repository"
	"github.com/stratix/okrimport/internal/storage"
	"github.com/stratix/okrimport/migrations"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(migrations.FS, cfg.Database.URL()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Object store holding uploaded import files
	store, err := storage.NewClient(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.Bucket,
		cfg.Storage.UseSSL,
	)
	if err != nil {
		log.Fatalf("Failed to connect to object store: %v", err)
	}

	// Create repositories
	jobRepo := repository.NewImportJobRepository(conn.Pool)
	itemRepo := repository.NewImportItemRepository(conn.Pool)
	okrRepo := repository.NewOKRRepository(conn.Pool)

	// Create import pipeline
	broadcaster := progress.NewBroadcaster()
	service := importer.NewService(
		jobRepo,
		itemRepo,
		okrRepo,
		store,
		broadcaster,
		importer.WithSyncThreshold(cfg.Import.SyncThreshold),
		importer.WithSyncWait(cfg.Import.SyncWait),
		importer.WithBatchSize(cfg.Import.BatchSize),
		importer.WithDedupWindow(cfg.Import.DedupWindow),
		importer.WithStaleJobAge(cfg.Import.StaleJobAge),
		importer.WithLimits(parser.Limits{
			MaxRows:  cfg.Import.MaxRows,
			MaxBytes: cfg.Import.MaxFileBytes,
		}),
		importer.WithWriteRate(cfg.Import.WritesPerSecond),
	)

	sseHandler := progress.NewSSEHandler(broadcaster, service.ProgressSnapshot, cfg.Import.HeartbeatInterval)
	importHandler := importer.NewHTTPHandler(service, sseHandler)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	mux := http.NewServeMux()
	mux.Handle("/api/imports/", middleware.LoggingMiddleware(
		middleware.ScopeMiddleware(importHandler),
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Create HTTP server. No WriteTimeout: SSE connections stay open.
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     corsHandler.Handler(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Reap jobs stuck in processing, e.g. after a crashed worker
	go func() {
		ticker := time.NewTicker(cfg.Import.StaleJobAge / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := service.ReapStale(ctx); err != nil {
					log.Printf("[import] stale job reaper failed: %v", err)
				}
			}
		}
	}()

	// Start server in a goroutine
	go func() {
		log.Printf("Starting import API server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
