package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/eventlens/internal/api"
	"github.com/your-org/eventlens/internal/api/handlers"
	"github.com/your-org/eventlens/internal/api/ws"
	"github.com/your-org/eventlens/internal/auth"
	"github.com/your-org/eventlens/internal/config"
	"github.com/your-org/eventlens/internal/ingest"
	"github.com/your-org/eventlens/internal/notify"
	"github.com/your-org/eventlens/internal/observability"
	"github.com/your-org/eventlens/internal/queue"
	"github.com/your-org/eventlens/internal/recognition"
	"github.com/your-org/eventlens/internal/roster"
	"github.com/your-org/eventlens/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	migrate := flag.Bool("migrate", true, "apply pending database migrations on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting EventLens API service",
		"port", cfg.Server.Port,
		"notify_transport", cfg.Notify.Transport,
		"upload_workers", cfg.Upload.Workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *migrate {
		if err := db.Migrate(ctx); err != nil {
			slog.Error("apply migrations", "error", err)
			os.Exit(1)
		}
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Notification transport
	var (
		sender notify.Sender
		nats   handlers.Pinger
	)
	switch cfg.Notify.Transport {
	case "nats":
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		sender, nats = producer, producer
	case "smtp":
		mailer, err := notify.NewSMTPMailer(cfg.Mail)
		if err != nil {
			slog.Error("configure smtp", "error", err)
			os.Exit(1)
		}
		sender = mailer
	default:
		slog.Error("unknown notify transport", "transport", cfg.Notify.Transport)
		os.Exit(1)
	}

	dispatcher := notify.NewDispatcher(sender, cfg.Notify)
	dispatcher.Start(ctx)

	// Identity provider
	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth)
	if err != nil {
		slog.Error("init oidc verifier", "error", err)
		os.Exit(1)
	}

	// Upload pipeline
	recognizer := recognition.NewClient(cfg.Recognition)
	pipeline := ingest.NewPipeline(minioStore, recognizer, db, dispatcher, ingest.PipelineConfigFrom(cfg))
	orchestrator := ingest.NewOrchestrator(db, roster.NewLoader(db), pipeline, ingest.OrchestratorConfig{
		MaxPhotos: cfg.Upload.MaxPhotos,
		Workers:   cfg.Upload.Workers,
		DBTimeout: cfg.Upload.DBTimeout,
	})

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	router := api.NewRouter(api.RouterConfig{
		MetricsKey:     cfg.Server.MetricsKey,
		Pprof:          cfg.Server.Pprof,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Verifier:       verifier,
		System:         handlers.NewSystemHandler(db, minioStore, nats),
		Uploads:        handlers.NewUploadHandler(orchestrator, db, hub),
		Photographer:   handlers.NewPhotographerHandler(db),
		Attendee:       handlers.NewAttendeeHandler(db, recognizer, minioStore),
	})

	// Batches of 20 photos go through recognition; allow for it.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// In-flight batches finish before their notifications are drained.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	dispatcher.Close()
	cancel()

	slog.Info("API server stopped")
}
