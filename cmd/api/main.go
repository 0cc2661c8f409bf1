package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photoid/internal/api"
	"github.com/your-org/photoid/internal/api/ws"
	"github.com/your-org/photoid/internal/cache"
	"github.com/your-org/photoid/internal/config"
	"github.com/your-org/photoid/internal/ingest"
	"github.com/your-org/photoid/internal/models"
	"github.com/your-org/photoid/internal/observability"
	"github.com/your-org/photoid/internal/queue"
	"github.com/your-org/photoid/internal/storage"
	"github.com/your-org/photoid/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting photoid API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background(), cfg.Vision.EmbeddingDim); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	coordinator := ingest.NewCoordinator(db, minioStore, producer)
	listings := cache.NewTTL[[]models.Photo](cfg.Cache.ListingTTL)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume resolution results and broadcast them to connected clients
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create result consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeResults(ctx, "api-results", func(ctx context.Context, msg jetstream.Msg) error {
		var result models.ResolveResult
		if err := json.Unmarshal(msg.Data(), &result); err != nil {
			return err
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:       "photo_resolved",
			PhotoID:    result.PhotoID,
			Faces:      result.Faces,
			NewPersons: result.NewPersons,
			ResolvedAt: result.ResolvedAt.Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		slog.Warn("start result consumer", "error", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Server:      cfg.Server,
		DB:          db,
		MinIO:       minioStore,
		Producer:    producer,
		Coordinator: coordinator,
		Listings:    listings,
		Hub:         hub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
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
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
