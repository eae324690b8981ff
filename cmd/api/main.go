package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/journey-engine/internal/config"
	"github.com/jwebster45206/journey-engine/internal/handlers"
	"github.com/jwebster45206/journey-engine/internal/logger"
	"github.com/jwebster45206/journey-engine/internal/middleware"
	"github.com/jwebster45206/journey-engine/internal/storage"
	"github.com/jwebster45206/journey-engine/internal/storage/sqlite"
	"github.com/jwebster45206/journey-engine/internal/turns"
	"github.com/jwebster45206/journey-engine/pkg/content"
	pkgstorage "github.com/jwebster45206/journey-engine/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Journey Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"content_backend", cfg.ContentBackend)

	store, err := openStorage(cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	contentStore, closeContent, err := openContent(cfg, log)
	if err != nil {
		log.Error("Failed to load content", "error", err)
		os.Exit(1)
	}

	processor := turns.NewProcessor(store, contentStore, log, nil)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, log))
	mux.Handle("/v1/turns", handlers.NewTurnHandler(processor, log))
	mux.Handle("/v1/cities", handlers.NewCitiesHandler(contentStore, log))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Logger(log)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}
	if err := closeContent(); err != nil {
		log.Error("Error closing content store", "error", err)
	}

	log.Info("Server exited")
}

func openStorage(cfg *config.Config, log *slog.Logger) (pkgstorage.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		log.Warn("Using in-memory storage; progress is lost on restart")
		mock := pkgstorage.NewMockStorage()
		mock.SetPlayerNumberRetries(cfg.PlayerNumberRetries)
		return mock, nil
	case config.StorageRedis:
		rs, err := storage.NewRedisStorage(cfg.RedisURL, log, storage.Options{
			PlayerNumberRetries: cfg.PlayerNumberRetries,
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := rs.WaitForConnection(ctx, 30, 2*time.Second); err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func openContent(cfg *config.Config, log *slog.Logger) (content.Store, func() error, error) {
	switch cfg.ContentBackend {
	case config.ContentSQLite:
		cs, err := sqlite.New(cfg.SQLitePath, nil, log)
		if err != nil {
			return nil, nil, err
		}
		return cs, cs.Close, nil
	case config.ContentFile:
		catalog, err := storage.LoadCatalog(cfg.DataDir, nil, log)
		if err != nil {
			return nil, nil, err
		}
		return catalog, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown content backend %q", cfg.ContentBackend)
	}
}
