// Command seed loads the city files and facts under DATA_DIR into the
// SQLite content database at SQLITE_PATH, replacing whatever was there.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jwebster45206/journey-engine/internal/config"
	"github.com/jwebster45206/journey-engine/internal/logger"
	"github.com/jwebster45206/journey-engine/internal/storage"
	"github.com/jwebster45206/journey-engine/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log := logger.Setup(cfg)

	files, err := storage.LoadCityFiles(cfg.DataDir)
	if err != nil {
		log.Error("Failed to read city files", "data_dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	facts, err := storage.LoadFacts(cfg.DataDir)
	if err != nil {
		log.Error("Failed to read facts", "data_dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	cs, err := sqlite.New(cfg.SQLitePath, nil, log)
	if err != nil {
		log.Error("Failed to open content database", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer cs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := cs.Seed(ctx, files, facts); err != nil {
		log.Error("Failed to seed content database", "error", err)
		cs.Close()
		os.Exit(1)
	}

	log.Info("Content database seeded", "path", cfg.SQLitePath, "cities", len(files), "facts", len(facts))
}
