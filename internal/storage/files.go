package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jwebster45206/journey-engine/pkg/content"
)

// Content layout under the data directory:
//
//	cities/<name>.json  one content.CityFile each
//	facts.json          JSON array of strings
const (
	citiesDir = "cities"
	factsFile = "facts.json"
)

// LoadCityFiles reads every city file under dataDir/cities.
func LoadCityFiles(dataDir string) ([]content.CityFile, error) {
	var files []content.CityFile

	err := filepath.WalkDir(filepath.Join(dataDir, citiesDir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read city file %s: %w", path, err)
		}
		var f content.CityFile
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("failed to parse city file %s: %w", path, err)
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cities: %w", err)
	}

	return files, nil
}

// LoadFacts reads dataDir/facts.json. A missing file yields no facts.
func LoadFacts(dataDir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, factsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}

	var facts []string
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("failed to parse facts: %w", err)
	}
	return facts, nil
}

// LoadCatalog builds an in-memory content store from dataDir.
func LoadCatalog(dataDir string, rng content.Rand, logger *slog.Logger) (*content.Catalog, error) {
	files, err := LoadCityFiles(dataDir)
	if err != nil {
		return nil, err
	}
	facts, err := LoadFacts(dataDir)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		logger.Warn("No facts found, falling back to the default fact", "data_dir", dataDir)
	}

	catalog, err := content.NewCatalog(files, facts, rng)
	if err != nil {
		return nil, err
	}

	questions := 0
	for _, f := range files {
		questions += len(f.Questions)
	}
	logger.Info("Loaded content", "cities", len(files), "questions", questions, "facts", len(facts))
	return catalog, nil
}
