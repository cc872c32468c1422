package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yogiovic/sreality-cron-querybot/models"
)

// FileRegistry keeps the watchdog collection in a single JSON file,
// format-compatible with registries written by earlier versions (missing
// interval/created fields get defaults on load).
type FileRegistry struct {
	mu   sync.Mutex
	path string
}

func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

func (r *FileRegistry) Load(ctx context.Context) ([]models.Watchdog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry %s: %w", r.path, err)
	}

	var watchdogs []models.Watchdog
	if err := json.Unmarshal(data, &watchdogs); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.path, err)
	}

	NormalizeAll(watchdogs, time.Now().UTC())
	return watchdogs, nil
}

// Save writes through a temp file and renames it into place, so a crash
// mid-write never leaves a truncated registry behind.
func (r *FileRegistry) Save(ctx context.Context, watchdogs []models.Watchdog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(watchdogs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".watchdogs-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp registry: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
