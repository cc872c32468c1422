package storage

import (
	"context"
	"time"

	"github.com/yogiovic/sreality-cron-querybot/models"
)

// Registry persists the full ordered watchdog collection. Load-full /
// save-full is deliberately the unit of atomicity: every operation reads
// the latest state at its start and writes the whole updated state at its
// end, so no in-process lock is shared between the sweep and the command
// surface. Concurrent writers race last-writer-wins, which is acceptable
// for an operator-driven, low-frequency system.
type Registry interface {
	Load(ctx context.Context) ([]models.Watchdog, error)
	Save(ctx context.Context, watchdogs []models.Watchdog) error
}

// NormalizeAll applies backward-compatible defaults to freshly loaded
// records.
func NormalizeAll(watchdogs []models.Watchdog, now time.Time) {
	for i := range watchdogs {
		watchdogs[i].Normalize(now)
	}
}
