package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yogiovic/sreality-cron-querybot/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RegistryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	checked := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	in := []models.Watchdog{
		{
			ID: "w1", Name: "first", URL: "https://www.sreality.cz/hledani/prodej/byty",
			WebhookURL: "https://hooks.example/1", SeenIDs: []string{"a", "b"},
			IntervalMinutes: 60, CreatedAt: checked, LastCheck: &checked,
		},
		{
			ID: "w2", Name: "second", URL: "https://www.sreality.cz/hledani/pronajem/domy",
			IntervalMinutes: 720, CreatedAt: checked.Add(time.Hour),
		},
	}

	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("expected 2 watchdogs, got %d", len(out))
	}
	if out[0].ID != "w1" || out[1].ID != "w2" {
		t.Fatalf("wrong order or ids: %s, %s", out[0].ID, out[1].ID)
	}
	if len(out[0].SeenIDs) != 2 || out[0].SeenIDs[1] != "b" {
		t.Fatalf("seen ids lost: %v", out[0].SeenIDs)
	}
	if out[0].LastCheck == nil || !out[0].LastCheck.Equal(checked) {
		t.Fatalf("last check lost: %v", out[0].LastCheck)
	}
	if out[1].LastCheck != nil {
		t.Fatalf("nil last check not preserved: %v", out[1].LastCheck)
	}

	// Save replaces the full collection.
	if err := store.Save(ctx, in[:1]); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	out, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != "w1" {
		t.Fatalf("full-state save did not replace: %v", out)
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)

	run := &models.CheckRun{
		WatchdogID: "w1",
		Kind:       "recheck",
		StartedAt:  time.Now().UTC(),
		Status:     models.RunStatusRunning,
	}
	id, err := store.CreateRun(context.Background(), run)
	if err != nil {
		t.Fatalf("create run failed: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a run id")
	}

	run.ID = id
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ListingsFound = 40
	run.ListingsNew = 2
	if err := store.UpdateRun(context.Background(), run); err != nil {
		t.Fatalf("update run failed: %v", err)
	}
}

func TestSQLiteStore_CommandQueue(t *testing.T) {
	store := newTestStore(t)

	err := store.EnqueueCommand(models.CmdAddWatchdog, &models.CommandParams{
		URL:          "https://www.sreality.cz/hledani/prodej/byty",
		WebhookURL:   "https://hooks.example/1",
		ChecksPerDay: 4,
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	pending, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending command, got %d", len(pending))
	}
	if pending[0].Command != models.CmdAddWatchdog {
		t.Fatalf("unexpected command %s", pending[0].Command)
	}

	params, err := store.ParseCommandParams(&pending[0])
	if err != nil {
		t.Fatalf("parse params failed: %v", err)
	}
	if params.ChecksPerDay != 4 || params.URL == "" {
		t.Fatalf("params mangled: %+v", params)
	}

	if err := store.MarkCommandProcessed(pending[0].ID); err != nil {
		t.Fatalf("mark processed failed: %v", err)
	}
	pending, err = store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("processed command still pending")
	}
}
