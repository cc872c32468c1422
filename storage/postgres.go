package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yogiovic/sreality-cron-querybot/models"
)

// PostgresStore is the Registry backend for deployments where the daemon
// runs next to a shared database instead of a local file.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS watchdogs (
		id TEXT PRIMARY KEY,
		name TEXT,
		url TEXT NOT NULL,
		webhook_url TEXT,
		created_by TEXT,
		interval_minutes INT NOT NULL DEFAULT 720,
		created_at TIMESTAMPTZ,
		last_check TIMESTAMPTZ,
		seen_ids JSONB NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS check_runs (
		id BIGSERIAL PRIMARY KEY,
		watchdog_id TEXT NOT NULL,
		kind TEXT,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT,
		listings_found INT NOT NULL DEFAULT 0,
		listings_new INT NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_check_runs_watchdog ON check_runs(watchdog_id, started_at);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Load implements Registry.
func (s *PostgresStore) Load(ctx context.Context) ([]models.Watchdog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(name, ''), url, COALESCE(webhook_url, ''), COALESCE(created_by, ''),
			interval_minutes, created_at, last_check, seen_ids
		FROM watchdogs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load watchdogs: %w", err)
	}
	defer rows.Close()

	var watchdogs []models.Watchdog
	for rows.Next() {
		var w models.Watchdog
		var createdAt, lastCheck *time.Time
		if err := rows.Scan(&w.ID, &w.Name, &w.URL, &w.WebhookURL, &w.CreatedBy,
			&w.IntervalMinutes, &createdAt, &lastCheck, &w.SeenIDs); err != nil {
			return nil, fmt.Errorf("scan watchdog: %w", err)
		}
		if createdAt != nil {
			w.CreatedAt = *createdAt
		}
		w.LastCheck = lastCheck
		watchdogs = append(watchdogs, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	NormalizeAll(watchdogs, time.Now().UTC())
	return watchdogs, nil
}

// Save implements Registry with the same replace-everything contract as
// the other backends.
func (s *PostgresStore) Save(ctx context.Context, watchdogs []models.Watchdog) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM watchdogs`); err != nil {
		return fmt.Errorf("clear watchdogs: %w", err)
	}

	for _, w := range watchdogs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO watchdogs (id, name, url, webhook_url, created_by, interval_minutes, created_at, last_check, seen_ids)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			w.ID, w.Name, w.URL, w.WebhookURL, w.CreatedBy,
			w.IntervalMinutes, w.CreatedAt, w.LastCheck, w.SeenIDs); err != nil {
			return fmt.Errorf("insert watchdog %s: %w", w.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.CheckRun) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO check_runs (watchdog_id, kind, started_at, status, listings_found, listings_new, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		run.WatchdogID, run.Kind, run.StartedAt, run.Status,
		run.ListingsFound, run.ListingsNew, run.Error,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.CheckRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE check_runs SET finished_at = $1, status = $2, listings_found = $3, listings_new = $4, error = $5
		WHERE id = $6`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsNew, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}
