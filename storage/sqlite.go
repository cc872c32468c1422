package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yogiovic/sreality-cron-querybot/models"
)

// SQLiteStore holds operational data: the watchdog registry (as an
// alternative Registry backend), check-run history, and the operator
// command queue polled by the scheduler.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watchdogs (
		id TEXT PRIMARY KEY,
		name TEXT,
		url TEXT NOT NULL,
		webhook_url TEXT,
		created_by TEXT,
		interval_minutes INTEGER DEFAULT 720,
		created_at DATETIME,
		last_check DATETIME,
		seen_ids JSON
	);

	CREATE TABLE IF NOT EXISTS check_runs (
		id INTEGER PRIMARY KEY,
		watchdog_id TEXT NOT NULL,
		kind TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		listings_new INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_watchdog ON check_runs(watchdog_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load implements Registry.
func (s *SQLiteStore) Load(ctx context.Context) ([]models.Watchdog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, webhook_url, created_by, interval_minutes, created_at, last_check, seen_ids
		FROM watchdogs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load watchdogs: %w", err)
	}
	defer rows.Close()

	var watchdogs []models.Watchdog
	for rows.Next() {
		var w models.Watchdog
		var name, webhook, createdBy, seenJSON sql.NullString
		var createdAt, lastCheck sql.NullTime

		if err := rows.Scan(&w.ID, &name, &w.URL, &webhook, &createdBy,
			&w.IntervalMinutes, &createdAt, &lastCheck, &seenJSON); err != nil {
			return nil, fmt.Errorf("scan watchdog: %w", err)
		}

		w.Name = name.String
		w.WebhookURL = webhook.String
		w.CreatedBy = createdBy.String
		if createdAt.Valid {
			w.CreatedAt = createdAt.Time
		}
		if lastCheck.Valid {
			t := lastCheck.Time
			w.LastCheck = &t
		}
		if seenJSON.Valid && seenJSON.String != "" {
			if err := json.Unmarshal([]byte(seenJSON.String), &w.SeenIDs); err != nil {
				return nil, fmt.Errorf("decode seen ids for %s: %w", w.ID, err)
			}
		}

		watchdogs = append(watchdogs, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	NormalizeAll(watchdogs, time.Now().UTC())
	return watchdogs, nil
}

// Save implements Registry: the whole collection is replaced in one
// transaction, mirroring the file backend's full-state writes.
func (s *SQLiteStore) Save(ctx context.Context, watchdogs []models.Watchdog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watchdogs`); err != nil {
		return fmt.Errorf("clear watchdogs: %w", err)
	}

	for _, w := range watchdogs {
		seenJSON, err := json.Marshal(w.SeenIDs)
		if err != nil {
			return fmt.Errorf("encode seen ids for %s: %w", w.ID, err)
		}
		var lastCheck interface{}
		if w.LastCheck != nil {
			lastCheck = *w.LastCheck
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO watchdogs (id, name, url, webhook_url, created_by, interval_minutes, created_at, last_check, seen_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ID, w.Name, w.URL, w.WebhookURL, w.CreatedBy,
			w.IntervalMinutes, w.CreatedAt, lastCheck, string(seenJSON)); err != nil {
			return fmt.Errorf("insert watchdog %s: %w", w.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.CheckRun) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO check_runs (watchdog_id, kind, started_at, status, listings_found, listings_new, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.WatchdogID, run.Kind, run.StartedAt, run.Status, run.ListingsFound, run.ListingsNew, run.Error)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.CheckRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE check_runs SET finished_at = ?, status = ?, listings_found = ?, listings_new = ?, error = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsNew, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// EnqueueCommand inserts an operator command for the scheduler to pick up.
func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, string(cmd), string(data))
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(params, '{}'), created_at
		FROM commands WHERE processed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params string
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Params = json.RawMessage(params)
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, params); err != nil {
			return nil, fmt.Errorf("parse command params: %w", err)
		}
	}
	return params, nil
}
