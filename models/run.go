package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CheckRun records one check cycle for a watchdog, for operational
// introspection. A failed run leaves the watchdog state untouched; the run
// row is where the failure is surfaced.
type CheckRun struct {
	ID            int64      `json:"id" db:"id"`
	WatchdogID    string     `json:"watchdog_id" db:"watchdog_id"`
	Kind          string     `json:"kind" db:"kind"` // seed or recheck
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	ListingsNew   int        `json:"listings_new" db:"listings_new"`
	Error         string     `json:"error,omitempty" db:"error"`
}
