package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdAddWatchdog    CommandType = "add_watchdog"
	CmdRemoveWatchdog CommandType = "remove_watchdog"
	CmdResetWatchdog  CommandType = "reset_watchdog"
	CmdSetInterval    CommandType = "set_interval"
	CmdCheckNow       CommandType = "check_now"
)

// Command is one operator request queued by an external surface (chat bot,
// CLI, cron job) and polled by the scheduler.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	URL          string `json:"url,omitempty"`
	WebhookURL   string `json:"webhook_url,omitempty"`
	WatchdogID   string `json:"watchdog_id,omitempty"`
	CreatedBy    string `json:"created_by,omitempty"`
	ChecksPerDay int    `json:"checks_per_day,omitempty"`
}
