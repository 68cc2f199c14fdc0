package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures audit storage.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord records one scheduler firing outcome.
// Keep it compact and schema-stable.
type RunRecord struct {
	RunID   string    `json:"run_id"`
	JobID   string    `json:"job_id"`
	Name    string    `json:"name,omitempty"`
	Started time.Time `json:"started"`
	TookMS  int64     `json:"took_ms"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
}

// ArtifactRecord records one daily plan materialization.
type ArtifactRecord struct {
	Date      string    `json:"date"` // plan date, YYYY-MM-DD
	ListID    string    `json:"list_id"`
	Title     string    `json:"title"`
	Entries   int       `json:"entries"`
	Partial   bool      `json:"partial"`
	Existing  bool      `json:"existing"`
	CreatedAt time.Time `json:"created_at"`
}
