package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Config controls the engine.
type Config struct {
	Enabled        bool
	Timezone       string // IANA TZ, e.g. "Asia/Singapore"; empty = host local
	DefaultTimeout time.Duration
	HistorySize    int // default 200
}

// Job is a named recurring unit of work.
//
// Jobs receive their dependencies at construction of the Run closure's
// owner, never by capturing mutable globals. A Job with the same ID as an
// already-registered one atomically replaces it.
type Job struct {
	ID      string
	Name    string
	Spec    string // 5-field cron expression
	Window  *TimeWindow
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Outcome of a single firing.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeFailed         Outcome = "failed"
	OutcomeSkippedWindow  Outcome = "skipped_window"
	OutcomeSkippedOverlap Outcome = "skipped_overlap"
)

// RunRecord is one entry in the engine's bounded history ring.
type RunRecord struct {
	RunID    string
	JobID    string
	Name     string
	Started  time.Time
	Duration time.Duration
	Outcome  Outcome
	Error    string
}

// runState serializes re-entrant firings of one job identifier.
type runState struct {
	mu      sync.Mutex
	running bool
}

// tryAcquire marks the job running; false means a previous firing of the
// same identifier is still in flight.
func (st *runState) tryAcquire() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.running {
		return false
	}
	st.running = true
	return true
}

func (st *runState) release() {
	st.mu.Lock()
	st.running = false
	st.mu.Unlock()
}

type jobEntry struct {
	job     Job
	entryID cron.EntryID
	state   *runState
}

// JobInfo describes one registered job for introspection.
type JobInfo struct {
	ID      string
	Name    string
	Spec    string
	Window  string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
}

// Snapshot is a point-in-time view of the engine.
type Snapshot struct {
	Enabled  bool
	Running  bool
	Timezone string
	Jobs     []JobInfo
	History  []RunRecord
}
