// Package syncer maintains the latest calendar/tasks snapshot shared by
// the planning and notification jobs.
package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"gplanner/internal/google"
	"gplanner/pkg/logx"
)

// Provider is the slice of the calendar/tasks client the syncer needs.
type Provider interface {
	FetchEvents(ctx context.Context) []google.Event
	FetchTasks(ctx context.Context) []google.Task
}

// Snapshot is one immutable sync result. Readers receive the whole value
// or the previous whole value, never a mix.
type Snapshot struct {
	Events []google.Event
	Tasks  []google.Task
	AsOf   time.Time
}

type Syncer struct {
	provider Provider
	log      logx.Logger
	now      func() time.Time

	current atomic.Pointer[Snapshot]
}

func New(provider Provider, log logx.Logger) *Syncer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Syncer{provider: provider, log: log, now: time.Now}
}

// Sync fetches events and tasks and installs a fresh snapshot. Each fetch
// degrades independently to empty, so a partially reachable provider still
// yields a usable snapshot.
func (s *Syncer) Sync(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Events: s.provider.FetchEvents(ctx),
		Tasks:  s.provider.FetchTasks(ctx),
		AsOf:   s.now(),
	}
	s.current.Store(snap)
	s.log.Info("sync completed",
		logx.Int("events", len(snap.Events)),
		logx.Int("tasks", len(snap.Tasks)))
	return snap
}

// Current returns the latest snapshot, or nil before the first sync.
func (s *Syncer) Current() *Snapshot {
	return s.current.Load()
}
