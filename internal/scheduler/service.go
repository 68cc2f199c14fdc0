package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"gplanner/pkg/logx"
)

// Service fires registered jobs on their cron cadence, gates execution by
// wall-clock window, and guarantees that one job's failure is invisible to
// the cron loop and to sibling jobs.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	jobs   map[string]*jobEntry
	order  []string // registration order, for stable snapshots

	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	bodyWG  sync.WaitGroup

	hmu      sync.Mutex
	history  []RunRecord
	onRecord func(RunRecord) // optional audit hook, called off the engine lock
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		jobs:   map[string]*jobEntry{},
	}
}

// OnRecord installs a hook invoked after every firing outcome except
// window skips (which are trace-only by design).
func (s *Service) OnRecord(fn func(RunRecord)) {
	s.mu.Lock()
	s.onRecord = fn
	s.mu.Unlock()
}

// Register adds or atomically replaces a job by identifier. Replacing
// removes the old cron entry before adding the new one under the engine
// lock, so the replaced definition cannot double-fire.
func (s *Service) Register(job Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("scheduler: job id is required")
	}
	if job.Run == nil {
		return fmt.Errorf("scheduler: job %s has no work function", job.ID)
	}
	if _, err := s.parser.Parse(job.Spec); err != nil {
		return fmt.Errorf("scheduler: job %s spec %q: %w", job.ID, job.Spec, err)
	}
	if job.Name == "" {
		job.Name = job.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, replacing := s.jobs[job.ID]
	entry := &jobEntry{job: job, state: &runState{}}
	if replacing {
		// Keep the run state so an in-flight body still blocks overlap
		// for the replacement.
		entry.state = prev.state
		if s.c != nil {
			s.c.Remove(prev.entryID)
		}
	} else {
		s.order = append(s.order, job.ID)
	}
	s.jobs[job.ID] = entry

	if s.c != nil {
		if err := s.scheduleLocked(entry); err != nil {
			return err
		}
	}
	if replacing {
		s.log.Info("job replaced", logx.String("job", job.ID), logx.String("spec", job.Spec))
	} else {
		s.log.Debug("job registered", logx.String("job", job.ID), logx.String("spec", job.Spec))
	}
	return nil
}

func (s *Service) scheduleLocked(e *jobEntry) error {
	id := e.job.ID
	entryID, err := s.c.AddFunc(e.job.Spec, func() { s.fire(id) })
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", id, err)
	}
	e.entryID = entryID
	return nil
}

// Start builds the cron runner and schedules all registered jobs.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled by config")
		return nil
	}

	s.loc = s.loadLocationLocked()
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))

	for _, id := range s.order {
		if err := s.scheduleLocked(s.jobs[id]); err != nil {
			s.c = nil
			s.cancel()
			return err
		}
	}
	s.c.Start()
	s.started = true
	s.log.Info("scheduler started", logx.Int("jobs", len(s.jobs)), logx.String("tz", s.loc.String()))
	return nil
}

// Stop schedules no new firings and waits for in-flight job bodies until
// ctx expires. Bodies are never interrupted mid-call; their own timeouts
// bound them.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c := s.c
	s.c = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.bodyWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out waiting for in-flight jobs")
	}
	if cancel != nil {
		cancel()
	}
}

// fire is the cron callback: it resolves the current definition under the
// lock (so replacements take effect immediately) and runs the body as an
// independent task.
func (s *Service) fire(id string) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	ctx := s.runCtx
	loc := s.loc
	s.mu.Unlock()
	if !ok || ctx == nil {
		return
	}

	s.bodyWG.Add(1)
	go func() {
		defer s.bodyWG.Done()
		s.dispatch(ctx, e, time.Now().In(loc))
	}()
}

// dispatch runs one firing: window gate, overlap gate, then the body with
// timeout and panic containment. Exposed to tests via dispatchNow.
func (s *Service) dispatch(ctx context.Context, e *jobEntry, now time.Time) {
	job := e.job

	if job.Window != nil && !job.Window.Contains(now) {
		// Outside the window is not an error; keep it at trace level.
		s.log.Trace("job outside window", logx.String("job", job.ID), logx.String("window", job.Window.String()))
		return
	}

	if !e.state.tryAcquire() {
		s.log.Warn("previous firing still running; skipping", logx.String("job", job.ID))
		s.record(RunRecord{
			RunID: uuid.NewString(), JobID: job.ID, Name: job.Name,
			Started: now, Outcome: OutcomeSkippedOverlap,
		})
		return
	}
	defer e.state.release()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout()
	}
	runCtx := ctx
	var cancelRun context.CancelFunc
	if timeout > 0 {
		runCtx, cancelRun = context.WithTimeout(ctx, timeout)
		defer cancelRun()
	}

	start := time.Now()
	err := s.runBody(runCtx, job)
	dur := time.Since(start)

	rec := RunRecord{
		RunID: uuid.NewString(), JobID: job.ID, Name: job.Name,
		Started: start, Duration: dur,
	}
	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
		s.log.Warn("job failed", logx.String("job", job.ID), logx.Duration("dur", dur), logx.Err(err))
	} else {
		rec.Outcome = OutcomeCompleted
		s.log.Info("job completed", logx.String("job", job.ID), logx.Duration("dur", dur))
	}
	s.record(rec)
}

// runBody is the containment boundary: any error or panic from the work
// function stops here, never in the cron loop.
func (s *Service) runBody(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("panic in job body", logx.String("job", job.ID), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	return job.Run(ctx)
}

func (s *Service) record(rec RunRecord) {
	s.hmu.Lock()
	s.history = append(s.history, rec)
	size := s.cfg.HistorySize
	if size <= 0 {
		size = 200
	}
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()

	s.mu.Lock()
	hook := s.onRecord
	s.mu.Unlock()
	if hook != nil {
		hook(rec)
	}
}

func (s *Service) defaultTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.DefaultTimeout
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Location returns the engine's scheduling location.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc != nil {
		return s.loc
	}
	return time.Local
}

// Snapshot returns the engine state for introspection.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Enabled:  s.cfg.Enabled,
		Running:  s.started,
		Timezone: s.cfg.Timezone,
	}
	for _, id := range s.order {
		e := s.jobs[id]
		info := JobInfo{
			ID: e.job.ID, Name: e.job.Name, Spec: e.job.Spec, Timeout: e.job.Timeout,
		}
		if e.job.Window != nil {
			info.Window = e.job.Window.String()
		}
		if s.c != nil {
			ce := s.c.Entry(e.entryID)
			info.Next, info.Prev = ce.Next, ce.Prev
		}
		snap.Jobs = append(snap.Jobs, info)
	}
	s.mu.Unlock()

	s.hmu.Lock()
	snap.History = append([]RunRecord(nil), s.history...)
	s.hmu.Unlock()
	return snap
}
