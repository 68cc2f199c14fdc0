// Package app wires configuration, credentials, collaborators and the
// scheduler into one runnable daemon.
package app

import (
	"context"
	"fmt"
	"time"

	"gplanner/internal/auth"
	"gplanner/internal/config"
	"gplanner/internal/envfile"
	"gplanner/internal/gemini"
	"gplanner/internal/google"
	"gplanner/internal/observability/pprof"
	"gplanner/internal/planner"
	"gplanner/internal/scheduler"
	"gplanner/internal/storage"
	"gplanner/internal/syncer"
	"gplanner/internal/telegram"
	"gplanner/pkg/logx"
	"gplanner/pkg/systemd"
)

const refreshTimeout = 15 * time.Second

type App struct {
	cfgm *config.Manager
	log  logx.Logger
	loc  *time.Location

	store   storage.Store // nil when disabled
	authMgr *auth.Manager
	syncer  *syncer.Syncer
	planner *planner.Planner
	gem     *gemini.Client   // nil without an API key
	sender  *telegram.Sender // nil without token/chat

	sched *scheduler.Service
	prof  *pprof.Service // nil when disabled

	cfgCh  chan *config.Config
	cancel context.CancelFunc
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, nil)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	a := &App{cfgm: cfgm, log: log.With(logx.String("comp", "app")), loc: loc}

	// Audit storage (optional).
	if cfg.Storage != nil {
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if st != nil {
			a.store = st
			a.log.Info("audit storage enabled", logx.String("driver", cfg.Storage.Driver))
		}
	}

	// Credential lifecycle.
	file, err := envfile.Load(cfg.Google.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("load env file %s: %w", cfg.Google.EnvFile, err)
	}
	authStore := auth.NewStore(auth.StoreConfig{
		DefaultTokenEndpoint: cfg.Google.TokenEndpoint,
		Scopes:               cfg.Google.Scopes,
	}, auth.OSVars{}, file, log.With(logx.String("comp", "auth")))
	authority := auth.NewHTTPAuthority(refreshTimeout, log.With(logx.String("comp", "auth")))
	a.authMgr = auth.NewManager(authStore, authority, log.With(logx.String("comp", "auth")))

	// Provider + collaborators.
	httpTimeout, err := config.ParseDurationOrDefault("google.http_timeout", cfg.Google.HTTPTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	provider := google.NewClient(google.Config{
		Timeout:        httpTimeout,
		SyncWindowDays: cfg.Google.SyncWindowDays,
	}, a.authMgr.Token, log.With(logx.String("comp", "google")))
	a.syncer = syncer.New(provider, log.With(logx.String("comp", "syncer")))

	if cfg.Gemini.APIKey != "" {
		geminiTimeout, err := config.ParseDurationOrDefault("gemini.timeout", cfg.Gemini.Timeout, 45*time.Second)
		if err != nil {
			return nil, err
		}
		gem, err := gemini.NewClient(gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			Timeout: geminiTimeout,
		}, log.With(logx.String("comp", "gemini")))
		if err != nil {
			return nil, err
		}
		a.gem = gem
	} else {
		a.log.Warn("gemini api key not configured; plans fall back to the default template")
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		sender, err := telegram.New(telegram.Config{
			Token:      cfg.Telegram.Token,
			ChatID:     cfg.Telegram.ChatID,
			RatePerSec: cfg.Telegram.RatePerSec,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		a.sender = sender
	} else {
		a.log.Warn("telegram not configured; notifications disabled")
	}

	var recommender planner.Recommender
	if a.gem != nil {
		recommender = a.gem
	}
	var auditor planner.Auditor
	if a.store != nil {
		auditor = a.store
	}
	a.planner = planner.New(provider, recommender, a.syncer, auditor, loc,
		log.With(logx.String("comp", "planner")))

	// Scheduler.
	defaultTimeout, err := config.ParseDurationOrDefault("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout, 90*time.Second)
	if err != nil {
		return nil, err
	}
	a.sched = scheduler.New(scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Timezone:       cfg.Timezone,
		DefaultTimeout: defaultTimeout,
		HistorySize:    cfg.Scheduler.HistorySize,
	}, log.With(logx.String("comp", "scheduler")))
	if a.store != nil {
		a.sched.OnRecord(a.recordRun)
	}

	if cfg.Pprof != nil && cfg.Pprof.Enabled {
		a.prof = pprof.New(pprof.Config{Enabled: true, Addr: cfg.Pprof.Addr},
			log.With(logx.String("comp", "pprof")))
	}

	if err := a.registerJobs(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// registerJobs (re)installs the recurring jobs from config. Register is
// replace-by-ID, so reloads just call this again.
func (a *App) registerJobs(cfg *config.Config) error {
	planWindow, err := scheduler.ParseWindow(cfg.Jobs.Plan.Window)
	if err != nil {
		return fmt.Errorf("jobs.plan.window: %w", err)
	}
	planTimeout, err := config.ParseDurationOrDefault("jobs.plan.timeout", cfg.Jobs.Plan.Timeout, 0)
	if err != nil {
		return err
	}
	pj := &planJob{
		auth:    a.authMgr,
		syncer:  a.syncer,
		planner: a.planner,
		log:     a.log.With(logx.String("job", planJobID)),
	}
	if err := a.sched.Register(scheduler.Job{
		ID:      planJobID,
		Name:    "daily plan",
		Spec:    cfg.Jobs.Plan.Spec,
		Window:  planWindow,
		Timeout: planTimeout,
		Run:     pj.Run,
	}); err != nil {
		return err
	}

	if a.sender == nil || a.gem == nil {
		a.log.Info("notify job not registered", logx.Bool("telegram", a.sender != nil), logx.Bool("gemini", a.gem != nil))
		return nil
	}
	notifyWindow, err := scheduler.ParseWindow(cfg.Jobs.Notify.Window)
	if err != nil {
		return fmt.Errorf("jobs.notify.window: %w", err)
	}
	notifyTimeout, err := config.ParseDurationOrDefault("jobs.notify.timeout", cfg.Jobs.Notify.Timeout, 0)
	if err != nil {
		return err
	}
	nj := &notifyJob{
		auth:        a.authMgr,
		syncer:      a.syncer,
		recommender: a.gem,
		sender:      a.sender,
		loc:         a.loc,
		log:         a.log.With(logx.String("job", notifyJobID)),
		now:         time.Now,
	}
	return a.sched.Register(scheduler.Job{
		ID:      notifyJobID,
		Name:    "daily notification",
		Spec:    cfg.Jobs.Notify.Spec,
		Window:  notifyWindow,
		Timeout: notifyTimeout,
		Run:     nj.Run,
	})
}

// recordRun forwards a firing outcome to the audit store, best-effort.
func (a *App) recordRun(rec scheduler.RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.store.AppendRun(ctx, storage.RunRecord{
		RunID:   rec.RunID,
		JobID:   rec.JobID,
		Name:    rec.Name,
		Started: rec.Started,
		TookMS:  rec.Duration.Milliseconds(),
		Outcome: string(rec.Outcome),
		Error:   rec.Error,
	})
	if err != nil {
		a.log.Warn("run audit append failed", logx.String("job", rec.JobID), logx.Err(err))
	}
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.sched.Start(runCtx); err != nil {
		cancel()
		return err
	}
	if a.prof != nil {
		if err := a.prof.Start(); err != nil {
			a.log.Warn("pprof server failed to start", logx.Err(err))
		}
	}

	// Hot reload: watch the file and reapply job triggers on change.
	a.cfgCh = a.cfgm.Subscribe(1)
	go func() {
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()
	go func() {
		for cfg := range a.cfgCh {
			if err := a.registerJobs(cfg); err != nil {
				a.log.Error("config reload: job re-register failed", logx.Err(err))
				continue
			}
			a.log.Info("job triggers reapplied from config")
		}
	}()

	if _, err := systemd.NotifyReady(); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if _, err := systemd.NotifyStopping(); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}

	a.sched.Stop(ctx)
	if a.prof != nil {
		a.prof.Stop(ctx)
	}
	if a.cfgCh != nil {
		a.cfgm.Unsubscribe(a.cfgCh)
		a.cfgCh = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	return nil
}

// Scheduler exposes the engine for introspection.
func (a *App) Scheduler() *scheduler.Service { return a.sched }
