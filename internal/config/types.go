package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the whole process configuration, resolved once at startup by
// Load() and handed to each component as an explicit struct. Components
// never read the environment themselves; secret overrides are applied by
// ApplyEnv before validation.
type Config struct {
	// Timezone is the IANA zone used for scheduling and plan dates,
	// e.g. "Asia/Singapore". Empty means the host local zone.
	Timezone string `json:"timezone,omitempty"`

	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Google   GoogleConfig   `json:"google"`
	Gemini   GeminiConfig   `json:"gemini"`

	Scheduler SchedulerConfig `json:"scheduler"`
	Jobs      JobsConfig      `json:"jobs"`

	Storage *StorageConfig `json:"storage,omitempty"`
	Pprof   *PprofConfig   `json:"pprof,omitempty"`
}

// PprofConfig enables the loopback profiling server.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:6060"
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via TELEGRAM_BOT_TOKEN.
	Token string `json:"token,omitempty"`
	// ChatID may be supplied via TELEGRAM_CHAT_ID.
	ChatID     int64 `json:"chat_id,omitempty"`
	RatePerSec int   `json:"rate_per_sec,omitempty"` // default 1
}

// GoogleConfig covers the credential sources and the provider client.
// The tokens themselves live in the environment and the durable env file,
// not here.
type GoogleConfig struct {
	// EnvFile is the durable credential sink (flat KEY=value file).
	EnvFile string `json:"env_file,omitempty"` // default "./.env"

	// TokenEndpoint is used when a resolved credential carries none.
	TokenEndpoint string `json:"token_endpoint,omitempty"` // default Google's

	Scopes []string `json:"scopes,omitempty"`

	// HTTPTimeout is a Go duration string bounding every provider call.
	HTTPTimeout string `json:"http_timeout,omitempty"` // default "30s"

	// SyncWindowDays is how far ahead calendar events are fetched.
	SyncWindowDays int `json:"sync_window_days,omitempty"` // default 7
}

type GeminiConfig struct {
	// APIKey may be supplied via GEMINI_API_KEY.
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`   // default "gemini-2.5-flash"
	Timeout string `json:"timeout,omitempty"` // default "45s"
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// DefaultTimeout is a Go duration string applied to jobs without one.
	DefaultTimeout string `json:"default_timeout,omitempty"` // default "90s"
	HistorySize    int    `json:"history_size,omitempty"`    // default 200
}

// JobConfig describes one recurring job's trigger.
//
// Spec is a 5-field cron expression; Window is "HH:MM-HH:MM" and may wrap
// past midnight (start > end). An empty window means the job always runs.
type JobConfig struct {
	Spec    string `json:"spec,omitempty"`
	Window  string `json:"window,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type JobsConfig struct {
	Plan   JobConfig `json:"plan,omitempty"`
	Notify JobConfig `json:"notify,omitempty"`
}

// StorageConfig controls the optional audit store.
//
// Driver values: "sqlite", "file", "" or "none" (disabled).
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

const (
	defaultTokenEndpoint = "https://oauth2.googleapis.com/token"
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultPlanSpec      = "0,30 * * * *"
	defaultPlanWindow    = "07:30-07:35"
	defaultNotifySpec    = "0,30 * * * *"
	defaultNotifyWindow  = "07:30-00:30"
)

var defaultScopes = []string{
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/tasks",
}

// ApplyEnv overlays secrets from the given lookup (normally os.LookupEnv).
// File values win over the environment only when explicitly set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if c.Telegram.Token == "" {
		if v, ok := lookup("TELEGRAM_BOT_TOKEN"); ok && strings.TrimSpace(v) != "" {
			c.Telegram.Token = strings.TrimSpace(v)
		}
	}
	if c.Telegram.ChatID == 0 {
		if v, ok := lookup("TELEGRAM_CHAT_ID"); ok && strings.TrimSpace(v) != "" {
			var id int64
			if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &id); err != nil {
				return fmt.Errorf("TELEGRAM_CHAT_ID must be an integer, got %q", v)
			}
			c.Telegram.ChatID = id
		}
	}
	if c.Gemini.APIKey == "" {
		if v, ok := lookup("GEMINI_API_KEY"); ok && strings.TrimSpace(v) != "" {
			c.Gemini.APIKey = strings.TrimSpace(v)
		}
	}
	return nil
}

// Normalize fills defaults in place. Called after decode + ApplyEnv.
func (c *Config) Normalize() {
	if c.Google.EnvFile == "" {
		c.Google.EnvFile = "./.env"
	}
	if c.Google.TokenEndpoint == "" {
		c.Google.TokenEndpoint = defaultTokenEndpoint
	}
	if len(c.Google.Scopes) == 0 {
		c.Google.Scopes = append([]string(nil), defaultScopes...)
	}
	if c.Google.SyncWindowDays <= 0 {
		c.Google.SyncWindowDays = 7
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = 1
	}
	if c.Scheduler.HistorySize <= 0 {
		c.Scheduler.HistorySize = 200
	}
	if c.Jobs.Plan.Spec == "" {
		c.Jobs.Plan.Spec = defaultPlanSpec
	}
	if c.Jobs.Plan.Window == "" {
		c.Jobs.Plan.Window = defaultPlanWindow
	}
	if c.Jobs.Notify.Spec == "" {
		c.Jobs.Notify.Spec = defaultNotifySpec
	}
	if c.Jobs.Notify.Window == "" {
		c.Jobs.Notify.Window = defaultNotifyWindow
	}
}

// Validate rejects configs the app cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseDurationField("google.http_timeout", c.Google.HTTPTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("gemini.timeout", c.Gemini.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("scheduler.default_timeout", c.Scheduler.DefaultTimeout); err != nil {
		errs = append(errs, err)
	}
	for _, j := range []struct {
		name string
		cfg  JobConfig
	}{{"jobs.plan", c.Jobs.Plan}, {"jobs.notify", c.Jobs.Notify}} {
		if _, err := ParseDurationField(j.name+".timeout", j.cfg.Timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
