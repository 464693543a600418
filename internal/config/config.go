// Package config loads the daemon configuration from YAML (or JSON),
// validates it, and watches the file for changes so log levels and
// contact lists can be reapplied without a restart.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"notifyd/internal/contacts"
)

type Config struct {
	Logging       Logging            `json:"logging"`
	Storage       Storage            `json:"storage"`
	Notifications Notifications      `json:"notifications"`
	Scheduler     Scheduler          `json:"scheduler"`
	Telegram      Telegram           `json:"telegram"`
	Contacts      []contacts.Contact `json:"contacts"`
}

type Logging struct {
	Level   string  `json:"level"`
	Console bool    `json:"console"`
	File    LogFile `json:"file"`
}

type LogFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type Storage struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// DSN supports ${ENV} expansion so credentials can live in the
	// environment (or a .env file) instead of the config file.
	DSN         string `json:"dsn"`
	BusyTimeout string `json:"busy_timeout"`
}

type Notifications struct {
	ChunkSize int    `json:"chunk_size"`
	FromEmail string `json:"from_email"`
	SMSNumber string `json:"sms_number"`
	// RatePerSec caps outbound sends across all channels.
	RatePerSec int `json:"rate_per_sec"`
	// Schedule is the cron spec of the scheduled-mode run.
	Schedule string `json:"schedule"`
	// ReconcileSchedule is the cron spec of the provider status job.
	// Empty disables reconciliation.
	ReconcileSchedule string `json:"reconcile_schedule"`
}

type Scheduler struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone"`
}

type Telegram struct {
	Enabled bool `json:"enabled"`
	// Token supports ${ENV} expansion.
	Token string `json:"token"`
}

// Default returns the configuration used when a field is absent.
func Default() *Config {
	return &Config{
		Logging: Logging{Level: "INFO", Console: true},
		Storage: Storage{Driver: "sqlite", Path: "./data/notifyd.db", BusyTimeout: "5s"},
		Notifications: Notifications{
			ChunkSize:  50,
			RatePerSec: 10,
			Schedule:   "@daily",
		},
		Scheduler: Scheduler{Enabled: true},
	}
}

// Normalize fills defaults and expands environment references in
// secret-bearing fields.
func (c *Config) Normalize() {
	def := Default()
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = def.Logging.Level
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = def.Storage.Driver
	}
	if c.Notifications.ChunkSize <= 0 {
		c.Notifications.ChunkSize = def.Notifications.ChunkSize
	}
	if strings.TrimSpace(c.Notifications.Schedule) == "" {
		c.Notifications.Schedule = def.Notifications.Schedule
	}
	c.Storage.DSN = os.ExpandEnv(c.Storage.DSN)
	c.Telegram.Token = os.ExpandEnv(c.Telegram.Token)
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if _, err := c.StorageBusyTimeout(); err != nil {
		return err
	}
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}
	seen := make(map[string]bool, len(c.Contacts))
	for _, ct := range c.Contacts {
		if strings.TrimSpace(ct.Ref) == "" {
			return fmt.Errorf("contacts: every contact needs a ref")
		}
		if seen[ct.Ref] {
			return fmt.Errorf("contacts: duplicate ref %q", ct.Ref)
		}
		seen[ct.Ref] = true
	}
	return nil
}

// StorageBusyTimeout parses the sqlite busy timeout.
func (c *Config) StorageBusyTimeout() (time.Duration, error) {
	s := strings.TrimSpace(c.Storage.BusyTimeout)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("storage.busy_timeout: invalid duration %q: %w", c.Storage.BusyTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("storage.busy_timeout: duration must be >= 0")
	}
	return d, nil
}
