// Package config defines the bot configuration and how it is loaded.
package config

import "runtime"

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BotToken is the Telegram bot token. Without it only the HTTP side runs.
	BotToken string `koanf:"bot_token"`
	// PollTimeoutSec is the Telegram long-poll timeout.
	PollTimeoutSec int `koanf:"poll_timeout_sec"`

	// StoreDriver selects where chats are persisted: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`
	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the in-memory message queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of message worker partitions.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets how many transport message ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// SchedulerIntervalSec is how often chats are checked for time driven
	// jobs, at most once a minute.
	SchedulerIntervalSec int `koanf:"scheduler_interval_sec"`

	// DefaultTimezone is the timezone of newly created chats.
	DefaultTimezone string `koanf:"default_timezone"`

	// MaxLeaderboardLimit caps GET /chats/{id}/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ShutdownTimeoutSec bounds graceful shutdown.
	ShutdownTimeoutSec int `koanf:"shutdown_timeout_sec"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		PollTimeoutSec:       30,
		StoreDriver:          StoreMemory,
		DBPath:               "danktime.db",
		QueueSize:            10_000,
		WorkerCount:          runtime.NumCPU(),
		DedupeSize:           50_000,
		SchedulerIntervalSec: 60,
		DefaultTimezone:      "Europe/Amsterdam",
		MaxLeaderboardLimit:  100,
		ShutdownTimeoutSec:   10,
	}
}
