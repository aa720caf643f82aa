package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/danktime/internal/domain/chat"
)

const (
	envPrefix  = "DANK_"
	envConfig  = "DANK_CONFIG"
	keyDivider = "."
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if DANK_CONFIG is set
//  3. env (prefix DANK_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(keyDivider)

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// DANK_QUEUE_SIZE -> queue_size; keys stay flat.
	envProvider := env.Provider(envPrefix, keyDivider, func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// maxSchedulerIntervalSec keeps every minute of a chat within one tick.
const maxSchedulerIntervalSec = 60

// Validate checks the values a process cannot start without.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))

	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != StoreMemory && c.StoreDriver != StoreSQLite:
		return fmt.Errorf("%w: store_driver must be %q or %q, got %q", ErrInvalidConfig, StoreMemory, StoreSQLite, c.StoreDriver)
	case c.StoreDriver == StoreSQLite && c.DBPath == "":
		return fmt.Errorf("%w: db_path is required for the sqlite store", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.SchedulerIntervalSec <= 0 || c.SchedulerIntervalSec > maxSchedulerIntervalSec:
		return fmt.Errorf("%w: scheduler_interval_sec must be in [1,%d], got %d",
			ErrInvalidConfig, maxSchedulerIntervalSec, c.SchedulerIntervalSec)
	}

	if _, err := chat.NewSettings(c.DefaultTimezone); err != nil {
		return fmt.Errorf("%w: default_timezone: %w", ErrInvalidConfig, err)
	}
	return nil
}
