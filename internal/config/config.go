// Package config loads server configuration from the environment. Command
// line flags in main override individual values.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted for CHESSMATCH_STORE.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Host string `env:"CHESSMATCH_HOST" envDefault:"localhost"`
	Port int    `env:"CHESSMATCH_PORT" envDefault:"8080"`
	Dev  bool   `env:"CHESSMATCH_DEV" envDefault:"false"`

	// StoreBackend selects the game store: "memory" (single process,
	// non-durable) or "redis" (durable, multi-process).
	StoreBackend string `env:"CHESSMATCH_STORE" envDefault:"memory"`
	RedisURL     string `env:"CHESSMATCH_REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// ArchivePath enables the SQLite history archive when set.
	ArchivePath string `env:"CHESSMATCH_ARCHIVE_PATH"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StoreBackend != BackendMemory && cfg.StoreBackend != BackendRedis {
		return Config{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return cfg, nil
}
