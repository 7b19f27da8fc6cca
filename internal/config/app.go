package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const (
	SinkSQLite   = "sqlite"
	SinkMarkdown = "markdown"
	SinkNATS     = "nats"
)

type AppConfig struct {
	RuntimePath  string        `env:"TUSKMEM_RUNTIME_PATH"`
	CacheDir     string        `env:"TUSKMEM_CACHE_DIR"`
	DatabasePath string        `env:"TUSKMEM_DB_PATH"`
	PollInterval time.Duration `env:"TUSKMEM_POLL_INTERVAL" envDefault:"5m"`

	// Sink selection, comma separated
	Sinks []string `env:"TUSKMEM_SINKS" envSeparator:"," envDefault:"sqlite"`

	PersistSeen bool `env:"TUSKMEM_PERSIST_SEEN" envDefault:"false"`
	Watch       bool `env:"TUSKMEM_WATCH" envDefault:"false"`
	EnableAPI   bool `env:"TUSKMEM_ENABLE_API" envDefault:"false"`
}

func ParseAppConfig() (*AppConfig, error) {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	if c.RuntimePath == "" {
		c.RuntimePath = GetRuntimePath()
	}
	if c.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return c, nil
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c, err := ParseAppConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return filepath.Join(c.RuntimePath, "cache")
}

func (c AppConfig) GetDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.RuntimePath, "tuskmem.db")
}

func (c AppConfig) GetSourcesPath() string {
	return filepath.Join(c.RuntimePath, "sources.yaml")
}

func (c AppConfig) GetConversationLogPath() string {
	return filepath.Join(c.RuntimePath, "conversation-log.md")
}

func (c AppConfig) GetPidPath() string {
	return filepath.Join(c.RuntimePath, "tuskmem.pid")
}

func (c AppConfig) GetPollInterval() time.Duration {
	return c.PollInterval
}

func (c AppConfig) IsSeenPersisted() bool {
	return c.PersistSeen
}

func (c AppConfig) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
