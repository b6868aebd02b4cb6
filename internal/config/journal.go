package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

const (
	JournalBackendLog      = "log"
	JournalBackendPostgres = "postgres"
	JournalBackendRedis    = "redis"
)

type JournalConfig struct {
	Backends    []string `env:"JOURNAL_BACKEND, default=log"`
	RedisStream string   `env:"JOURNAL_REDIS_STREAM, default=radio_events"`
	RedisMaxLen int64    `env:"JOURNAL_REDIS_MAXLEN, default=10000"`
}

func NewJournalConfigFromEnv() (*JournalConfig, error) {
	var cfg JournalConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	for i, b := range cfg.Backends {
		b = strings.ToLower(strings.TrimSpace(b))
		switch b {
		case JournalBackendLog, JournalBackendPostgres, JournalBackendRedis:
		default:
			return nil, fmt.Errorf("unknown JOURNAL_BACKEND %q", b)
		}
		cfg.Backends[i] = b
	}
	return &cfg, nil
}

func (c *JournalConfig) Uses(backend string) bool {
	for _, b := range c.Backends {
		if b == backend {
			return true
		}
	}
	return false
}
