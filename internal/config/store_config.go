package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StoreBackend selects where credentials are persisted.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreFile   StoreBackend = "file"
	StoreRedis  StoreBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (b *StoreBackend) UnmarshalText(text []byte) error {
	v := StoreBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case StoreMemory, StoreFile, StoreRedis:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid StoreBackend: %q (valid options: memory, file, redis)", string(text))
	}
}

// Store holds the credential store settings.
type Store struct {
	Backend     StoreBackend  `env:"ANALYTICS_STORE"        envDefault:"file"`
	Path        string        `env:"ANALYTICS_STORE_PATH"`
	RedisAddr   string        `env:"ANALYTICS_REDIS_ADDR"   envDefault:"localhost:6379"`
	RedisPrefix string        `env:"ANALYTICS_REDIS_PREFIX" envDefault:"analytics:credentials:"`
	RedisTTL    time.Duration `env:"ANALYTICS_REDIS_TTL"    envDefault:"168h"` // 7 days, the refresh lifetime
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() StoreBackend {
	return s.Backend
}

func (s Store) GetStorePath() string {
	return s.Path
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPrefix() string {
	return s.RedisPrefix
}

func (s Store) GetRedisTTL() time.Duration {
	return s.RedisTTL
}

func (s *Store) sanitize() {
	if s.Backend == "" {
		s.Backend = StoreFile
	}
	if s.Path == "" {
		s.Path = DefaultStorePath()
	}
	if s.RedisTTL < 0 {
		s.RedisTTL = 0
	}
}

// DefaultStorePath returns the per-user credentials file location.
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "go-analytics-client", "credentials.yaml")
}
