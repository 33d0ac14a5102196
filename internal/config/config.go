package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	ClientConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	IsDev() bool
}

type ClientConfig interface {
	GetBaseURL() string
	GetTimeout() time.Duration
	GetUserAgent() string
}

type StoreConfig interface {
	GetStoreBackend() StoreBackend
	GetStorePath() string
	GetRedisAddr() string
	GetRedisPrefix() string
	GetRedisTTL() time.Duration
}

type mainConfig struct {
	EnvVars
	Client
	Store
}

var _ Config = (*mainConfig)(nil)

// New loads the configuration from the environment. A .env file in the working
// directory is applied first when present.
func New() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("[config New] load .env file: %w", err)
		}
	}
	return Parse()
}

// Parse reads the configuration from environment variables only.
func Parse() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config Parse] parse env: %w", err)
	}
	c.sanitize()
	return &c, nil
}

func (c *mainConfig) sanitize() {
	c.Client.sanitize()
	c.Store.sanitize()
}
