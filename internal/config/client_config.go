package config

import (
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client holds the settings of the remote analytics API.
type Client struct {
	BaseURL   string        `env:"ANALYTICS_BASE_URL"   envDefault:"http://127.0.0.1:8000/api/"`
	Timeout   time.Duration `env:"ANALYTICS_TIMEOUT"    envDefault:"30s"`
	UserAgent string        `env:"ANALYTICS_USER_AGENT" envDefault:"go-analytics-client"`
}

var _ ClientConfig = Client{}

func (c Client) GetBaseURL() string {
	return c.BaseURL
}

func (c Client) GetTimeout() time.Duration {
	return c.Timeout
}

func (c Client) GetUserAgent() string {
	return c.UserAgent
}

func (c *Client) sanitize() {
	// Endpoints are joined relative to the base, so it must end in a slash.
	if c.BaseURL != "" && !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}
