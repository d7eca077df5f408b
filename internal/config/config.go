// Package config loads fetchjson configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	logPrefix = "config:Load"

	// Prefix is prepended to every variable name, e.g. FETCHJSON_REDIS_ADDR.
	Prefix = "FETCHJSON"
)

// Config holds fetchjson configuration.
type Config struct {
	// Redis response store; empty RedisAddr keeps responses in memory.
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"fetchjson:"`
	CacheTTL       time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	// Requests
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	Headers        []string      `envconfig:"HEADERS"`

	// Payload handling
	Envelope string `envconfig:"ENVELOPE"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - %s_REQUEST_TIMEOUT must be positive", logPrefix, Prefix)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%s - %s_CACHE_TTL must not be negative", logPrefix, Prefix)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.HeaderPairs(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%s - %s_LOG_LEVEL: %w", logPrefix, Prefix, err)
	}
	return level, nil
}

// HeaderPairs splits Headers entries of the form "Key:Value".
func (c *Config) HeaderPairs() ([][2]string, error) {
	pairs := make([][2]string, 0, len(c.Headers))
	for _, h := range c.Headers {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%s - %s_HEADERS entry %q is not Key:Value", logPrefix, Prefix, h)
		}
		pairs = append(pairs, [2]string{key, strings.TrimSpace(value)})
	}
	return pairs, nil
}
