// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the configuration shared by the client commands and the session service
type Config struct {
	APIURL    string        `env:"FRF_API_URL"       envDefault:"http://localhost:8000"`
	Origin    string        `env:"FRF_ORIGIN"        envDefault:"http://localhost:5173"`
	Chains    []int64       `env:"FRF_CHAINS"        envDefault:"10"         envSeparator:","`
	Statement string        `env:"FRF_STATEMENT"`
	WalletKey string        `env:"FRF_WALLET_KEY"`
	Settle    time.Duration `env:"FRF_SETTLE_DELAY"  envDefault:"0s"`

	TokenStore string `env:"FRF_TOKEN_STORE" envDefault:"file"`
	TokenFile  string `env:"FRF_TOKEN_FILE"`
	RedisURL   string `env:"FRF_REDIS_URL"   envDefault:"redis://localhost:6379/0"`
	Events     string `env:"FRF_EVENTS"      envDefault:"memory"`

	LogLevel  string `env:"FRF_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"FRF_LOG_FORMAT" envDefault:"text"`

	Server ServerConfig
}

// ServerConfig configures the reference session service
type ServerConfig struct {
	ListenAddr   string        `env:"FRF_LISTEN_ADDR"   envDefault:":8000"`
	SigningKey   string        `env:"FRF_SIGNING_KEY_FILE"`
	Issuer       string        `env:"FRF_ISSUER"        envDefault:"frf"`
	Evaluators   []string      `env:"FRF_EVALUATORS"    envSeparator:","`
	TokenTTL     time.Duration `env:"FRF_TOKEN_TTL"     envDefault:"24h"`
	NonceTTL     time.Duration `env:"FRF_NONCE_TTL"     envDefault:"5m"`
	SecureCookie bool          `env:"FRF_SECURE_COOKIE" envDefault:"false"`
	Store        string        `env:"FRF_SERVER_STORE"  envDefault:"memory"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and then the environment
func Load(dotenv ...string) (*Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Chains) == 0 {
		return errors.New("FRF_CHAINS must list at least one chain id")
	}
	switch c.TokenStore {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("FRF_TOKEN_STORE: unknown store %q", c.TokenStore)
	}
	switch c.Events {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("FRF_EVENTS: unknown publisher %q", c.Events)
	}
	switch c.Server.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("FRF_SERVER_STORE: unknown store %q", c.Server.Store)
	}
	return nil
}

// Domain is the host part of Origin, the only SIWE domain the service accepts
func (c *Config) Domain() string {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return ""
	}
	return u.Host
}

// NewLogger creates a structured logger with an explicit log level.
func NewLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}

	log := slog.New(h)
	slog.SetDefault(log)
	return log
}
