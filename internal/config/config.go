// Package config provides configuration for the chat server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// DefaultDatabaseURL is used when DATABASE_URL is unset.
const DefaultDatabaseURL = "file:livechat.db?cache=shared&mode=rwc"

// Config holds the chat server configuration.
type Config struct {
	// Server settings
	HTTPPort        int           `env:"HTTP_PORT,default=8888"`
	APIPrefix       string        `env:"API_PREFIX,default=/api/v2"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`

	// Chat
	InternalMarker string        `env:"INTERNAL_MARKER,default=#"`
	RetentionIdle  time.Duration `env:"RETENTION_IDLE,default=0s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL,default=1m"`

	// Escalation
	EscalationMarker      string        `env:"ESCALATION_MARKER,default=#911"`
	BroadcastersFile      string        `env:"BROADCASTERS_FILE"`
	EscalationPolicyFile  string        `env:"ESCALATION_POLICY_FILE"`
	EscalationTimeout     time.Duration `env:"ESCALATION_TIMEOUT,default=10s"`
	EscalationConcurrency int           `env:"ESCALATION_CONCURRENCY,default=8"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// Event stream
	WSPingInterval   time.Duration `env:"WS_PING_INTERVAL,default=30s"`
	WSWriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT,default=10s"`
	WSReadTimeout    time.Duration `env:"WS_READ_TIMEOUT,default=60s"`
	WSMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE,default=65536"`
	SubscriberBuffer int           `env:"SUBSCRIBER_BUFFER,default=64"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return Parse(es)
}

// Parse builds a Config from es, applying defaults for missing keys.
func Parse(es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDatabaseURL
	}
	cfg.APIPrefix = "/" + strings.Trim(cfg.APIPrefix, "/")
	if cfg.APIPrefix == "/" {
		cfg.APIPrefix = ""
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config error: HTTP_PORT %d out of range", c.HTTPPort)
	}
	if c.EscalationConcurrency < 1 {
		return fmt.Errorf("config error: ESCALATION_CONCURRENCY must be at least 1")
	}
	if c.EscalationTimeout <= 0 {
		return fmt.Errorf("config error: ESCALATION_TIMEOUT must be positive")
	}
	if c.RetentionIdle < 0 {
		return fmt.Errorf("config error: RETENTION_IDLE must not be negative")
	}
	if c.RetentionIdle > 0 && c.SweepInterval <= 0 {
		return fmt.Errorf("config error: SWEEP_INTERVAL must be positive when RETENTION_IDLE is set")
	}
	if c.WSPingInterval <= 0 || c.WSReadTimeout <= c.WSPingInterval {
		return fmt.Errorf("config error: WS_READ_TIMEOUT must exceed WS_PING_INTERVAL")
	}
	if c.EscalationMarker != "" && c.InternalMarker != "" && c.EscalationMarker == c.InternalMarker {
		// Every internal note would page someone.
		return fmt.Errorf("config error: ESCALATION_MARKER and INTERNAL_MARKER must differ")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
