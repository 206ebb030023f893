// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	ToolHostAddr  string
	AgentHostAddr string

	// Bridge settings.
	EnableUIBridge bool
	MaxPayloadSize int
	MaxRetries     int
	RetryDelay     time.Duration
	SessionTimeout time.Duration
	SweepInterval  time.Duration
	EnableMetrics  bool
	EnableLogging  bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/lexdraft.db"),
		ToolHostAddr:   getEnv("TOOL_HOST_ADDR", ""),
		AgentHostAddr:  getEnv("AGENT_HOST_ADDR", ""),
		EnableUIBridge: getEnvBool("ENABLE_UI_BRIDGE", true),
		MaxPayloadSize: getEnvInt("MAX_PAYLOAD_SIZE", 1<<20),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryDelay:     getEnvMillis("RETRY_DELAY", 1000),
		SessionTimeout: getEnvMillis("SESSION_TIMEOUT", 30*60*1000),
		SweepInterval:  getEnvMillis("SWEEP_INTERVAL", 5*60*1000),
		EnableMetrics:  getEnvBool("ENABLE_METRICS", true),
		EnableLogging:  getEnvBool("ENABLE_LOGGING", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxPayloadSize <= 0 {
		return fmt.Errorf("MAX_PAYLOAD_SIZE must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("RETRY_DELAY must be > 0")
	}
	if c.SessionTimeout < 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be >= 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvMillis reads a duration expressed in milliseconds.
func getEnvMillis(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}
