// Package config provides configuration for the travel service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Checkpoint backends.
const (
	CheckpointMemory = "memory"
	CheckpointSQLite = "sqlite"
)

// ModeMock selects the deterministic mock chat model.
const ModeMock = "MOCK"

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL       string
	CheckpointBackend string

	// LLM settings
	Mode       string
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Graph
	RecursionLimit int

	// Default passenger bound to new sessions
	PassengerID string

	// WebSocket
	WSReadTimeout    time.Duration
	WSWriteTimeout   time.Duration
	WSPingInterval   time.Duration
	WSMaxMessageSize int64

	// Logging
	LogLevel string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	// Missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:       getEnv("DATABASE_URL", "file:travel.db?cache=shared&mode=rwc"),
		CheckpointBackend: strings.ToLower(getEnv("CHECKPOINT_BACKEND", CheckpointMemory)),
		Mode:              strings.ToUpper(getEnv("GOGO_MODE", "")),
		LLMBaseURL:        getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:        time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		RecursionLimit:    getEnvInt("RECURSION_LIMIT", 25),
		PassengerID:       getEnv("PASSENGER_ID", "3442 587242"),
		WSReadTimeout:     time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		WSWriteTimeout:    time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		WSPingInterval:    time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WSMaxMessageSize:  int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// MockMode reports whether the mock chat model should be used.
func (c *Config) MockMode() bool {
	return c.Mode == ModeMock
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort))
	}
	if c.DatabaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("DATABASE_URL is required"))
	}
	if c.CheckpointBackend != CheckpointMemory && c.CheckpointBackend != CheckpointSQLite {
		result = multierror.Append(result, fmt.Errorf("CHECKPOINT_BACKEND must be %q or %q, got %q", CheckpointMemory, CheckpointSQLite, c.CheckpointBackend))
	}
	if !c.MockMode() && c.LLMBaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("LLM_BASE_URL is required unless GOGO_MODE=MOCK"))
	}
	if c.RecursionLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("RECURSION_LIMIT must be positive"))
	}
	if c.WSPingInterval >= c.WSReadTimeout {
		result = multierror.Append(result, fmt.Errorf("WS_PING_INTERVAL_MS must be below WS_READ_TIMEOUT_MS"))
	}

	return result.ErrorOrNil()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
