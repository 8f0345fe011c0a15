package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/llmscope/playground/pkg/event"
)

// Config represents the main playground configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Database
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// Session lifecycle
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Rate limiting (per session)
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	// AI provider
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Cost model rates
	Pricing PricingConfig `json:"pricing" mapstructure:"pricing"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// DatabaseConfig holds storage configuration
type DatabaseConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	RetentionDays        int    `json:"retention_days" mapstructure:"retention_days"`
	InactivityHours      int    `json:"inactivity_hours" mapstructure:"inactivity_hours"`
	CleanupIntervalHours int    `json:"cleanup_interval_hours" mapstructure:"cleanup_interval_hours"`
	CookieName           string `json:"cookie_name" mapstructure:"cookie_name"`
}

// RetentionWindow returns the hard-delete idle window.
func (s SessionConfig) RetentionWindow() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// InactivityWindow returns the soft-deactivation idle window.
func (s SessionConfig) InactivityWindow() time.Duration {
	return time.Duration(s.InactivityHours) * time.Hour
}

// CleanupInterval returns how often scheduled cleanup runs.
func (s SessionConfig) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalHours) * time.Hour
}

// RateLimitConfig holds per-session throttle configuration
type RateLimitConfig struct {
	RequestsPerSession int `json:"requests_per_session" mapstructure:"requests_per_session"`
	PeriodSeconds      int `json:"period_seconds" mapstructure:"period_seconds"`
}

// AIConfig holds the model provider configuration
type AIConfig struct {
	Provider              string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey                string `json:"api_key" mapstructure:"api_key"`
	Model                 string `json:"model" mapstructure:"model"`
	MaxTokens             int    `json:"max_tokens" mapstructure:"max_tokens"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
}

// RequestTimeout bounds the remote provider call.
func (a AIConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PricingConfig holds the cost model rate tables
type PricingConfig struct {
	// Rates maps "provider/model" to its per-1k-token rates.
	Rates map[string]event.Rate `json:"rates" mapstructure:"rates"`

	// DefaultRate prices unknown models unless Strict is set.
	DefaultRate event.Rate `json:"default_rate" mapstructure:"default_rate"`

	// Strict makes unknown models an error instead of using DefaultRate.
	Strict bool `json:"strict" mapstructure:"strict"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8001,
		},
		Database: DatabaseConfig{
			Path: "playground.db",
		},
		Session: SessionConfig{
			RetentionDays:        7,
			InactivityHours:      24,
			CleanupIntervalHours: 24,
			CookieName:           "llmscope_session_id",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSession: 100,
			PeriodSeconds:      60,
		},
		AI: AIConfig{
			Provider:              "anthropic",
			Model:                 "claude-3-5-sonnet-20241022",
			MaxTokens:             1024,
			RequestTimeoutSeconds: 60,
		},
		Pricing: PricingConfig{
			Rates: map[string]event.Rate{
				"anthropic/claude-3-5-sonnet-20241022": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
			},
			DefaultRate: event.Rate{PromptPer1K: 0.003, CompletionPer1K: 0.015},
			Strict:      false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Session.RetentionDays <= 0 {
		return fmt.Errorf("session retention_days must be positive")
	}
	if c.Session.InactivityHours <= 0 {
		return fmt.Errorf("session inactivity_hours must be positive")
	}
	if c.Session.CleanupIntervalHours <= 0 {
		return fmt.Errorf("session cleanup_interval_hours must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie_name is required")
	}

	if c.RateLimit.RequestsPerSession <= 0 {
		return fmt.Errorf("rate_limit requests_per_session must be positive")
	}
	if c.RateLimit.PeriodSeconds <= 0 {
		return fmt.Errorf("rate_limit period_seconds must be positive")
	}

	if c.AI.Provider != "anthropic" && c.AI.Provider != "openai" {
		return fmt.Errorf("invalid AI provider %s (must be: anthropic, openai)", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("AI model is required")
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("AI max_tokens must be positive")
	}

	return nil
}
