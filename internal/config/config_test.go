package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8001, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Session.RetentionDays)
	assert.Equal(t, 24, cfg.Session.InactivityHours)
	assert.Equal(t, "llmscope_session_id", cfg.Session.CookieName)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSession)
	assert.Equal(t, 60, cfg.RateLimit.PeriodSeconds)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.AI.Model)
	assert.Equal(t, 1024, cfg.AI.MaxTokens)

	require.NoError(t, cfg.Validate())
}

func TestSessionConfig_Windows(t *testing.T) {
	s := SessionConfig{RetentionDays: 7, InactivityHours: 24, CleanupIntervalHours: 24}

	assert.Equal(t, 7*24*time.Hour, s.RetentionWindow())
	assert.Equal(t, 24*time.Hour, s.InactivityWindow())
	assert.Equal(t, 24*time.Hour, s.CleanupInterval())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero retention", func(c *Config) { c.Session.RetentionDays = 0 }},
		{"zero inactivity", func(c *Config) { c.Session.InactivityHours = 0 }},
		{"empty cookie name", func(c *Config) { c.Session.CookieName = "" }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerSession = 0 }},
		{"bad provider", func(c *Config) { c.AI.Provider = "bard" }},
		{"empty model", func(c *Config) { c.AI.Model = "" }},
		{"zero max tokens", func(c *Config) { c.AI.MaxTokens = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Server.Port)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playground.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9999},
		"session": {"retention_days": 3}
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Session.RetentionDays)
	// Untouched sections keep their defaults
	assert.Equal(t, "llmscope_session_id", cfg.Session.CookieName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("PORT", "3000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-test", cfg.AI.APIKey)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoad_EnvDoesNotOverrideFileKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	path := filepath.Join(t.TempDir(), "playground.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"ai": {"api_key": "sk-ant-file"}
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-file", cfg.AI.APIKey)
}
