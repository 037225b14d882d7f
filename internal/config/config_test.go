package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Provider.OpenAIAPIKey = "sk-test"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid openai",
			mutate: func(c *Config) {},
		},
		{
			name: "valid anthropic",
			mutate: func(c *Config) {
				c.Provider.Name = "anthropic"
				c.Provider.AnthropicAPIKey = "sk-ant-test"
			},
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.Provider.OpenAIAPIKey = "" },
			wantErr: "openai_api_key is empty",
		},
		{
			name: "anthropic without key",
			mutate: func(c *Config) {
				c.Provider.Name = "anthropic"
			},
			wantErr: "anthropic_api_key is empty",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider.Name = "cohere" },
			wantErr: "invalid provider",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Janitor.RetentionDays = -1 },
			wantErr: "retention_days",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Executor.TimeoutSeconds = -5 },
			wantErr: "timeout_seconds",
		},
		{
			name:    "short encryption key",
			mutate:  func(c *Config) { c.Integrations.EncryptionKey = "abcd" },
			wantErr: "encryption_key",
		},
		{
			name: "full encryption key",
			mutate: func(c *Config) {
				c.Integrations.EncryptionKey = strings.Repeat("ab", 32)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30, cfg.Janitor.RetentionDays)
	assert.Equal(t, "0 4 * * *", cfg.Janitor.Schedule)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoader_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leadpilot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"provider": {"name": "anthropic", "anthropic_api_key": "file-key"},
		"data_dir": "`+dir+`",
		"janitor": {"retention_days": 14}
	}`), 0o600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider.Name)
	assert.Equal(t, "file-key", cfg.Provider.AnthropicAPIKey)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 14, cfg.Janitor.RetentionDays)
	// Untouched sections keep their defaults.
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Listen)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadpilot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"provider": {"name": "openai", "openai_api_key": "file-key"}
	}`), 0o600))

	t.Setenv("LEADPILOT_OPENAI_API_KEY", "env-key")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Provider.OpenAIAPIKey)
}
