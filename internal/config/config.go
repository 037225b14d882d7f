// Package config defines the daemon configuration and its loader.
package config

import (
	"encoding/json"
	"fmt"
)

// Config is the main daemon configuration.
type Config struct {
	// Provider selects and credentials the model backend.
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Database holds SQLite settings.
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// TenantsFile is the JSON file holding per-tenant agent configs and
	// leads. Changes are hot-reloaded.
	TenantsFile string `json:"tenants_file" mapstructure:"tenants_file"`

	// DataDir is the base directory for state and logs.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics"`
	Janitor  JanitorConfig  `json:"janitor" mapstructure:"janitor"`
	Executor ExecutorConfig `json:"executor" mapstructure:"executor"`

	// Integrations holds settings for third-party integration credentials.
	Integrations IntegrationsConfig `json:"integrations" mapstructure:"integrations"`
}

// ProviderConfig holds model provider selection and credentials.
type ProviderConfig struct {
	Name            string `json:"name" mapstructure:"name"` // openai, anthropic
	OpenAIAPIKey    string `json:"openai_api_key" mapstructure:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
}

// JanitorConfig holds the usage retention sweep settings.
type JanitorConfig struct {
	Schedule      string `json:"schedule" mapstructure:"schedule"` // cron expression
	RetentionDays int    `json:"retention_days" mapstructure:"retention_days"`
}

// ExecutorConfig holds tool execution settings.
type ExecutorConfig struct {
	TimeoutSeconds int  `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Parallel       bool `json:"parallel" mapstructure:"parallel"`
}

// IntegrationsConfig holds integration credential settings.
type IntegrationsConfig struct {
	// EncryptionKey is a 64-char hex AES-256 key for credentials at rest.
	EncryptionKey string `json:"encryption_key" mapstructure:"encryption_key"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name: "openai",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  "127.0.0.1:9090",
		},
		Janitor: JanitorConfig{
			Schedule:      "0 4 * * *",
			RetentionDays: 30,
		},
		Executor: ExecutorConfig{
			TimeoutSeconds: 30,
		},
	}
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks whether the configuration is usable.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "openai":
		if c.Provider.OpenAIAPIKey == "" {
			return fmt.Errorf("provider openai selected but openai_api_key is empty")
		}
	case "anthropic":
		if c.Provider.AnthropicAPIKey == "" {
			return fmt.Errorf("provider anthropic selected but anthropic_api_key is empty")
		}
	default:
		return fmt.Errorf("invalid provider %q (must be: openai, anthropic)", c.Provider.Name)
	}

	if c.Janitor.RetentionDays < 0 {
		return fmt.Errorf("janitor retention_days must not be negative")
	}
	if c.Executor.TimeoutSeconds < 0 {
		return fmt.Errorf("executor timeout_seconds must not be negative")
	}
	if key := c.Integrations.EncryptionKey; key != "" && len(key) != 64 {
		return fmt.Errorf("integrations encryption_key must be 64 hex characters")
	}
	return nil
}
