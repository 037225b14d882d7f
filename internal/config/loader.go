package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a config loader. An empty path falls back to
// ~/.leadpilot/leadpilot.json.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load reads the config file and environment overrides. A missing file
// yields the defaults, so env-only deployments work without one.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("LEADPILOT")
	v.AutomaticEnv()

	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	// Env vars take precedence over the file for credentials.
	if key := v.GetString("OPENAI_API_KEY"); key != "" {
		cfg.Provider.OpenAIAPIKey = key
	}
	if key := v.GetString("ANTHROPIC_API_KEY"); key != "" {
		cfg.Provider.AnthropicAPIKey = key
	}
	if key := v.GetString("ENCRYPTION_KEY"); key != "" {
		cfg.Integrations.EncryptionKey = key
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".leadpilot")
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "leadpilot.db")
	}
	if cfg.TenantsFile == "" {
		cfg.TenantsFile = filepath.Join(cfg.DataDir, "tenants.json")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "leadpilot.log")
	}

	return cfg, nil
}

// Save writes cfg to the config file.
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.resolvePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("provider", cfg.Provider)
	v.Set("database", cfg.Database)
	v.Set("tenants_file", cfg.TenantsFile)
	v.Set("data_dir", cfg.DataDir)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("janitor", cfg.Janitor)
	v.Set("executor", cfg.Executor)
	v.Set("integrations", cfg.Integrations)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			return nil
		}
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ConfigPath returns the resolved config file path.
func (l *Loader) ConfigPath() string {
	path, err := l.resolvePath()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) resolvePath() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".leadpilot", "leadpilot.json"), nil
}

// Load is a convenience wrapper around NewLoader().Load().
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
