// Package cli implements the leadpilot command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadpilot/leadpilot/internal/config"
	"github.com/leadpilot/leadpilot/internal/logger"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "leadpilot",
	Short: "LeadPilot - AI lead engagement agent",
	Long: `LeadPilot runs a multi-tenant AI agent that answers inbound lead
messages, calls CRM and calendar tools on the model's behalf, and enforces
per-tenant daily usage limits.`,
	Version: version,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leadpilot/leadpilot.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// loadConfig loads the daemon config honoring the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds a logger from cfg. One-shot commands log to console only.
func newLogger(cfg *config.Config, console bool) (*logger.Logger, error) {
	lc := logger.Config{
		Level:      cfg.Logging.Level,
		Console:    true,
		Pretty:     true,
		Redaction:  cfg.Logging.Redaction,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	}
	if !console {
		lc.File = cfg.Logging.File
	}
	return logger.New(lc)
}
