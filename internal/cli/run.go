package cli

import (
	"github.com/spf13/cobra"

	"github.com/leadpilot/leadpilot/internal/daemon"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the LeadPilot daemon in the foreground",
	Long: `Run the LeadPilot daemon in the foreground. The daemon serves the
message pipeline, sweeps expired usage counters, hot-reloads the tenants
file, and exposes Prometheus metrics until interrupted.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}
	return d.Run()
}
