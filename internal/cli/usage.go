package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadpilot/leadpilot/internal/daemon"
)

var (
	usageTenantID string
	usageDate     string
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show a tenant's daily usage and estimated cost",
	RunE:  runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usageTenantID, "tenant", "", "tenant id (required)")
	usageCmd.Flags().StringVar(&usageDate, "date", "", "UTC day as YYYY-MM-DD (default today)")
	_ = usageCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	date := usageDate
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	stats, err := d.Limiter().GetUsageStats(cmd.Context(), usageTenantID, date)
	if err != nil {
		return err
	}

	fmt.Printf("Tenant:         %s\n", usageTenantID)
	fmt.Printf("Date (UTC):     %s\n", stats.Date)
	fmt.Printf("Messages:       %d\n", stats.MessagesProcessed)
	fmt.Printf("Tool calls:     %d\n", stats.ToolCallsExecuted)
	fmt.Printf("Tokens:         %d\n", stats.TokensUsed)
	fmt.Printf("Estimated cost: $%.4f\n", stats.EstimatedCostUSD)
	return nil
}
