package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leadpilot/leadpilot/internal/daemon"
	"github.com/leadpilot/leadpilot/pkg/tenant"
)

var (
	testTenantID string
	testLeadName string
)

var testMessageCmd = &cobra.Command{
	Use:   "test-message <message>",
	Short: "Run one message through the agent with an ephemeral lead",
	Long: `Run one message through the full agent pipeline using an ephemeral
test lead. The reply is printed instead of delivered, so a tenant's
configuration can be verified without touching a real conversation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTestMessage,
}

func init() {
	testMessageCmd.Flags().StringVar(&testTenantID, "tenant", "", "tenant id (required)")
	testMessageCmd.Flags().StringVar(&testLeadName, "lead-name", "", "lead name presented to the model")
	_ = testMessageCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(testMessageCmd)
}

func runTestMessage(cmd *cobra.Command, args []string) error {
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

	message := strings.Join(args, " ")
	outcome := d.Service().TestMessage(cmd.Context(), testTenantID, message, tenant.Lead{Name: testLeadName})

	if !outcome.Handled {
		fmt.Println("Message was not handled by the agent (disabled, rate limited, or failed).")
		return nil
	}
	fmt.Println(outcome.Response)
	return nil
}
