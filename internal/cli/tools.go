package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leadpilot/leadpilot/internal/daemon"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools",
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
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

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
	for _, info := range d.Registry().ToolsInfo() {
		fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.ParameterCount, info.Description)
	}
	return w.Flush()
}
