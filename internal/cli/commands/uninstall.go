package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <server_id>",
	Short: "Stop and remove a registered server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatter := newFormatter()

		var result map[string]any
		if err := newClient().CallTool("uninstall_server", map[string]any{"server_id": args[0]}, &result); err != nil {
			fmt.Println(formatter.FormatError(errors.Classify(err)))
			os.Exit(1)
		}
		fmt.Println(formatter.FormatValue(result))
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
