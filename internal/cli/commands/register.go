package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
)

var registerCmd = &cobra.Command{
	Use:   "register <tool_id>",
	Short: "Install a registry tool by id and start it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatter := newFormatter()

		var result map[string]any
		if err := newClient().CallTool("register_server", map[string]any{"tool_id": args[0]}, &result); err != nil {
			fmt.Println(formatter.FormatError(errors.Classify(err)))
			os.Exit(1)
		}
		fmt.Println(formatter.FormatValue(result))
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
