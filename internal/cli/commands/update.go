package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
)

var updateCmd = &cobra.Command{
	Use:   "update <server_id> <true|false>",
	Short: "Enable or disable a registered server",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		formatter := newFormatter()

		enabled := args[1] == "true"

		var result map[string]any
		err := newClient().Call("server/update", map[string]any{"server_id": args[0], "enabled": enabled}, &result)
		if err != nil {
			fmt.Println(formatter.FormatError(errors.Classify(err)))
			os.Exit(1)
		}
		fmt.Println(formatter.FormatValue(result))
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
