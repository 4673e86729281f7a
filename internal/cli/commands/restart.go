package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
)

var restartCmd = &cobra.Command{
	Use:   "restart <server_id>",
	Short: "Restart a registered server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatter := newFormatter()

		var result map[string]any
		err := newClient().Call("server/restart", map[string]any{"server_id": args[0]}, &result)
		if err != nil {
			fmt.Println(formatter.FormatError(errors.Classify(err)))
			os.Exit(1)
		}
		fmt.Println(formatter.FormatValue(result))
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
