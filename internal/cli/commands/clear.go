package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Wipe every registered server, env var, tool and setting (dev/reset command)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		formatter := newFormatter()

		var result map[string]any
		if err := newClient().Call("catalog/clear", nil, &result); err != nil {
			fmt.Println(formatter.FormatError(errors.Classify(err)))
			os.Exit(1)
		}
		fmt.Println(formatter.FormatValue(result))
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
