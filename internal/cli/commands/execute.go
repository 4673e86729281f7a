package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
)

var executeArgsJSON string

var executeCmd = &cobra.Command{
	Use:   "execute <tool-name>",
	Short: "Call a tool by name, built-in or backend-advertised",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatter := newFormatter()

		toolArgs := map[string]any{}
		if executeArgsJSON != "" {
			if err := json.Unmarshal([]byte(executeArgsJSON), &toolArgs); err != nil {
				fmt.Println(formatter.FormatError(errors.Classify(err)))
				os.Exit(1)
			}
		}

		var result any
		if err := newClient().CallTool(args[0], toolArgs, &result); err != nil {
			fmt.Println(formatter.FormatError(errors.Classify(err)))
			os.Exit(1)
		}
		fmt.Println(formatter.FormatValue(result))
	},
}

func init() {
	executeCmd.Flags().StringVar(&executeArgsJSON, "args", "", "tool arguments as a JSON object")
	rootCmd.AddCommand(executeCmd)
}
