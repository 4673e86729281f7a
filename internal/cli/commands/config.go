package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
)

var configEnvJSON string

var configCmd = &cobra.Command{
	Use:   "config <server_id>",
	Short: "Update a server's environment variables and restart it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatter := newFormatter()

		env := map[string]any{}
		if configEnvJSON != "" {
			if err := json.Unmarshal([]byte(configEnvJSON), &env); err != nil {
				fmt.Println(formatter.FormatError(errors.Classify(err)))
				os.Exit(1)
			}
		}

		var result map[string]any
		err := newClient().Call("server/config", map[string]any{"server_id": args[0], "env": env}, &result)
		if err != nil {
			fmt.Println(formatter.FormatError(errors.Classify(err)))
			os.Exit(1)
		}
		fmt.Println(formatter.FormatValue(result))
	},
}

func init() {
	configCmd.Flags().StringVar(&configEnvJSON, "env", "", "env var overrides as a JSON object")
	rootCmd.AddCommand(configCmd)
}
