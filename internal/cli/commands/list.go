package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
	"github.com/mcpctl/orchestrator/internal/cli/output"
)

// runtimeServer mirrors catalog.RuntimeServer's JSON shape without
// importing the daemon's catalog package into the CLI.
type runtimeServer struct {
	ID          string `json:"ID"`
	Name        string `json:"Name"`
	Status      string `json:"Status"`
	ToolCount   int    `json:"ToolCount"`
	Description string `json:"Description"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed servers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		formatter := newFormatter()

		var servers []runtimeServer
		if err := newClient().CallTool("list_installed_servers", nil, &servers); err != nil {
			fmt.Println(formatter.FormatError(errors.Classify(err)))
			os.Exit(1)
		}

		rows := make([]output.ServerRow, len(servers))
		for i, s := range servers {
			rows[i] = output.ServerRow{ID: s.ID, Name: s.Name, Status: s.Status, ToolCount: s.ToolCount}
		}
		fmt.Println(formatter.FormatServers(rows))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
