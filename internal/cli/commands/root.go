// Package commands wires the cobra command tree for orchestratorctl:
// one file per subcommand, each just building a ControlClient.Call and
// rendering its result through the output.Formatter.
package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpctl/orchestrator/internal/cli/client"
	"github.com/mcpctl/orchestrator/internal/cli/output"
)

var (
	daemonAddr string
	jsonOutput bool
	rawOutput  bool
	timeoutMS  int
)

var rootCmd = &cobra.Command{
	Use:   "orchestratorctl",
	Short: "Control client for the mcpctl MCP orchestrator daemon",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", "http://127.0.0.1:3000", "orchestrator control plane address")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&rawOutput, "raw", false, "raw output (no formatting)")
	rootCmd.PersistentFlags().IntVar(&timeoutMS, "timeout", 30000, "request timeout in milliseconds")
}

func newClient() *client.ControlClient {
	return client.New(daemonAddr, time.Duration(timeoutMS)*time.Millisecond)
}

func newFormatter() *output.Formatter {
	format := output.FormatText
	switch {
	case jsonOutput:
		format = output.FormatJSON
	case rawOutput:
		format = output.FormatRaw
	}
	return output.New(format, !rawOutput)
}
