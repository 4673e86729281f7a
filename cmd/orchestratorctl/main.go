package main

import (
	"os"

	"github.com/mcpctl/orchestrator/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
