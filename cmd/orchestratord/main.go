// Command orchestratord is the orchestrator daemon: it brings up every
// enabled server, starts the health loop, and serves the control plane
// until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcpctl/orchestrator/internal/config"
	"github.com/mcpctl/orchestrator/internal/orchestrator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("mcpctl orchestrator - initializing...")

	appDir, err := config.ResolveAppDir()
	if err != nil {
		return fmt.Errorf("resolving app dir: %w", err)
	}
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return fmt.Errorf("creating app dir: %w", err)
	}

	o, err := orchestrator.New(appDir)
	if err != nil {
		return fmt.Errorf("initializing orchestrator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	return o.Run(ctx)
}
