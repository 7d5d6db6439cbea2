// Package main is the entry point for the gittask MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leeovery/gittask/internal/config"
	"github.com/leeovery/gittask/internal/mcpserver"
	"github.com/leeovery/gittask/internal/telemetry"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:           "gittask-mcp",
		Short:         "Serve gittask tools over MCP on stdin and stdout",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(global)
		},
	}
	cmd.Flags().BoolVarP(&global, "global", "g", false, "Resolve plain ids against the global task store")
	return cmd
}

func serve(global bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, closer, err := telemetry.NewServerLogger(os.Stderr, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}
	srv, err := mcpserver.New(cfg, logger, mcpserver.Options{Global: global, WorkDir: wd})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Serve(ctx, Version, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
