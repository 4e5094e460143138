package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	kgmcp "github.com/sanonone/kektorgraph/internal/mcp"
	"github.com/sanonone/kektorgraph/internal/server"
	"github.com/sanonone/kektorgraph/pkg/engine"
)

type serveOptions struct {
	configPath string
	listen     string
	seedPath   string
	stdioMCP   bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the datastore over HTTP, or as an MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Override the listen address (e.g. :9091)")
	cmd.Flags().StringVar(&opts.seedPath, "seed", "", "YAML graph loaded at startup")
	cmd.Flags().BoolVar(&opts.stdioMCP, "mcp", false, "Serve MCP tools on stdin/stdout instead of HTTP")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := server.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.seedPath != "" {
		cfg.Engine.SeedPath = opts.seedPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries the MCP protocol, so logs always go to stderr.
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	eng, err := engine.Open(cfg.Engine.Options())
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("Engine close failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.stdioMCP {
		slog.Info("Serving MCP tools on stdio")
		if err := kgmcp.NewMCPServer(eng).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	srv, err := server.NewServer(eng, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err = <-errCh:
	}
	srv.Shutdown()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
