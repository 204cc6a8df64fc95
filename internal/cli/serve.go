package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/smolex/internal/server"
)

var (
	serveMCP   bool
	serveWatch bool
	serveAddr  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookup_interface and lookup_code",
	Long: `Serve answers lookups over HTTP or, with --mcp, as Model Context Protocol
tools on stdio.

HTTP endpoints:
  POST /lookup_interface/   {"class_names": ["Foo"]}
  POST /lookup_code/        {"items": ["Foo", "parse"]}
  GET  /openapi.yaml
  GET  /.well-known/ai-plugin.json

When either index is missing it is built before serving.

Examples:
  # Serve HTTP on the configured address (default 0.0.0.0:5003)
  smolex serve

  # Serve MCP tools to a coding assistant
  smolex serve --mcp

  # Keep the indexes fresh while serving
  smolex serve --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Serve MCP tools on stdio instead of HTTP")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "Rebuild the indexes when files change")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout belongs to the MCP transport, so progress always goes to stderr.
	progress := NewCLIProgressReporter(cmd.ErrOrStderr(), logger, serveMCP)
	a, err := openApp(ctx, progress)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureBuilt(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if serveWatch {
		g.Go(func() error {
			return a.watch(gctx)
		})
	}

	g.Go(func() error {
		// The watcher stops with the server.
		defer cancel()

		if serveMCP {
			logger.Info("serving MCP tools on stdio")
			return server.ServeMCP(gctx, server.NewMCPServer(a.resolver, Version), os.Stdin, os.Stdout)
		}

		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Server.Addr
		}
		return server.ListenAndServe(gctx, addr, server.NewHandler(a.resolver, logger), logger, nil)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve failed: %w", err)
	}
	return nil
}
