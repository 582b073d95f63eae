package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/daemon"
	"github.com/hsearch/hsearch/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve index/search/clear/status as a long-lived stdio process",
		Long: `Run hsearch as a long-lived process over its own stdin/stdout so the
embedder and on-disk indices stay warm across requests, instead of
paying the open cost on every CLI invocation.

--mode jsonrpc (the default) speaks the plain line-delimited JSON-RPC
2.0 protocol. --mode mcp registers the same
four operations as Model Context Protocol tools for MCP-speaking
hosts. Either way stdout is reserved exclusively for the protocol
stream; diagnostics go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, mode)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "jsonrpc", `stdio protocol to speak: "jsonrpc" or "mcp"`)
	return cmd
}

func runServe(cmd *cobra.Command, mode string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := resolveRoot()
	if err != nil {
		return err
	}

	cfg, err := config.LoadFromRoot(root)
	if err != nil {
		return err
	}

	var serveErr error
	switch mode {
	case "mcp":
		service := daemon.NewService(cfg, root)
		defer func() { _ = service.Close() }()
		serveErr = mcp.NewServer(service, nil).Serve(ctx)
	case "jsonrpc":
		serveErr = daemon.RunStdio(ctx, cfg, root, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("unknown --mode %q (want jsonrpc or mcp)", mode)
	}
	if serveErr != nil && ctx.Err() != nil {
		return nil
	}
	return serveErr
}
