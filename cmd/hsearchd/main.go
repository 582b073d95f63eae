// Command hsearchd serves index/search/clear/status as line-delimited
// JSON-RPC 2.0 over its own stdin/stdout, for editor extensions and
// MCP-style host integrations that want a single long-lived process
// with the embedder kept warm. stdout is reserved exclusively for the
// protocol stream — every other message, including startup and fatal
// errors, goes to stderr or the rotating log file under
// logging.DefaultLogDir; an MCP transport has the same requirement
// ("MCP protocol requires stdout to be used EXCLUSIVELY for JSON-RPC
// messages").
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/daemon"
	"github.com/hsearch/hsearch/internal/logging"
	"github.com/hsearch/hsearch/internal/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hsearchd:", err)
		os.Exit(1)
	}
}

func run() error {
	var rootFlag string
	var mode string
	flag.StringVar(&rootFlag, "root", "", "project root (default: discovered from the working directory)")
	flag.StringVar(&mode, "mode", "jsonrpc", `stdio protocol to speak: "jsonrpc" (the plain line-delimited protocol) or "mcp" (Model Context Protocol tool registration)`)
	flag.Parse()

	root := rootFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		root, err = config.FindProjectRoot(cwd)
		if err != nil {
			return fmt.Errorf("find project root: %w", err)
		}
	}

	cfg, err := config.LoadFromRoot(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, cleanup, err := logging.SetupStdioSafe(cfg.LogLevel())
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer func() { _ = cleanup() }()

	logger.Info("hsearchd starting", slog.String("root", root), slog.String("mode", mode))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "mcp":
		service := daemon.NewService(cfg, root)
		defer func() { _ = service.Close() }()

		if err := mcp.NewServer(service, logger).Serve(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("serve mcp: %w", err)
		}
	case "jsonrpc":
		if err := daemon.RunStdio(ctx, cfg, root, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return fmt.Errorf("serve: %w", err)
		}
	default:
		return fmt.Errorf("unknown -mode %q (want jsonrpc or mcp)", mode)
	}

	logger.Info("hsearchd stopped")
	return nil
}
