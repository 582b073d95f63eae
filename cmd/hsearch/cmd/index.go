package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/daemon"
	"github.com/hsearch/hsearch/internal/output"
)

func newIndexCmd() *cobra.Command {
	var incremental bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the project for search",
		Long: `Scan the project root, chunk its files, extract symbols, and build the
text, vector, and symbol indices search reads from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, incremental)
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "no effect: every index run skips files unchanged since the last index run")
	return cmd
}

func runIndex(cmd *cobra.Command, incremental bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.NewAuto(cmd.OutOrStdout())

	root, err := resolveRoot()
	if err != nil {
		return err
	}

	cfg, err := config.LoadFromRoot(root)
	if err != nil {
		return err
	}

	service := daemon.NewService(cfg, root)
	defer func() { _ = service.Close() }()

	out.Statusf("", "Indexing %s...", root)
	result, err := service.Index(ctx, daemon.IndexParams{Path: root, Incremental: incremental})
	if err != nil {
		return err
	}

	out.Successf("Indexed %d files (%d skipped), %d chunks, %d symbols, %d vectors",
		result.FilesIndexed, result.FilesSkipped, result.Chunks, result.Symbols, result.Vectors)
	for _, e := range result.Errors {
		out.Warningf("%s: %s", e.Path, e.Reason)
	}
	return nil
}
