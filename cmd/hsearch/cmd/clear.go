package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/daemon"
	"github.com/hsearch/hsearch/internal/output"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard all indexed data for the project",
		Long: `Delete every on-disk artifact of the current project's index so the
next "hsearch index" run starts from scratch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd)
		},
	}
}

func runClear(cmd *cobra.Command) error {
	ctx := cmd.Context()
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

	if _, err := service.Clear(ctx); err != nil {
		return err
	}

	out.Success("Index cleared")
	return nil
}
