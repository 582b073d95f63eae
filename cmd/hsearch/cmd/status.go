package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/daemon"
	"github.com/hsearch/hsearch/internal/output"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index size and embedder state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, asJSON bool) error {
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

	result, err := service.Status(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out.Statusf("", "Project:        %s", root)
	out.Statusf("", "Indexed files:  %d", result.IndexedFiles)
	out.Statusf("", "Chunks:         %d", result.Chunks)
	out.Statusf("", "Vector rows:    %d", result.VectorRows)
	out.Statusf("", "Symbol rows:    %d", result.SymbolRows)
	out.Statusf("", "Embedder:       %s", result.EmbedderState)
	out.Statusf("", "Memory (bytes): %d", result.MemoryUsageBytes)
	return nil
}
