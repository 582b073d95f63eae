package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/daemon"
	"github.com/hsearch/hsearch/internal/output"
)

type searchOptions struct {
	limit  int
	format string // "text" or "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase using fused text, semantic, and symbol
search, returning each hit with the surrounding lines of context.

Examples:
  hsearch search "authentication middleware"
  hsearch search "handleRequest" --limit 5
  hsearch search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
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

	resp, err := service.Search(ctx, daemon.SearchParams{Query: query, Limit: opts.limit, ProjectPath: root})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return formatSearchText(out, query, resp)
}

func formatSearchText(out *output.Writer, query string, resp daemon.SearchResponse) error {
	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	if resp.Degraded {
		out.Warning("vector search was skipped, results may be incomplete")
	}

	out.Statusf("🔍", "Found %d results for %q (%dms):", resp.TotalFound, query, resp.SearchTimeMs)
	out.Newline()

	for i, r := range resp.Results {
		location := fmt.Sprintf("%s:%d", r.Path, r.Target.StartLine)
		out.Status("", fmt.Sprintf("%d. %s (%.2f, %s)", i+1, location, r.Score, r.MatchType))
		if r.Stale {
			out.Status("", "   (stale: file changed since index)")
		}
		for _, line := range strings.Split(r.Target.Content, "\n") {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}
