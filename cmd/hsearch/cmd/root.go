// Package cmd provides the CLI commands for hsearch: one file per
// subcommand, with NewRootCmd/Execute as the entry point in root.go.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/pkg/version"
)

var rootPathFlag string

// NewRootCmd creates the root command for the hsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hsearch",
		Short: "Hybrid text, semantic, and symbol search over a codebase",
		Long: `hsearch indexes a project directory and serves fused text, semantic,
and symbol search over it, either as one-shot CLI commands or as a
long-lived stdio process (see "hsearch serve") for editor and MCP
integrations that want the embedder kept warm across requests.`,
		Version: version.Version,
	}
	cmd.SetVersionTemplate("hsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&rootPathFlag, "root", "", "project root (default: discovered from the working directory)")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// resolveRoot returns rootPathFlag if set, otherwise discovers the
// project root from the working directory via config.FindProjectRoot.
func resolveRoot() (string, error) {
	if rootPathFlag != "" {
		return rootPathFlag, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return config.FindProjectRoot(cwd)
}
