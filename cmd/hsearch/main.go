// Package main provides the entry point for the hsearch CLI.
package main

import (
	"os"

	"github.com/hsearch/hsearch/cmd/hsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
