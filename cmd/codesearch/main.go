// Package main provides the entry point for the codesearch CLI.
package main

import (
	"os"

	"github.com/railyard/codesearch/cmd/codesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
