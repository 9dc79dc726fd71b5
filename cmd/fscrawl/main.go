// Package main provides the entry point for the fscrawl CLI.
package main

import (
	"os"

	"github.com/fscrawl/fscrawl/cmd/fscrawl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
