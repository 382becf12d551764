// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Markbook.
//
// Usage:
//
//	go run . [flags]
//	./markbook [command] [flags]
//
// Without a command the database schema is initialized. See --help for the
// available commands.
package main

import (
	"os"

	"github.com/toeirei/markbook/ui/cli"
)

func main() {
	// Execute prints the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
