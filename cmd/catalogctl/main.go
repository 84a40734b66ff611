// Package main is the entry point for the catalogctl CLI.
package main

import (
	"os"

	"github.com/Sternrassler/multiverse-catalog/internal/cli"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
