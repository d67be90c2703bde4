// Package main provides the entry point for the collectionctl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/agritrace/collection-model/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
