// Package main provides the entry point for the dagbuilder CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/langdag/dagbuilder/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, cli.ErrReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
