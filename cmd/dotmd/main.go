// Package main provides the entry point for the dotmd CLI.
package main

import (
	"os"

	"github.com/dotmd/dotmd/cmd/dotmd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
