// Package main provides the entry point for the evaldeck CLI tool.
package main

import "github.com/evaldeck/evaldeck/cmd/evaldeck/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	cmd.Execute(version, commit, date, builtBy)
}
