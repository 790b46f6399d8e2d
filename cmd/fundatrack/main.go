// Package main provides the entry point for the fundatrack CLI.
package main

import "github.com/fundatrack/fundatrack/cmd/fundatrack/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
