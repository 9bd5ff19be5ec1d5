// Package main provides the entry point for the medcoder CLI.
package main

import (
	"context"
	"os"

	"github.com/PipeOpsHQ/medical-coder-api/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx := context.Background()
	if err := cli.Execute(ctx, cli.BuildInfo{Version: version, Commit: commit, Date: date}); err != nil {
		os.Exit(1)
	}
}
