// Command miniservice hosts the composed service: it loads configuration,
// composes the registry from the enabled features and serves the request
// pipeline until it is stopped.
package main

import (
	"context"
	"fmt"
	"os"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "miniservice:", err)
		os.Exit(1)
	}
}

func buildInfo() string {
	version, date, commit := buildVersion, buildDate, buildCommit
	if version == "" {
		version = "N/A"
	}
	if date == "" {
		date = "N/A"
	}
	if commit == "" {
		commit = "N/A"
	}
	return fmt.Sprintf("Build version: %s\nBuild date: %s\nBuild commit: %s\n", version, date, commit)
}
