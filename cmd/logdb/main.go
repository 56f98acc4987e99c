// Command logdb is the CLI front end for pkg/engine: ingest records from an
// NDJSON file, search and get them back, seal the engine, and report learned
// templates.
//
// Persistence across process restarts is a non-goal (see spec), so each
// subcommand that needs engine state replays the same records file through a
// fresh in-memory Engine before performing its one operation. Structured
// around the teacher's cmd/vcs newXCommand()/RunE pattern, per cmd/vcs/main.go
// and cmd/vcs/init.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "logdb",
		Short: "A trigram-indexed log and event store",
		Long: `logdb ingests application logs and broker messages, clusters their
messages into Drain templates, and serves substring search over a
bit-sliced trigram index.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.AddCommand(
		newIngestCommand(),
		newSearchCommand(),
		newGetCommand(),
		newSealCommand(),
		newClustersCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
