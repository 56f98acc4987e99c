package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCommand() *cobra.Command {
	var seal bool

	cmd := &cobra.Command{
		Use:   "ingest <records-file>",
		Short: "Replay an NDJSON records file through a fresh engine and report assigned ids",
		Long:  "Each line of records-file is a JSON-encoded record; use \"-\" to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ids, err := buildEngine(args[0], seal)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seal, "seal", false, "seal the engine after ingesting")
	return cmd
}
