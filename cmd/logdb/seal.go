package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSealCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seal <records-file>",
		Short: "Replay an NDJSON records file, seal the engine, and report the learned template count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ids, err := buildEngine(args[0], true)
			if err != nil {
				return fmt.Errorf("seal: %w", err)
			}
			fmt.Printf("sealed %d records into %d templates\n", len(ids), len(e.ClusterSummary()))
			return nil
		},
	}
	return cmd
}
