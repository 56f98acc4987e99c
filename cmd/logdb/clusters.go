package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newClustersCommand() *cobra.Command {
	var seal bool

	cmd := &cobra.Command{
		Use:   "clusters <records-file>",
		Short: "Replay an NDJSON records file and report its learned templates, most frequent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := buildEngine(args[0], seal)
			if err != nil {
				return fmt.Errorf("clusters: %w", err)
			}

			summary := e.ClusterSummary()
			sort.Slice(summary, func(i, j int) bool { return summary[i].Count > summary[j].Count })
			for _, c := range summary {
				fmt.Printf("%8d  %-8s %s\n", c.Count, c.Level, c.TemplateText)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seal, "seal", false, "seal the engine before reporting")
	return cmd
}
