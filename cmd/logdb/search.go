package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand() *cobra.Command {
	var and []string
	var seal bool
	var limit int

	cmd := &cobra.Command{
		Use:   "search <records-file>",
		Short: "Replay an NDJSON records file and search it by substring predicate",
		Long: `Each --and group is a comma-separated list of substrings that form an OR
group; the groups named by repeated --and flags are ANDed together, e.g.
  logdb search records.ndjson --and "timeout,refused" --and "payments"
returns ids whose message contains ("timeout" or "refused") and "payments".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(and) == 0 {
				return fmt.Errorf("search: at least one --and group is required")
			}
			e, _, err := buildEngine(args[0], seal)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			predicate := make([][]string, 0, len(and))
			for _, group := range and {
				predicate = append(predicate, strings.Split(group, ","))
			}

			src := e.Search(predicate, nil)
			printed := 0
			for {
				if limit > 0 && printed >= limit {
					break
				}
				id, ok := src.Next()
				if !ok {
					break
				}
				rec, ok := e.Get(id)
				if !ok {
					fmt.Println(id)
					continue
				}
				fmt.Printf("%d\t%s\n", id, rec.Message)
				printed++
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&and, "and", nil, "comma-separated OR group of substrings (repeatable)")
	cmd.Flags().BoolVar(&seal, "seal", false, "seal the engine before searching")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results to print (0 = unlimited)")
	return cmd
}
