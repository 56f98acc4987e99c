package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newGetCommand() *cobra.Command {
	var seal bool

	cmd := &cobra.Command{
		Use:   "get <records-file> <id>",
		Short: "Replay an NDJSON records file and print the record stored under id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("get: parsing id %q: %w", args[1], err)
			}

			e, _, err := buildEngine(args[0], seal)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}

			rec, ok := e.Get(id)
			if !ok {
				return fmt.Errorf("get: no record with id %d", id)
			}

			out, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("get: encoding result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&seal, "seal", false, "seal the engine before the lookup")
	return cmd
}
