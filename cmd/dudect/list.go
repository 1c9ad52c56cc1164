package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agucova/dudect/internal/targets"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tINPUT\tEXPECTED\tDESCRIPTION")
			for _, s := range targets.Specs() {
				expected := "constant"
				if s.Leaky {
					expected = "leaky"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.Name, s.InputSize, expected, s.Summary)
			}
			return w.Flush()
		},
	}
}
