package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agucova/dudect/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		target string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(dbPath); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("no session history at %s (record one with `dudect run --db %s`)", dbPath, dbPath)
				}
				return fmt.Errorf("failed to open session history: %w", err)
			}
			db, err := store.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, err := db.ListSessions(target, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tTARGET\tOUTCOME\tMAX_T\tSAMPLES\tTRIES\tSESSION")
			for _, s := range sessions {
				outcome := s.Outcome
				if s.Reason != "" {
					outcome += " (" + s.Reason + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%d\t%s\n",
					s.CreatedAt.Local().Format(time.DateTime), s.Target, outcome,
					s.MaxT, s.Samples, s.Tries, s.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "dudect.db", "SQLite file with recorded sessions")
	cmd.Flags().StringVar(&target, "target", "", "only show this target")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to show (0: all)")
	return cmd
}
