package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDueCmd(a *app) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List questions due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := a.parseAt(at)
			if err != nil {
				return err
			}

			tr, err := a.openTracker(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer tr.Close()

			ids := tr.ItemsForExport(when)
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "Nothing due.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUESTION\tDUE\tINCORRECT")
			for _, id := range ids {
				due := "now"
				if d, ok := tr.DueAt(id); ok && !d.IsZero() {
					due = formatTime(d)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", id, due, tr.IncorrectCount(id))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "reference instant, RFC 3339 (default: now)")
	return cmd
}
