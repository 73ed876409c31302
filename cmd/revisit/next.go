package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next <question-id>",
		Short: "Show when a question is scheduled for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			tr, err := a.openTracker(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer tr.Close()

			out := cmd.OutOrStdout()
			next := tr.NextReview(id)
			if next == nil {
				fmt.Fprintf(out, "%s: not scheduled\n", id)
				return nil
			}
			fmt.Fprintf(out, "%s: %s\n", id, formatTime(*next))
			return nil
		},
	}
}
