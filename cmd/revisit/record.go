package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-solli/revisit/pkg/revisit"
)

func newRecordCmd(a *app) *cobra.Command {
	var (
		correct   bool
		incorrect bool
		at        string
		meta      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "record <question-id>",
		Short: "Record a graded attempt at a question",
		Example: `  revisit record q42 --incorrect
  revisit record q42 --correct --meta source=chapter3.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			opts := []revisit.AttemptOption{revisit.WithMetadata(meta)}
			if at != "" {
				ts, err := a.parseAt(at)
				if err != nil {
					return err
				}
				opts = append(opts, revisit.WithTimestamp(ts))
			}

			tr, err := a.openTracker(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer tr.Close()

			next, err := tr.RecordAttempt(cmd.Context(), id, correct, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if next == nil {
				fmt.Fprintf(out, "%s: correct, not scheduled\n", id)
				return nil
			}
			fmt.Fprintf(out, "%s: incorrect (%d total), review at %s\n", id, tr.IncorrectCount(id), formatTime(*next))
			return nil
		},
	}

	cmd.Flags().BoolVar(&correct, "correct", false, "the answer was correct")
	cmd.Flags().BoolVar(&incorrect, "incorrect", false, "the answer was wrong")
	cmd.Flags().StringVar(&at, "at", "", "when the attempt happened, RFC 3339 (default: now)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "metadata as key=value, repeatable")
	cmd.MarkFlagsMutuallyExclusive("correct", "incorrect")
	cmd.MarkFlagsOneRequired("correct", "incorrect")
	return cmd
}
