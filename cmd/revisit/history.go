package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <question-id>",
		Short: "Show every recorded attempt at a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			tr, err := a.openTracker(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer tr.Close()

			attempts := tr.Attempts(id)
			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintf(out, "No attempts recorded for %s.\n", id)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tTIMESTAMP\tRESULT\tMETADATA")
			for i, at := range attempts {
				result := "incorrect"
				if at.Correct {
					result = "correct"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, formatTime(at.Timestamp), result, formatMetadata(at.Metadata))
			}
			return w.Flush()
		},
	}
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(m map[string]string) string {
	if len(m) == 0 {
		return "-"
	}
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
