package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-solli/revisit/pkg/revisit"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		at     string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print due questions and remove them from the review queue",
		Long: `Export prints the id of every question due at the reference instant,
one per line, and then acknowledges them so they leave the review queue.
With --dry-run the queue is left untouched.`,
		Args: cobra.NoArgs,
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

			_, err = exportDue(cmd.Context(), tr, cmd.OutOrStdout(), a.logger, when, dryRun)
			return err
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "reference instant, RFC 3339 (default: now)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print due questions without acknowledging them")
	return cmd
}

// exportDue writes the ids due at `at` to out and acknowledges them unless
// dryRun is set. It returns the exported ids.
func exportDue(ctx context.Context, tr *revisit.Tracker, out io.Writer, logger *slog.Logger, at time.Time, dryRun bool) ([]string, error) {
	ids := tr.ItemsForExport(at)
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	if dryRun || len(ids) == 0 {
		return ids, nil
	}

	removed, err := tr.MarkExported(ctx, ids...)
	if err != nil {
		return ids, fmt.Errorf("acknowledge export: %w", err)
	}
	logger.Debug("export acknowledged", slog.Int("due", len(ids)), slog.Int("removed", removed))
	return ids, nil
}
