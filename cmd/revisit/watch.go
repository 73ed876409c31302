package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/dan-solli/revisit/pkg/metrics"
	"github.com/dan-solli/revisit/pkg/revisit"
)

// cronParser accepts 5-field specs, 6-field specs with seconds, and descriptors such as "@every 1m".
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func newWatchCmd(a *app) *cobra.Command {
	var (
		schedule    string
		dryRun      bool
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Export due questions on a schedule until interrupted",
		Long: `Watch keeps the tracker open and runs an export on every tick of a
cron schedule (default from watch.schedule, "@every 1m"). Each tick prints
newly due question ids to stdout and acknowledges them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("schedule") {
				schedule = a.cfg.Watch.Schedule
			}
			sched, err := cronParser.Parse(schedule)
			if err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}

			var collector *metrics.PrometheusCollector
			var mc metrics.Collector
			if metricsFile != "" {
				collector = metrics.NewCollector()
				mc = collector
			}

			ctx := cmd.Context()
			tr, err := a.openTracker(ctx, mc)
			if err != nil {
				return err
			}
			defer tr.Close()

			w := &watcher{
				tracker: tr,
				out:     cmd.OutOrStdout(),
				logger:  a.logger,
				now:     a.now,
				dryRun:  dryRun,
			}
			if collector != nil {
				w.metricsFile = metricsFile
				w.gatherer = collector.Registry()
			}

			c := cron.New(cron.WithParser(cronParser))
			c.Schedule(sched, cron.FuncJob(func() { w.tick(ctx) }))
			a.logger.Info("watching review queue", slog.String("schedule", schedule))

			w.tick(ctx)
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			a.logger.Info("watch stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", `cron spec or descriptor (default: watch.schedule)`)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print due questions without acknowledging them")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after every tick")
	return cmd
}

// watcher runs one export per cron tick.
type watcher struct {
	tracker *revisit.Tracker
	out     io.Writer
	logger  *slog.Logger
	now     func() time.Time
	dryRun  bool

	metricsFile string
	gatherer    prometheus.Gatherer

	// cron may overlap ticks when an export runs long
	mu sync.Mutex
}

func (w *watcher) tick(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	ids, err := exportDue(ctx, w.tracker, w.out, w.logger, w.now(), w.dryRun)
	if err != nil {
		w.logger.Error("export tick failed", slog.Any("error", err))
	} else if len(ids) > 0 {
		w.logger.Info("exported due questions", slog.Int("count", len(ids)))
	}

	if w.metricsFile != "" {
		if err := prometheus.WriteToTextfile(w.metricsFile, w.gatherer); err != nil {
			w.logger.Warn("failed to write metrics textfile",
				slog.String("path", w.metricsFile),
				slog.Any("error", err),
			)
		}
	}
}
