package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver for storage.driver
	"github.com/spf13/cobra"

	"github.com/dan-solli/revisit/internal/config"
	"github.com/dan-solli/revisit/pkg/metrics"
	"github.com/dan-solli/revisit/pkg/revisit"
	"github.com/dan-solli/revisit/pkg/store"
	"github.com/dan-solli/revisit/pkg/trace"
)

// app carries global flags and the configuration resolved from them.
type app struct {
	configPath   string
	logLevel     string
	statePath    string
	baseInterval int

	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer
	now    func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:   "revisit",
		Short: "Track quiz attempts and schedule wrong answers for review",
		Long: `Revisit records every graded attempt at a question. A wrong answer
schedules the question for review after an exponentially growing delay;
a right answer takes it off the review queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stderr = cmd.ErrOrStderr()
			return a.resolve(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.statePath, "path", "", "override storage.path (file and sqlite backends)")
	root.PersistentFlags().IntVar(&a.baseInterval, "base-interval", 0, "override scheduling.base_interval_minutes")

	root.AddCommand(
		newRecordCmd(a),
		newDueCmd(a),
		newExportCmd(a),
		newHistoryCmd(a),
		newNextCmd(a),
		newWatchCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// resolve loads the config file and applies flag overrides.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("path") {
		switch cfg.Storage.Backend {
		case config.BackendFile, config.BackendSQLite:
			cfg.Storage.Path = a.statePath
		default:
			return fmt.Errorf("--path does not apply to the %s backend; set storage.log_path and storage.queue_path instead",
				cfg.Storage.Backend)
		}
	}
	if flags.Changed("base-interval") {
		cfg.Scheduling.BaseIntervalMinutes = a.baseInterval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// openStore builds the configured storage backend.
func (a *app) openStore() (store.StateStore, error) {
	s := a.cfg.Storage
	switch s.Backend {
	case config.BackendFile:
		return store.NewFileStore(s.Path), nil
	case config.BackendPair:
		return store.NewPairFileStore(s.LogPath, s.QueuePath), nil
	case config.BackendSQLite:
		return store.NewSQLiteStoreWithDriver(s.Driver, s.Path)
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

// openTracker opens the configured store and trace file and loads the tracker.
// A nil collector disables metrics.
func (a *app) openTracker(ctx context.Context, collector metrics.Collector) (*revisit.Tracker, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	tracer, err := trace.NewFileExporter(a.cfg.Trace.Path)
	if err != nil {
		st.Close()
		return nil, err
	}

	tr, err := revisit.New(ctx, revisit.Config{
		Store:               st,
		BaseIntervalMinutes: a.cfg.Scheduling.BaseIntervalMinutes,
		Logger:              a.logger,
		Metrics:             collector,
		Tracer:              tracer,
		Now:                 a.now,
	})
	if err != nil {
		tracer.Close()
		st.Close()
		return nil, err
	}
	return tr, nil
}

// parseAt reads an optional --at value. Empty means now.
func (a *app) parseAt(value string) (time.Time, error) {
	if value == "" {
		return a.now().UTC(), nil
	}
	at, err := store.ParseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return at, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
