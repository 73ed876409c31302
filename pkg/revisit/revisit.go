// Package revisit records graded attempts at questions and schedules
// incorrectly answered questions for review with an exponential backoff.
//
// A Tracker owns an attempt log (the full history of every question plus
// its currently scheduled review) and a review queue (question id → due
// instant). Every mutating call persists both before returning.
//
// Basic usage:
//
//	tr, err := revisit.New(ctx, revisit.Config{StatePath: "revisit.json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tr.Close()
//
//	next, err := tr.RecordAttempt(ctx, "q1", false)
//	due := tr.ItemsForExport(time.Now())
package revisit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dan-solli/revisit/pkg/metrics"
	"github.com/dan-solli/revisit/pkg/schedule"
	"github.com/dan-solli/revisit/pkg/store"
	"github.com/dan-solli/revisit/pkg/trace"
)

// DefaultBaseIntervalMinutes is the delay after the first incorrect attempt.
const DefaultBaseIntervalMinutes = 15

// Config holds configuration for a Tracker.
// Zero values produce sensible defaults; see field comments.
type Config struct {
	// Store persists tracker state. Takes precedence over the path fields.
	Store store.StateStore

	// StatePath selects a single-file JSON store.
	StatePath string

	// LogPath and QueuePath select the legacy two-file JSON layout.
	// Both must be set together.
	LogPath   string
	QueuePath string

	// BaseIntervalMinutes is the first backoff step (default: 15).
	BaseIntervalMinutes int

	// Logger receives structured logs (default: discarded).
	Logger *slog.Logger

	// Metrics receives operation metrics (default: no-op).
	Metrics metrics.Collector

	// Tracer receives one record per mutating operation (default: no-op).
	Tracer trace.Exporter

	// Now supplies the current instant for attempts and queries without
	// an explicit time (default: time.Now).
	Now func() time.Time
}

// Tracker records attempts and maintains the review queue.
// It is safe for concurrent use within one process; it provides no
// coordination between processes sharing the same storage.
type Tracker struct {
	store   store.StateStore
	backoff schedule.Backoff
	logger  *slog.Logger
	metrics metrics.Collector
	tracer  trace.Exporter
	now     func() time.Time

	mu    sync.Mutex
	state *store.Snapshot
}

// New creates a Tracker and loads its state. Missing state starts empty.
// Corrupt state is logged and replaced by whatever could be recovered
// (usually nothing). Any other read failure is returned wrapping ErrStorage.
//
// The Tracker takes ownership of cfg.Store and cfg.Tracer and closes them
// in Close.
func New(ctx context.Context, cfg Config) (*Tracker, error) {
	if cfg.BaseIntervalMinutes < 0 {
		return nil, fmt.Errorf("%w: base interval %d minutes must not be negative", ErrInvalidConfig, cfg.BaseIntervalMinutes)
	}
	if cfg.BaseIntervalMinutes == 0 {
		cfg.BaseIntervalMinutes = DefaultBaseIntervalMinutes
	}

	st, err := storeFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = trace.NewNoopExporter()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	t := &Tracker{
		store:   st,
		backoff: schedule.NewBackoff(cfg.BaseIntervalMinutes),
		logger:  logger,
		metrics: collector,
		tracer:  tracer,
		now:     now,
	}

	if err := t.load(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// storeFromConfig picks the configured backend.
func storeFromConfig(cfg Config) (store.StateStore, error) {
	switch {
	case cfg.Store != nil:
		return cfg.Store, nil
	case cfg.StatePath != "":
		return store.NewFileStore(cfg.StatePath), nil
	case cfg.LogPath != "" && cfg.QueuePath != "":
		return store.NewPairFileStore(cfg.LogPath, cfg.QueuePath), nil
	case cfg.LogPath != "" || cfg.QueuePath != "":
		return nil, fmt.Errorf("%w: log path and queue path must be set together", ErrInvalidConfig)
	default:
		return nil, fmt.Errorf("%w: no storage configured", ErrInvalidConfig)
	}
}

// load reads persisted state into memory.
func (t *Tracker) load(ctx context.Context) error {
	op := t.begin(opLoad)
	span := op.span("load")

	snap, err := t.store.Load(ctx)
	switch {
	case err == nil:
		span.finish(ctx, nil, nil)
	case errors.Is(err, store.ErrCorrupt):
		span.finish(ctx, err, nil)
		t.metrics.RecordError(ctx, opLoad, ErrTypeCorrupt)
		t.logger.Warn("persisted state is corrupt, starting from recovered state",
			slog.Any("error", err),
		)
	default:
		span.finish(ctx, err, nil)
		wrapped := fmt.Errorf("%w: %w", ErrStorage, err)
		op.end(ctx, wrapped, nil)
		return wrapped
	}
	if snap == nil {
		snap = store.NewSnapshot()
	}
	t.state = snap

	counters := t.updateStorageCounts(ctx)
	op.end(ctx, nil, counters)
	t.logger.Debug("tracker state loaded",
		slog.Int64("questions", counters["questions"]),
		slog.Int64("attempts", counters["attempts"]),
		slog.Int64("queued", counters["queued"]),
	)
	return nil
}

// persist saves the full state. Must be called with mu held.
func (t *Tracker) persist(ctx context.Context, op *operation) error {
	span := op.span("persist")
	if err := t.store.Save(ctx, t.state); err != nil {
		span.finish(ctx, err, nil)
		t.logger.Error("failed to persist tracker state",
			slog.String("operation", op.record.Operation),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	span.finish(ctx, nil, nil)
	return nil
}

// updateStorageCounts publishes the storage gauges and returns them as trace counters.
// Must be called with mu held.
func (t *Tracker) updateStorageCounts(ctx context.Context) map[string]int64 {
	questions, attempts, queued := t.state.Counts()
	t.metrics.SetStorageCount(ctx, "questions", int64(questions))
	t.metrics.SetStorageCount(ctx, "attempts", int64(attempts))
	t.metrics.SetStorageCount(ctx, "queue", int64(queued))
	return map[string]int64{
		"questions": int64(questions),
		"attempts":  int64(attempts),
		"queued":    int64(queued),
	}
}

// BaseInterval returns the delay applied after the first incorrect attempt.
func (t *Tracker) BaseInterval() time.Duration {
	return t.backoff.BaseInterval
}

// Close releases the store and the trace exporter.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return errors.Join(t.tracer.Close(), t.store.Close())
}
