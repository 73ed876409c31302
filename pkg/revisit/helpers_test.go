package revisit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dan-solli/revisit/pkg/store"
	"github.com/dan-solli/revisit/pkg/trace"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// newTestTracker returns a tracker over an in-memory store with the clock fixed at t0.
func newTestTracker(t *testing.T, baseMinutes int) (*Tracker, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	tr, err := New(context.Background(), Config{
		Store:               ms,
		BaseIntervalMinutes: baseMinutes,
		Now:                 fixedClock(t0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, ms
}

// captureHandler is a slog.Handler that captures log records for test assertions
type captureHandler struct {
	records []slog.Record
	mu      sync.Mutex
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{records: make([]slog.Record, 0)}
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *captureHandler) WithGroup(_ string) slog.Handler {
	return h
}

// find returns the first captured record with the given message.
func (h *captureHandler) find(msg string) (slog.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Message == msg {
			return r, true
		}
	}
	return slog.Record{}, false
}

// attr returns the value of a named attribute on a record.
func attr(r slog.Record, key string) (slog.Value, bool) {
	var (
		v     slog.Value
		found bool
	)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v, found = a.Value, true
			return false
		}
		return true
	})
	return v, found
}

// recordingExporter keeps every exported trace record in memory.
type recordingExporter struct {
	mu      sync.Mutex
	records []*trace.TraceRecord
	err     error
	closed  bool
}

func (e *recordingExporter) Export(_ context.Context, record *trace.TraceRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.records = append(e.records, record)
	return nil
}

func (e *recordingExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *recordingExporter) operations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ops := make([]string, len(e.records))
	for i, r := range e.records {
		ops[i] = r.Operation
	}
	return ops
}

// failingStore fails Load with a fixed error.
type failingStore struct {
	store.MemoryStore
	loadErr error
}

func (f *failingStore) Load(ctx context.Context) (*store.Snapshot, error) {
	return nil, f.loadErr
}

var errDiskFull = errors.New("no space left on device")
