package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/revisit/pkg/metrics"
	"github.com/dan-solli/revisit/pkg/revisit"
	"github.com/dan-solli/revisit/pkg/store"
)

// run executes the CLI with args and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "revisit %s", strings.Join(args, " "))
	return out
}

func TestRecordAndQuery(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.json")
	global := []string{"--path", state, "--base-interval", "10"}
	with := func(args ...string) []string { return append(args, global...) }

	out := mustRun(t, with("record", "q1", "--incorrect", "--at", "2024-01-01T12:00:00Z", "--meta", "source=ch3")...)
	assert.Equal(t, "q1: incorrect (1 total), review at 2024-01-01T12:10:00Z\n", out)

	out = mustRun(t, with("record", "q1", "--incorrect", "--at", "2024-01-01T12:05:00Z")...)
	assert.Equal(t, "q1: incorrect (2 total), review at 2024-01-01T12:25:00Z\n", out)

	out = mustRun(t, with("next", "q1")...)
	assert.Equal(t, "q1: 2024-01-01T12:25:00Z\n", out)

	out = mustRun(t, with("next", "q2")...)
	assert.Equal(t, "q2: not scheduled\n", out)

	out = mustRun(t, with("due", "--at", "2024-01-01T12:24:59Z")...)
	assert.Equal(t, "Nothing due.\n", out)

	out = mustRun(t, with("due", "--at", "2024-01-01T12:25:00Z")...)
	assert.Contains(t, out, "QUESTION")
	assert.Contains(t, out, "2024-01-01T12:25:00Z")

	out = mustRun(t, with("history", "q1")...)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2024-01-01T12:00:00Z")
	assert.Contains(t, lines[1], "source=ch3")
	assert.Contains(t, lines[2], "incorrect")

	out = mustRun(t, with("history", "q2")...)
	assert.Equal(t, "No attempts recorded for q2.\n", out)

	out = mustRun(t, with("record", "q1", "--correct", "--at", "2024-01-01T12:30:00Z")...)
	assert.Equal(t, "q1: correct, not scheduled\n", out)
	out = mustRun(t, with("next", "q1")...)
	assert.Equal(t, "q1: not scheduled\n", out)
}

func TestExport(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.json")
	with := func(args ...string) []string { return append(args, "--path", state) }

	mustRun(t, with("record", "b", "--incorrect", "--at", "2024-01-01T12:00:00Z")...)
	mustRun(t, with("record", "a", "--incorrect", "--at", "2024-01-01T12:00:00Z")...)
	mustRun(t, with("record", "c", "--incorrect", "--at", "2024-01-01T13:00:00Z")...)

	at := "2024-01-01T12:15:00Z"
	out := mustRun(t, with("export", "--dry-run", "--at", at)...)
	assert.Equal(t, "a\nb\n", out)

	out = mustRun(t, with("export", "--at", at)...)
	assert.Equal(t, "a\nb\n", out)

	out = mustRun(t, with("export", "--at", at)...)
	assert.Empty(t, out)

	// Exporting leaves the scheduled review in the attempt log.
	out = mustRun(t, with("next", "a")...)
	assert.Equal(t, "a: 2024-01-01T12:15:00Z\n", out)
}

func TestRecordFlagValidation(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.json")

	_, err := run(t, "record", "q1", "--path", state)
	assert.Error(t, err)

	_, err = run(t, "record", "q1", "--correct", "--incorrect", "--path", state)
	assert.Error(t, err)

	_, err = run(t, "record", "--correct", "--path", state)
	assert.Error(t, err)

	_, err = run(t, "record", "q1", "--correct", "--at", "yesterday", "--path", state)
	assert.ErrorContains(t, err, "invalid --at")

	_, statErr := os.Stat(state)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "rejected commands must not write state")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "revisit.db")
	cfgPath := filepath.Join(dir, "revisit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
storage:
  backend: sqlite
  path: `+dbPath+`
scheduling:
  base_interval_minutes: 5
logging:
  level: error
`), 0644))

	out := mustRun(t, "--config", cfgPath, "record", "q42", "--incorrect", "--at", "2024-03-01T08:00:00Z")
	assert.Equal(t, "q42: incorrect (1 total), review at 2024-03-01T08:05:00Z\n", out)

	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer st.Close()
	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T08:05:00Z", snap.Queue["q42"])
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "revisit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  backend: redis\n"), 0644))

	_, err := run(t, "--config", cfgPath, "due")
	assert.Error(t, err)

	_, err = run(t, "--config", filepath.Join(dir, "missing.yaml"), "due")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "--log-level", "chatty", "due", "--path", filepath.Join(dir, "s.json"))
	assert.Error(t, err)

	_, err = run(t, "--base-interval", "-1", "due", "--path", filepath.Join(dir, "s.json"))
	assert.Error(t, err)
}

func TestPathFlagRejectedForPairBackend(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "revisit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  backend: pair\n"), 0644))

	_, err := run(t, "--config", cfgPath, "next", "q1", "--path", filepath.Join(dir, "state.json"))
	assert.ErrorContains(t, err, "--path does not apply to the pair backend")
}

func TestMigrate(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "attempt_log.json")
	queuePath := filepath.Join(dir, "review_queue.json")
	require.NoError(t, os.WriteFile(logPath, []byte(`{
  "q1": {"attempts": [{"timestamp": "2024-01-01T12:00:00+00:00", "correct": false}], "next_review": "2024-01-01T12:15:00+00:00"},
  "q2": {"attempts": [{"timestamp": "2024-01-01T12:00:00+00:00", "correct": true, "metadata": {"k": "v"}}], "next_review": null}
}`), 0644))
	require.NoError(t, os.WriteFile(queuePath, []byte(`{"q1": "2024-01-01T12:15:00+00:00"}`), 0644))

	state := filepath.Join(dir, "state.json")
	out := mustRun(t, "migrate", "--from-log", logPath, "--from-queue", queuePath, "--path", state)
	assert.Equal(t, "Migrated 2 questions, 2 attempts, 1 queued reviews into file storage.\n", out)

	out = mustRun(t, "export", "--at", "2024-01-01T12:15:00Z", "--path", state)
	assert.Equal(t, "q1\n", out)

	out = mustRun(t, "history", "q2", "--path", state)
	assert.Contains(t, out, "k=v")
}

func TestMigrateRejectsCorruptSource(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "attempt_log.json")
	require.NoError(t, os.WriteFile(logPath, []byte("{oops"), 0644))

	state := filepath.Join(dir, "state.json")
	_, err := run(t, "migrate", "--from-log", logPath, "--from-queue", filepath.Join(dir, "q.json"), "--path", state)
	assert.ErrorIs(t, err, store.ErrCorrupt)

	_, statErr := os.Stat(state)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestMigrateRejectsMissingSource(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "state.json")
	mustRun(t, "record", "q1", "--incorrect", "--at", "2024-01-01T12:00:00Z", "--path", state)

	_, err := run(t, "migrate",
		"--from-log", filepath.Join(dir, "typo_log.json"),
		"--from-queue", filepath.Join(dir, "typo_queue.json"),
		"--path", state)
	assert.ErrorContains(t, err, "no legacy state found")

	out := mustRun(t, "next", "q1", "--path", state)
	assert.Equal(t, "q1: 2024-01-01T12:15:00Z\n", out)
}

func TestMigrateRejectsEmptySource(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "attempt_log.json")
	require.NoError(t, os.WriteFile(logPath, []byte("{}"), 0644))

	state := filepath.Join(dir, "state.json")
	mustRun(t, "record", "q1", "--incorrect", "--at", "2024-01-01T12:00:00Z", "--path", state)

	_, err := run(t, "migrate", "--from-log", logPath, "--from-queue", filepath.Join(dir, "q.json"), "--path", state)
	assert.ErrorIs(t, err, store.ErrEmptySource)

	out := mustRun(t, "next", "q1", "--path", state)
	assert.Equal(t, "q1: 2024-01-01T12:15:00Z\n", out)
}

func TestWatcherTick(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	collector := metrics.NewCollector()
	tr, err := revisit.New(ctx, revisit.Config{
		Store:               store.NewMemoryStore(),
		BaseIntervalMinutes: 10,
		Metrics:             collector,
	})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.RecordAttempt(ctx, "q1", false, revisit.WithTimestamp(t0))
	require.NoError(t, err)

	now := t0
	var out bytes.Buffer
	textfile := filepath.Join(t.TempDir(), "revisit.prom")
	w := &watcher{
		tracker:     tr,
		out:         &out,
		logger:      slog.New(slog.DiscardHandler),
		now:         func() time.Time { return now },
		metricsFile: textfile,
		gatherer:    collector.Registry(),
	}

	w.tick(ctx)
	assert.Empty(t, out.String())

	now = t0.Add(10 * time.Minute)
	w.tick(ctx)
	assert.Equal(t, "q1\n", out.String())

	w.tick(ctx)
	assert.Equal(t, "q1\n", out.String(), "acknowledged items are not exported twice")

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `revisit_operations_total{operation="mark_exported",status="success"} 1`)
	assert.Equal(t, 1, testutil.CollectAndCount(collector.Registry(), "revisit_backoff_scheduled_total"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = tr.RecordAttempt(ctx, "q2", false, revisit.WithTimestamp(t0))
	require.NoError(t, err)
	w.tick(cancelled)
	assert.Equal(t, "q1\n", out.String(), "no export after shutdown")
}

func TestCronParser(t *testing.T) {
	for _, spec := range []string{"@every 1m", "*/5 * * * *", "30 */5 * * * *", "@hourly"} {
		_, err := cronParser.Parse(spec)
		assert.NoError(t, err, spec)
	}
	_, err := cronParser.Parse("every minute")
	assert.Error(t, err)
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "-", formatMetadata(nil))
	assert.Equal(t, "a=1,b=2", formatMetadata(map[string]string{"b": "2", "a": "1"}))
}
