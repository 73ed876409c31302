package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestSQLiteStore_Empty tests that a fresh database loads empty state.
func TestSQLiteStore_Empty(t *testing.T) {
	s := setupTestStore(t)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Log)
	assert.Empty(t, snap.Queue)
}

// TestSQLiteStore_RoundTrip tests save and load of a full snapshot.
func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), loaded)
}

// TestSQLiteStore_SaveReplaces tests that Save drops rows absent from the new snapshot.
func TestSQLiteStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	next := sampleSnapshot()
	delete(next.Queue, "q1")
	delete(next.Log, "q2")
	require.NoError(t, s.Save(ctx, next))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, loaded)
}

// TestSQLiteStore_AttemptOrder tests that attempts come back in insertion order,
// not timestamp order.
func TestSQLiteStore_AttemptOrder(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	snap := NewSnapshot()
	snap.Log["q"] = &QuestionRecord{Attempts: []AttemptEntry{
		{Timestamp: "2024-01-03T00:00:00Z"},
		{Timestamp: "2024-01-01T00:00:00Z", Correct: true},
		{Timestamp: "2024-01-02T00:00:00Z"},
	}}
	for i := 0; i < 12; i++ {
		snap.Log["q"].Attempts = append(snap.Log["q"].Attempts, AttemptEntry{Timestamp: "2024-02-01T00:00:00Z"})
	}
	require.NoError(t, s.Save(ctx, snap))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Log["q"].Attempts, loaded.Log["q"].Attempts)
}

// TestSQLiteStore_Persistence tests that state survives reopening the database file.
func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "revisit.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleSnapshot()))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), loaded)
}

// TestSQLiteStore_BadMetadata tests that undecodable metadata is dropped and reported.
func TestSQLiteStore_BadMetadata(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	_, err := s.DB().ExecContext(ctx, `UPDATE attempts SET metadata = '{broken' WHERE question_id = 'q1'`)
	require.NoError(t, err)

	snap, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
	require.Contains(t, snap.Log, "q1")
	assert.Nil(t, snap.Log["q1"].Attempts[0].Metadata)
	assert.Equal(t, "2024-01-01T12:10:00Z", snap.Queue["q1"])
}

// TestSQLiteStore_CanceledContext tests that a canceled save leaves prior state intact.
func TestSQLiteStore_CanceledContext(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Save(ctx, NewSnapshot()))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), loaded)
}
