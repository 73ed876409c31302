package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultSQLiteDriver is the pure-Go driver registered by modernc.org/sqlite.
const DefaultSQLiteDriver = "sqlite"

// SQLiteStore persists tracker state in SQLite. Save replaces the full
// state inside a single transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite-backed state store using the pure-Go driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
// Creates tables and indexes if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDriver(DefaultSQLiteDriver, dbPath)
}

// NewSQLiteStoreWithDriver opens the store through an already registered
// database/sql driver, e.g. "sqlite3" for mattn/go-sqlite3.
func NewSQLiteStoreWithDriver(driver, dbPath string) (*SQLiteStore, error) {
	if driver == "" {
		driver = DefaultSQLiteDriver
	}
	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		next_review TEXT
	);

	CREATE TABLE IF NOT EXISTS attempts (
		question_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		correct INTEGER NOT NULL,
		metadata TEXT,
		PRIMARY KEY (question_id, seq),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS review_queue (
		question_id TEXT PRIMARY KEY,
		due TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_review_queue_due ON review_queue(due);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads the full state. Rows with undecodable metadata are kept
// without metadata and reported through ErrCorrupt.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()

	rows, err := s.db.QueryContext(ctx, `SELECT id, next_review FROM questions`)
	if err != nil {
		return snap, fmt.Errorf("failed to query questions: %w", err)
	}
	for rows.Next() {
		var id string
		var next sql.NullString
		if err := rows.Scan(&id, &next); err != nil {
			rows.Close()
			return snap, fmt.Errorf("failed to scan question: %w", err)
		}
		rec := &QuestionRecord{Attempts: []AttemptEntry{}}
		if next.Valid {
			v := next.String
			rec.NextReview = &v
		}
		snap.Log[id] = rec
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return snap, fmt.Errorf("failed to iterate questions: %w", err)
	}
	rows.Close()

	var badMetadata int
	rows, err = s.db.QueryContext(ctx,
		`SELECT question_id, timestamp, correct, metadata FROM attempts ORDER BY question_id, seq`)
	if err != nil {
		return snap, fmt.Errorf("failed to query attempts: %w", err)
	}
	for rows.Next() {
		var id, ts string
		var correct int
		var metadata sql.NullString
		if err := rows.Scan(&id, &ts, &correct, &metadata); err != nil {
			rows.Close()
			return snap, fmt.Errorf("failed to scan attempt: %w", err)
		}
		entry := AttemptEntry{Timestamp: ts, Correct: correct != 0}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				badMetadata++
				entry.Metadata = nil
			}
		}
		rec, ok := snap.Log[id]
		if !ok {
			rec = &QuestionRecord{Attempts: []AttemptEntry{}}
			snap.Log[id] = rec
		}
		rec.Attempts = append(rec.Attempts, entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return snap, fmt.Errorf("failed to iterate attempts: %w", err)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT question_id, due FROM review_queue`)
	if err != nil {
		return snap, fmt.Errorf("failed to query review queue: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, due string
		if err := rows.Scan(&id, &due); err != nil {
			return snap, fmt.Errorf("failed to scan review queue: %w", err)
		}
		snap.Queue[id] = due
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("failed to iterate review queue: %w", err)
	}

	if badMetadata > 0 {
		return snap, fmt.Errorf("%w: %d attempts with undecodable metadata", ErrCorrupt, badMetadata)
	}
	return snap, nil
}

// Save replaces every row with the content of snap in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		snap = NewSnapshot()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"review_queue", "attempts", "questions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	questionStmt, err := tx.PrepareContext(ctx, `INSERT INTO questions (id, next_review) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare question insert: %w", err)
	}
	defer questionStmt.Close()

	attemptStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO attempts (question_id, seq, timestamp, correct, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare attempt insert: %w", err)
	}
	defer attemptStmt.Close()

	for id, rec := range snap.Log {
		var next sql.NullString
		if rec != nil && rec.NextReview != nil {
			next = sql.NullString{String: *rec.NextReview, Valid: true}
		}
		if _, err := questionStmt.ExecContext(ctx, id, next); err != nil {
			return fmt.Errorf("failed to insert question %q: %w", id, err)
		}
		if rec == nil {
			continue
		}
		for seq, a := range rec.Attempts {
			var metadata sql.NullString
			if len(a.Metadata) > 0 {
				b, err := json.Marshal(a.Metadata)
				if err != nil {
					return fmt.Errorf("failed to encode metadata for %q: %w", id, err)
				}
				metadata = sql.NullString{String: string(b), Valid: true}
			}
			correct := 0
			if a.Correct {
				correct = 1
			}
			if _, err := attemptStmt.ExecContext(ctx, id, seq, a.Timestamp, correct, metadata); err != nil {
				return fmt.Errorf("failed to insert attempt %d for %q: %w", seq, id, err)
			}
		}
	}

	for id, due := range snap.Queue {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO review_queue (question_id, due) VALUES (?, ?)`, id, due); err != nil {
			return fmt.Errorf("failed to insert queue entry %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
