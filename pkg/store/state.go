package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCorrupt is returned by Load when persisted state exists but cannot be parsed.
// Callers treat it as "no prior state".
var ErrCorrupt = errors.New("store: corrupt state")

// ErrEmptySource is returned by Migrate instead of overwriting existing state
// with an empty snapshot.
var ErrEmptySource = errors.New("store: migration source is empty")

// AttemptEntry is one graded attempt as it is persisted.
// Timestamp is kept in its encoded form so unparseable values survive a load/save cycle.
type AttemptEntry struct {
	Timestamp string            `json:"timestamp"`
	Correct   bool              `json:"correct"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// QuestionRecord is the attempt history of a single question plus its
// currently scheduled review. A nil NextReview means not scheduled.
type QuestionRecord struct {
	Attempts   []AttemptEntry `json:"attempts"`
	NextReview *string        `json:"next_review"`
}

// Snapshot is the complete persisted state: the attempt log and the review queue.
// The log is authoritative for history; the queue is authoritative for
// "is this question currently pending".
type Snapshot struct {
	Log   map[string]*QuestionRecord `json:"log"`
	Queue map[string]string          `json:"queue"`
}

// NewSnapshot returns an empty snapshot with non-nil maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Log:   make(map[string]*QuestionRecord),
		Queue: make(map[string]string),
	}
}

// normalize replaces nil maps and records so callers never have to nil-check.
func (s *Snapshot) normalize() *Snapshot {
	if s.Log == nil {
		s.Log = make(map[string]*QuestionRecord)
	}
	if s.Queue == nil {
		s.Queue = make(map[string]string)
	}
	for id, rec := range s.Log {
		if rec == nil {
			s.Log[id] = &QuestionRecord{Attempts: []AttemptEntry{}}
			continue
		}
		if rec.Attempts == nil {
			rec.Attempts = []AttemptEntry{}
		}
	}
	return s
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := NewSnapshot()
	if s == nil {
		return out
	}
	for id, rec := range s.Log {
		out.Log[id] = rec.Clone()
	}
	for id, due := range s.Queue {
		out.Queue[id] = due
	}
	return out
}

// Clone returns a deep copy of the record, including metadata maps.
func (r *QuestionRecord) Clone() *QuestionRecord {
	if r == nil {
		return &QuestionRecord{Attempts: []AttemptEntry{}}
	}
	out := &QuestionRecord{Attempts: make([]AttemptEntry, len(r.Attempts))}
	for i, a := range r.Attempts {
		out.Attempts[i] = AttemptEntry{
			Timestamp: a.Timestamp,
			Correct:   a.Correct,
			Metadata:  CloneMetadata(a.Metadata),
		}
	}
	if r.NextReview != nil {
		next := *r.NextReview
		out.NextReview = &next
	}
	return out
}

// CloneMetadata copies a metadata map. Nil and empty maps both yield nil.
func CloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Counts returns the number of questions, attempts and queued items in the snapshot.
func (s *Snapshot) Counts() (questions, attempts, queued int) {
	for _, rec := range s.Log {
		if rec != nil {
			attempts += len(rec.Attempts)
		}
	}
	return len(s.Log), attempts, len(s.Queue)
}

// StateStore persists tracker state as a single unit.
// Implementations must make Save an atomic replace of everything they write.
type StateStore interface {
	// Load reads the persisted state. Missing state yields an empty snapshot
	// and a nil error. State that exists but cannot be parsed yields an
	// error wrapping ErrCorrupt together with whatever part of the state
	// could still be recovered (possibly empty, never nil).
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the persisted state with snap.
	Save(ctx context.Context, snap *Snapshot) error

	// Close releases any resources held by the store.
	Close() error
}

// Migrate copies the state held by from into to and returns what was copied.
// A corrupt source is an error here, and so is an empty source when the
// target already holds state: either would replace real data with nothing.
func Migrate(ctx context.Context, from, to StateStore) (*Snapshot, error) {
	snap, err := from.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source state: %w", err)
	}
	if snap.empty() {
		existing, err := to.Load(ctx)
		if err != nil && !errors.Is(err, ErrCorrupt) {
			return nil, fmt.Errorf("failed to load target state: %w", err)
		}
		if existing != nil && !existing.empty() {
			questions, _, queued := existing.Counts()
			return nil, fmt.Errorf("%w: target holds %d questions and %d queued reviews",
				ErrEmptySource, questions, queued)
		}
	}
	if err := to.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save target state: %w", err)
	}
	return snap, nil
}

func (s *Snapshot) empty() bool {
	return s == nil || (len(s.Log) == 0 && len(s.Queue) == 0)
}

// Timestamp layouts accepted by ParseTime, tried in order.
// Layouts without a zone offset are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// FormatTime encodes an instant the way it is persisted: RFC 3339 in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime decodes a persisted instant and normalizes it to UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
