package revisit

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dan-solli/revisit/pkg/schedule"
	"github.com/dan-solli/revisit/pkg/store"
)

// Attempt is one graded answer to a question.
type Attempt struct {
	Timestamp time.Time
	Correct   bool
	// Metadata is nil when none was supplied.
	Metadata map[string]string
}

// AttemptOption configures a single RecordAttempt call.
type AttemptOption func(*attemptOptions)

type attemptOptions struct {
	timestamp time.Time
	metadata  map[string]string
}

// WithTimestamp sets when the attempt happened (default: now).
// The instant is normalized to UTC.
func WithTimestamp(ts time.Time) AttemptOption {
	return func(o *attemptOptions) {
		o.timestamp = ts
	}
}

// WithMetadata attaches free-form metadata, stored verbatim.
// An empty map is treated as no metadata.
func WithMetadata(m map[string]string) AttemptOption {
	return func(o *attemptOptions) {
		o.metadata = m
	}
}

// RecordAttempt appends an attempt to the question's history, creating the
// question on first use.
//
// A correct attempt clears any scheduled review and removes the question
// from the review queue; it returns nil. An incorrect attempt schedules a
// review at timestamp + base × 2^(k-1), where k is the number of incorrect
// attempts over the question's whole history including this one, and
// returns that instant.
//
// State is persisted before returning. On a persistence failure the error
// wraps ErrPersist and the in-memory state keeps the new attempt.
func (t *Tracker) RecordAttempt(ctx context.Context, questionID string, correct bool, opts ...AttemptOption) (*time.Time, error) {
	var o attemptOptions
	for _, opt := range opts {
		opt(&o)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	op := t.begin(opRecordAttempt)

	moment := o.timestamp
	if moment.IsZero() {
		moment = t.now()
	}
	moment = moment.UTC()

	span := op.span("append")
	rec, ok := t.state.Log[questionID]
	if !ok || rec == nil {
		rec = &store.QuestionRecord{Attempts: []store.AttemptEntry{}}
		t.state.Log[questionID] = rec
	}
	rec.Attempts = append(rec.Attempts, store.AttemptEntry{
		Timestamp: store.FormatTime(moment),
		Correct:   correct,
		Metadata:  store.CloneMetadata(o.metadata),
	})
	span.finish(ctx, nil, map[string]int64{"attempts": int64(len(rec.Attempts))})

	var next *time.Time
	if correct {
		span = op.span("dequeue")
		rec.NextReview = nil
		_, queued := t.state.Queue[questionID]
		delete(t.state.Queue, questionID)
		removed := int64(0)
		if queued {
			removed = 1
		}
		span.finish(ctx, nil, map[string]int64{"removed": removed})

		t.logger.Debug("correct attempt recorded",
			slog.String("question_id", questionID),
			slog.Bool("was_queued", queued),
		)
	} else {
		span = op.span("schedule")
		incorrect := countIncorrect(rec.Attempts)
		exponent := schedule.Exponent(incorrect)
		at := t.backoff.Next(moment, incorrect)
		encoded := store.FormatTime(at)
		rec.NextReview = &encoded
		t.state.Queue[questionID] = encoded
		next = &at
		t.metrics.RecordBackoff(ctx, exponent)
		span.finish(ctx, nil, map[string]int64{
			"incorrectCount": int64(incorrect),
			"exponent":       int64(exponent),
		})

		t.logger.Info("review scheduled",
			slog.String("question_id", questionID),
			slog.Int("incorrect_count", incorrect),
			slog.Duration("interval", t.backoff.Interval(incorrect)),
			slog.Time("next_review", at),
		)
	}

	err := t.persist(ctx, op)
	op.end(ctx, err, t.updateStorageCounts(ctx))
	if err != nil {
		return nil, err
	}
	return next, nil
}

// countIncorrect returns the lifetime number of incorrect attempts.
func countIncorrect(attempts []store.AttemptEntry) int {
	n := 0
	for _, a := range attempts {
		if !a.Correct {
			n++
		}
	}
	return n
}

// Attempts returns a copy of the question's attempt history in recording
// order. Unknown questions yield an empty slice. Timestamps that cannot be
// parsed come back as the zero time.
func (t *Tracker) Attempts(questionID string) []Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.state.Log[questionID]
	if !ok || rec == nil {
		return []Attempt{}
	}

	out := make([]Attempt, len(rec.Attempts))
	for i, a := range rec.Attempts {
		ts, err := store.ParseTime(a.Timestamp)
		if err != nil {
			ts = time.Time{}
		}
		out[i] = Attempt{
			Timestamp: ts,
			Correct:   a.Correct,
			Metadata:  store.CloneMetadata(a.Metadata),
		}
	}
	return out
}

// NextReview returns the review instant stored in the attempt log, or nil
// when the question is unknown, not scheduled, or its stored value cannot
// be parsed. It does not consult the review queue, so a question that was
// exported keeps reporting its last scheduled instant.
func (t *Tracker) NextReview(questionID string) *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.state.Log[questionID]
	if !ok || rec == nil || rec.NextReview == nil {
		return nil
	}
	at, err := store.ParseTime(*rec.NextReview)
	if err != nil {
		return nil
	}
	return &at
}

// IncorrectCount returns the lifetime number of incorrect attempts for a question.
func (t *Tracker) IncorrectCount(questionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.state.Log[questionID]
	if !ok || rec == nil {
		return 0
	}
	return countIncorrect(rec.Attempts)
}

// QuestionIDs returns every question with at least one recorded attempt, sorted.
func (t *Tracker) QuestionIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.state.Log))
	for id := range t.state.Log {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
