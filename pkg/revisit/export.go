package revisit

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dan-solli/revisit/pkg/store"
)

// ItemsForExport returns the ids of queued questions due at or before at,
// sorted ascending by id. A zero at means now. Queue entries whose due
// timestamp cannot be parsed are always included.
//
// The order is by id, not by due time; use DueAt to order by due instant.
func (t *Tracker) ItemsForExport(at time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if at.IsZero() {
		at = t.now()
	}
	at = at.UTC()

	ready := make([]string, 0)
	for id, encoded := range t.state.Queue {
		due, err := store.ParseTime(encoded)
		if err != nil {
			t.logger.Warn("unparseable due timestamp, treating as due",
				slog.String("question_id", id),
				slog.String("due", encoded),
			)
			ready = append(ready, id)
			continue
		}
		if !due.After(at) {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

// DueAt returns the due instant held in the review queue for a question and
// whether the question is queued at all. A queued entry whose timestamp
// cannot be parsed reports the zero time, i.e. due immediately.
func (t *Tracker) DueAt(questionID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	encoded, ok := t.state.Queue[questionID]
	if !ok {
		return time.Time{}, false
	}
	due, err := store.ParseTime(encoded)
	if err != nil {
		return time.Time{}, true
	}
	return due, true
}

// MarkExported acknowledges that the given questions were handed off for
// review and removes them from the review queue. Ids that are not queued are
// ignored. State is persisted only when something was removed. It returns
// the number of removed entries.
//
// The attempt log's next review is left untouched, so NextReview keeps
// returning the exported instant until the next attempt overwrites it.
func (t *Tracker) MarkExported(ctx context.Context, questionIDs ...string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for _, id := range questionIDs {
		if _, ok := t.state.Queue[id]; ok {
			delete(t.state.Queue, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}

	op := t.begin(opMarkExported)
	err := t.persist(ctx, op)
	counters := t.updateStorageCounts(ctx)
	counters["removed"] = int64(removed)
	op.end(ctx, err, counters)
	if err != nil {
		return removed, err
	}

	t.logger.Info("exported items acknowledged",
		slog.Int("removed", removed),
		slog.Int("requested", len(questionIDs)),
	)
	return removed, nil
}
