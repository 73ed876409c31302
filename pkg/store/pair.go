package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// PairFileStore reads and writes the legacy two-artifact layout: a log
// document mapping question id to {attempts, next_review} and a queue
// document mapping question id to a due timestamp.
//
// Each artifact is replaced atomically, but the pair is not: a crash
// between the two renames leaves a new log next to an old queue. Prefer
// FileStore for new state and use this store to interoperate with
// existing files or to migrate them.
type PairFileStore struct {
	logPath   string
	queuePath string
}

// NewPairFileStore creates a store over the given log and queue artifact paths.
func NewPairFileStore(logPath, queuePath string) *PairFileStore {
	return &PairFileStore{logPath: logPath, queuePath: queuePath}
}

// Paths returns the log and queue artifact paths.
func (p *PairFileStore) Paths() (logPath, queuePath string) {
	return p.logPath, p.queuePath
}

// Load reads both artifacts. Each one independently falls back to an empty
// map when missing or malformed; a malformed artifact is also reported with
// ErrCorrupt alongside the recovered snapshot.
func (p *PairFileStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()
	var corrupt []error

	data, ok, err := readIfExists(p.logPath)
	if err != nil {
		return snap, err
	}
	if ok {
		var log map[string]*QuestionRecord
		if err := json.Unmarshal(data, &log); err != nil {
			corrupt = append(corrupt, fmt.Errorf("%s: %v", p.logPath, err))
		} else if log != nil {
			snap.Log = log
		}
	}

	data, ok, err = readIfExists(p.queuePath)
	if err != nil {
		return snap.normalize(), err
	}
	if ok {
		var queue map[string]string
		if err := json.Unmarshal(data, &queue); err != nil {
			corrupt = append(corrupt, fmt.Errorf("%s: %v", p.queuePath, err))
		} else if queue != nil {
			snap.Queue = queue
		}
	}

	snap.normalize()
	if len(corrupt) > 0 {
		return snap, fmt.Errorf("%w: %w", ErrCorrupt, errors.Join(corrupt...))
	}
	return snap, nil
}

// Save writes the log artifact, then the queue artifact.
func (p *PairFileStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		snap = NewSnapshot()
	}
	log := snap.Log
	if log == nil {
		log = map[string]*QuestionRecord{}
	}
	queue := snap.Queue
	if queue == nil {
		queue = map[string]string{}
	}
	if err := writeJSONAtomic(p.logPath, log); err != nil {
		return fmt.Errorf("failed to save attempt log: %w", err)
	}
	if err := writeJSONAtomic(p.queuePath, queue); err != nil {
		return fmt.Errorf("failed to save review queue: %w", err)
	}
	return nil
}

// Close is a no-op.
func (p *PairFileStore) Close() error {
	return nil
}
