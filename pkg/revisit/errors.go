package revisit

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"syscall"

	"github.com/dan-solli/revisit/pkg/store"
)

// Sentinel errors for the revisit package.
// Use errors.Is to check: errors.Is(err, revisit.ErrPersist)
var (
	// ErrInvalidConfig is returned by New for unusable configuration.
	ErrInvalidConfig = errors.New("revisit: invalid configuration")

	// ErrStorage is returned by New when persisted state cannot be read
	// for reasons other than absence or corruption.
	ErrStorage = errors.New("revisit: storage unavailable")

	// ErrPersist is returned by mutating operations when the new state could
	// not be written. The in-memory state has already changed; callers should
	// stop using the tracker rather than retry blindly.
	ErrPersist = errors.New("revisit: failed to persist state")
)

// Error type constants for classification
const (
	ErrTypeStorage  = "storage"
	ErrTypeCorrupt  = "corrupt"
	ErrTypeConfig   = "config"
	ErrTypeTimeout  = "timeout"
	ErrTypeCanceled = "canceled"
	ErrTypeUnknown  = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrTypeCanceled
	case errors.Is(err, store.ErrCorrupt):
		return ErrTypeCorrupt
	case errors.Is(err, ErrInvalidConfig):
		return ErrTypeConfig
	case errors.Is(err, ErrPersist), errors.Is(err, ErrStorage):
		return ErrTypeStorage
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) ||
		errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, fs.ErrPermission) {
		return ErrTypeStorage
	}

	errStrLower := strings.ToLower(err.Error())
	if strings.Contains(errStrLower, "timeout") || strings.Contains(errStrLower, "deadline exceeded") {
		return ErrTypeTimeout
	}
	if strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "disk") ||
		strings.Contains(errStrLower, "permission denied") {
		return ErrTypeStorage
	}

	return ErrTypeUnknown
}
