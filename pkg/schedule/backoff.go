// Package schedule computes when a question should be reviewed again after
// an incorrect answer.
//
// The delay doubles with every incorrect attempt over the whole history of a
// question. Correct attempts clear the pending review but do not reset the
// count, so a question missed, answered, then missed again waits twice the
// base interval, not the base interval.
package schedule

import (
	"math"
	"time"
)

// DefaultBaseInterval is the delay after the first incorrect attempt.
const DefaultBaseInterval = 15 * time.Minute

// MaxInterval is the saturation point of the backoff.
const MaxInterval = time.Duration(math.MaxInt64)

// Backoff doubles BaseInterval per lifetime incorrect attempt.
type Backoff struct {
	BaseInterval time.Duration
}

// NewBackoff creates a Backoff from a base interval in minutes.
// Zero selects DefaultBaseInterval.
func NewBackoff(baseMinutes int) Backoff {
	if baseMinutes == 0 {
		return Backoff{BaseInterval: DefaultBaseInterval}
	}
	return Backoff{BaseInterval: time.Duration(baseMinutes) * time.Minute}
}

// Exponent returns the power of two applied to the base interval for a
// question with the given lifetime incorrect count: max(0, incorrect-1).
func Exponent(incorrect int) int {
	if incorrect <= 1 {
		return 0
	}
	return incorrect - 1
}

// Interval returns BaseInterval × 2^Exponent(incorrect), saturating at
// MaxInterval instead of overflowing.
func (b Backoff) Interval(incorrect int) time.Duration {
	base := b.BaseInterval
	if base <= 0 {
		return 0
	}
	e := Exponent(incorrect)
	// base << e overflows once e reaches the number of leading zero bits above base.
	if e >= 63 || base > MaxInterval>>uint(e) {
		return MaxInterval
	}
	return base << uint(e)
}

// Next returns the review instant for an incorrect attempt at `at`, given
// the lifetime incorrect count including that attempt.
func (b Backoff) Next(at time.Time, incorrect int) time.Time {
	return at.Add(b.Interval(incorrect))
}
