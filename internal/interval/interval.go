// Package interval implements the pure time-window rules shared by every
// booking path: request-shape validation and the half-open overlap predicate.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMinimumDuration is the shortest bookable window when the caller does
// not configure one.
const DefaultMinimumDuration = 30 * time.Minute

// Kind identifies the validation rule a candidate window violated.
type Kind string

const (
	// KindMalformed indicates a missing or unparseable boundary.
	KindMalformed Kind = "malformed_interval"
	// KindInverted indicates the end does not come after the start.
	KindInverted Kind = "inverted_interval"
	// KindTooShort indicates the window is shorter than the minimum duration.
	KindTooShort Kind = "too_short"
	// KindInThePast indicates the window starts before the reference instant.
	KindInThePast Kind = "in_the_past"
)

// Error reports why a candidate window is not bookable.
type Error struct {
	Kind Kind
}

func (e *Error) Error() string {
	return fmt.Sprintf("interval: %s", e.Kind)
}

// KindOf extracts the validation kind from err, or "" when err is not an
// interval validation error.
func KindOf(err error) Kind {
	var ivErr *Error
	if errors.As(err, &ivErr) {
		return ivErr.Kind
	}
	return ""
}

// Validate applies the window rules in order: both boundaries present, end
// after start, minimum duration, not in the past. The reference instant is an
// explicit input; Validate never reads a clock.
func Validate(start, end, now time.Time, minDuration time.Duration) error {
	if minDuration <= 0 {
		minDuration = DefaultMinimumDuration
	}
	if start.IsZero() || end.IsZero() {
		return &Error{Kind: KindMalformed}
	}
	if !end.After(start) {
		return &Error{Kind: KindInverted}
	}
	if end.Sub(start) < minDuration {
		return &Error{Kind: KindTooShort}
	}
	if start.Before(now) {
		return &Error{Kind: KindInThePast}
	}
	return nil
}

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
