package scheduler

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the interval covers no time at all.
func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// Overlaps reports whether a and b share any instant. Touching endpoints do
// not overlap and a zero-length interval never overlaps anything.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// AnyOverlaps reports whether at least one interval in busy overlaps slot.
// The intervals may be in any order and may overlap each other.
func AnyOverlaps(busy []Interval, slot Interval) bool {
	for _, interval := range busy {
		if Overlaps(interval, slot) {
			return true
		}
	}
	return false
}
