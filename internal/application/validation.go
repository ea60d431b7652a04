package application

import (
	"fmt"
	"regexp"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// validSessionID reports whether id could have been issued by CreateSession.
// Malformed identifiers resolve as not found rather than invalid input.
func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func validateWindow(window Window) *ValidationError {
	vErr := &ValidationError{}
	if window.Start.IsZero() {
		vErr.add("from", "is required")
	}
	if window.End.IsZero() {
		vErr.add("to", "is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	if !window.Start.Before(window.End) {
		vErr.add("to", "must be after from")
	}
	return vErr
}

// validateBusy accepts unsorted and overlapping intervals but rejects
// intervals that end before they start.
func validateBusy(busy []BusyInterval) *ValidationError {
	vErr := &ValidationError{}
	for i, interval := range busy {
		if interval.Start.IsZero() || interval.End.IsZero() {
			vErr.add(fmt.Sprintf("busy[%d]", i), "start and end are required")
			continue
		}
		if interval.End.Before(interval.Start) {
			vErr.add(fmt.Sprintf("busy[%d]", i), "end must not be before start")
		}
	}
	return vErr
}
