// Package scheduler contains the pure availability math: half-open interval
// overlap and the weekly slot grid that turns per-participant busy intervals
// into free/busy counts. Nothing in this package performs I/O.
package scheduler
