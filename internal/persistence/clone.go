package persistence

// CloneBusy returns an independent copy of the busy list. A nil input yields
// an empty, non-nil slice.
func CloneBusy(busy []BusyInterval) []BusyInterval {
	out := make([]BusyInterval, len(busy))
	copy(out, busy)
	return out
}

// Clone returns a deep copy of the record.
func (r AvailabilityRecord) Clone() AvailabilityRecord {
	r.Busy = CloneBusy(r.Busy)
	return r
}
