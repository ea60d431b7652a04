package scheduler

import "time"

const (
	// DefaultDayStartHour is the first displayed hour of each day.
	DefaultDayStartHour = 8
	// DefaultSlotDuration is the width of one grid cell.
	DefaultSlotDuration = 30 * time.Minute
	// DefaultSlotsPerDay covers 08:00 to 20:00 with the default slot width.
	DefaultSlotsPerDay = 24
	// DefaultDays is the number of days in a window.
	DefaultDays = 7
)

// Record is one participant's busy intervals within a window.
type Record struct {
	ParticipantID string
	Busy          []Interval
}

// Slot is a grid cell annotated with the number of busy participants.
type Slot struct {
	Interval
	Count int
}

// Grid describes how a window is cut into slots.
type Grid struct {
	DayStartHour int
	SlotDuration time.Duration
	SlotsPerDay  int
	Days         int
	// Location decides which calendar date and which 08:00 a window start
	// maps to. Nil means UTC.
	Location *time.Location
}

// DefaultGrid returns the 7 day, 08:00-20:00, 30 minute grid.
func DefaultGrid() Grid {
	return Grid{
		DayStartHour: DefaultDayStartHour,
		SlotDuration: DefaultSlotDuration,
		SlotsPerDay:  DefaultSlotsPerDay,
		Days:         DefaultDays,
		Location:     time.UTC,
	}
}

// WithLocation returns a copy of the grid anchored in loc.
func (g Grid) WithLocation(loc *time.Location) Grid {
	g.Location = loc
	return g
}

// Size is the number of slots produced for every window.
func (g Grid) Size() int {
	return g.Days * g.SlotsPerDay
}

// Slots lays out the empty grid for a window starting at windowStart, day
// major then time major.
func (g Grid) Slots(windowStart time.Time) []Slot {
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	local := windowStart.In(loc)
	year, month, day := local.Date()

	slots := make([]Slot, 0, g.Size())
	for d := 0; d < g.Days; d++ {
		dayStart := time.Date(year, month, day+d, g.DayStartHour, 0, 0, 0, loc)
		for i := 0; i < g.SlotsPerDay; i++ {
			start := dayStart.Add(time.Duration(i) * g.SlotDuration)
			slots = append(slots, Slot{Interval: Interval{Start: start, End: start.Add(g.SlotDuration)}})
		}
	}
	return slots
}

// Bucketize counts, for every slot of the window, how many records have at
// least one busy interval overlapping it. A record contributes at most one to
// any slot regardless of how many of its intervals overlap.
func (g Grid) Bucketize(windowStart time.Time, records []Record) []Slot {
	slots := g.Slots(windowStart)
	for idx := range slots {
		for _, record := range records {
			if AnyOverlaps(record.Busy, slots[idx].Interval) {
				slots[idx].Count++
			}
		}
	}
	return slots
}

// Bucketize runs the default grid in UTC.
func Bucketize(windowStart time.Time, records []Record) []Slot {
	return DefaultGrid().Bucketize(windowStart, records)
}
