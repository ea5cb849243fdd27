package models

import "time"

// Slot is a candidate bookable interval for a tutor. Unavailable slots are
// reported so callers can render the full grid.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// Interval returns the slot's range.
func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}
