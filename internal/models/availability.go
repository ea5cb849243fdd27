package models

import (
	"fmt"
	"time"
)

// TimeOfDayFormat is the wire format for time-of-day fields ("HH:MM").
const TimeOfDayFormat = "15:04"

// AvailabilityRule is a weekly-repeating availability window for a tutor.
// DayOfWeek is Sunday-based (0=Sunday .. 6=Saturday), matching time.Weekday.
type AvailabilityRule struct {
	ID        string    `db:"id" json:"id"`
	TutorID   string    `db:"tutor_id" json:"tutor_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Active    bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Location resolves the rule's timezone, falling back to UTC.
func (r *AvailabilityRule) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WindowOn materialises the rule as an absolute interval on the given
// calendar day, interpreted in the rule's timezone. The day-of-week match is
// the caller's responsibility.
func (r *AvailabilityRule) WindowOn(year int, month time.Month, day int) (Interval, error) {
	start, err := time.Parse(TimeOfDayFormat, r.StartTime)
	if err != nil {
		return Interval{}, fmt.Errorf("parse rule start %q: %w", r.StartTime, err)
	}
	end, err := time.Parse(TimeOfDayFormat, r.EndTime)
	if err != nil {
		return Interval{}, fmt.Errorf("parse rule end %q: %w", r.EndTime, err)
	}

	loc := r.Location()
	return Interval{
		Start: time.Date(year, month, day, start.Hour(), start.Minute(), 0, 0, loc),
		End:   time.Date(year, month, day, end.Hour(), end.Minute(), 0, 0, loc),
	}, nil
}

// MinutesOfDay converts an "HH:MM" string to minutes since midnight.
func MinutesOfDay(tod string) (int, error) {
	t, err := time.Parse(TimeOfDayFormat, tod)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", tod, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// BlockKind classifies a time block exception.
type BlockKind string

const (
	BlockAvailable BlockKind = "available"
	BlockBlocked   BlockKind = "blocked"
	BlockBooked    BlockKind = "booked"
)

// TimeBlock is an absolute-datetime exception overriding the recurring
// schedule. Booked blocks carry the owning session id so cancellation can
// release them.
type TimeBlock struct {
	ID        string    `db:"id" json:"id"`
	TutorID   string    `db:"tutor_id" json:"tutor_id"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	Kind      BlockKind `db:"kind" json:"kind"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	SessionID *string   `db:"session_id" json:"session_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Interval returns the block's absolute range.
func (b *TimeBlock) Interval() Interval {
	return Interval{Start: b.StartAt, End: b.EndAt}
}

// Excludes reports whether this block removes candidates it overlaps.
func (b *TimeBlock) Excludes() bool {
	return b.Kind == BlockBlocked || b.Kind == BlockBooked
}
