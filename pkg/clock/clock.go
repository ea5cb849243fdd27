package clock

import "time"

// Clock abstracts the current time so scheduling logic stays deterministic
// under test.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Tests advance it explicitly.
type Fixed struct {
	Current time.Time
}

// NewFixed builds a fixed clock pinned at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{Current: t}
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	return f.Current
}

// Advance moves the pinned instant forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
