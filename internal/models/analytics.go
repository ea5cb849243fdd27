package models

import "time"

// AnalyticsRollup is the per-user-per-day aggregate, keyed uniquely by
// (user, role, date). Date is the session's scheduled date, fixed at
// creation time.
type AnalyticsRollup struct {
	ID       string    `db:"id" json:"id"`
	UserID   string    `db:"user_id" json:"user_id"`
	UserRole Role      `db:"user_role" json:"user_role"`
	Date     time.Time `db:"date" json:"date"`

	TotalSessions     int `db:"total_sessions" json:"total_sessions"`
	CompletedSessions int `db:"completed_sessions" json:"completed_sessions"`
	CancelledSessions int `db:"cancelled_sessions" json:"cancelled_sessions"`
	NoShowSessions    int `db:"no_show_sessions" json:"no_show_sessions"`

	TotalSessionMinutes int     `db:"total_session_minutes" json:"total_session_minutes"`
	TotalRevenue        float64 `db:"total_revenue" json:"total_revenue"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RollupDelta is one additive rollup adjustment.
type RollupDelta struct {
	UserID   string
	UserRole Role
	Date     time.Time

	TotalSessions     int
	CompletedSessions int
	CancelledSessions int
	NoShowSessions    int

	TotalSessionMinutes int
	TotalRevenue        float64
}

// IsZero reports whether applying the delta would be a no-op.
func (d RollupDelta) IsZero() bool {
	return d.TotalSessions == 0 &&
		d.CompletedSessions == 0 &&
		d.CancelledSessions == 0 &&
		d.NoShowSessions == 0 &&
		d.TotalSessionMinutes == 0 &&
		d.TotalRevenue == 0
}
