package models

import "time"

// NoShowRecord tracks a participant's failure to attend a session. At most
// one record exists per (session, role).
type NoShowRecord struct {
	ID        string `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"session_id"`
	UserID    string `db:"user_id" json:"user_id"`
	UserRole  Role   `db:"user_role" json:"user_role"`

	MarkedAt time.Time `db:"marked_at" json:"marked_at"`
	MarkedBy string    `db:"marked_by" json:"marked_by"`
	Reason   *string   `db:"reason" json:"reason,omitempty"`

	PenaltyApplied bool     `db:"penalty_applied" json:"penalty_applied"`
	PenaltyAmount  *float64 `db:"penalty_amount" json:"penalty_amount,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
