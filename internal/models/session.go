package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SessionStatus enumerates the tutoring session lifecycle.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionConfirmed  SessionStatus = "confirmed"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionNoShow     SessionStatus = "no_show"
)

// PaymentStatus tracks settlement state reported by the payment collaborator.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// Role identifies a session participant.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

// SystemActor marks transitions driven by the platform rather than a user.
const SystemActor = "system"

// sessionTransitions lists the permitted status edges.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled:  {SessionConfirmed, SessionCancelled, SessionNoShow},
	SessionConfirmed:  {SessionInProgress, SessionCancelled, SessionNoShow},
	SessionInProgress: {SessionCompleted, SessionNoShow},
}

// CanTransition reports whether from → to is a legal lifecycle edge.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transitions are allowed.
func IsTerminalStatus(s SessionStatus) bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionNoShow
}

// Session is a booked tutoring appointment between a student and a tutor.
type Session struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	TutorID   string `db:"tutor_id" json:"tutor_id"`

	Subject         string  `db:"subject" json:"subject"`
	Topic           *string `db:"topic" json:"topic,omitempty"`
	DurationMinutes int     `db:"duration_minutes" json:"duration_minutes"`

	ScheduledStart time.Time `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time `db:"scheduled_end" json:"scheduled_end"`
	Timezone       string    `db:"timezone" json:"timezone"`

	Status      SessionStatus `db:"status" json:"status"`
	ActualStart *time.Time    `db:"actual_start" json:"actual_start,omitempty"`
	ActualEnd   *time.Time    `db:"actual_end" json:"actual_end,omitempty"`

	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy        *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	RescheduledFrom    *string    `db:"rescheduled_from" json:"rescheduled_from,omitempty"`

	PricePerHour         float64       `db:"price_per_hour" json:"price_per_hour"`
	TotalPrice           float64       `db:"total_price" json:"total_price"`
	PaymentStatus        PaymentStatus `db:"payment_status" json:"payment_status"`
	PaymentTransactionID *string       `db:"payment_transaction_id" json:"payment_transaction_id,omitempty"`

	StudentNotes     *string        `db:"student_notes" json:"student_notes,omitempty"`
	TutorNotes       *string        `db:"tutor_notes" json:"tutor_notes,omitempty"`
	HomeworkAssigned *string        `db:"homework_assigned" json:"homework_assigned,omitempty"`
	FilesUploaded    types.JSONText `db:"files_uploaded" json:"files_uploaded,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Interval returns the scheduled range.
func (s *Session) Interval() Interval {
	return Interval{Start: s.ScheduledStart, End: s.ScheduledEnd}
}

// IsTerminal reports whether the session reached a final state.
func (s *Session) IsTerminal() bool {
	return IsTerminalStatus(s.Status)
}

// ParticipantRole returns the role userID plays in the session, or "" when
// the user is not a participant.
func (s *Session) ParticipantRole(userID string) Role {
	switch userID {
	case s.StudentID:
		return RoleStudent
	case s.TutorID:
		return RoleTutor
	default:
		return ""
	}
}

// ScheduledDate is the rollup key date: the scheduled start expressed in the
// session's own timezone, truncated to a calendar day.
func (s *Session) ScheduledDate() time.Time {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := s.ScheduledStart.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// SessionFilter describes query params for listing a user's sessions.
type SessionFilter struct {
	UserID   string
	Role     Role
	Status   SessionStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
