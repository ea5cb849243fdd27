package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
)

// SessionRepository persists tutoring sessions and owns the atomic
// reservation step that guards against double booking.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, student_id, tutor_id, subject, topic, duration_minutes,
	scheduled_start, scheduled_end, timezone, status, actual_start, actual_end,
	cancelled_at, cancelled_by, cancellation_reason, rescheduled_from,
	price_per_hour, total_price, payment_status, payment_transaction_id,
	student_notes, tutor_notes, homework_assigned, files_uploaded,
	created_at, updated_at`

// Book creates the session and its booked time block in one transaction.
// The block insert is guarded against overlapping blocked/booked blocks;
// losing the race rolls everything back and returns ErrBlockConflict, so no
// partial session/block pair is ever visible.
func (r *SessionRepository) Book(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	if len(session.FilesUploaded) == 0 {
		session.FilesUploaded = []byte("[]")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertSession = `INSERT INTO tutoring_sessions (id, student_id, tutor_id, subject, topic, duration_minutes,
		scheduled_start, scheduled_end, timezone, status,
		cancelled_at, cancelled_by, cancellation_reason, rescheduled_from,
		price_per_hour, total_price, payment_status, payment_transaction_id,
		student_notes, tutor_notes, homework_assigned, files_uploaded, created_at, updated_at)
		VALUES (:id, :student_id, :tutor_id, :subject, :topic, :duration_minutes,
		:scheduled_start, :scheduled_end, :timezone, :status,
		:cancelled_at, :cancelled_by, :cancellation_reason, :rescheduled_from,
		:price_per_hour, :total_price, :payment_status, :payment_transaction_id,
		:student_notes, :tutor_notes, :homework_assigned, :files_uploaded, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertSession, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	// The WHERE NOT EXISTS guard plus the exclusion constraint on booked
	// blocks are the sole defence against concurrent double booking.
	const insertBlock = `INSERT INTO time_blocks (id, tutor_id, start_at, end_at, kind, reason, session_id, created_at, updated_at)
		SELECT $1, $2, $3, $4, 'booked', NULL, $5, $6, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM time_blocks
			WHERE tutor_id = $2 AND kind IN ('blocked', 'booked')
			  AND start_at < $4 AND end_at > $3
		)`
	res, err := tx.ExecContext(ctx, insertBlock,
		uuid.NewString(), session.TutorID, session.ScheduledStart, session.ScheduledEnd, session.ID, now)
	if err != nil {
		if isBlockConflict(err) {
			return ErrBlockConflict
		}
		return fmt.Errorf("insert booked block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBlockConflict
	}

	if err := tx.Commit(); err != nil {
		if isBlockConflict(err) {
			return ErrBlockConflict
		}
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// isBlockConflict recognises exclusion/unique violations raised when two
// transactions race the same interval past the NOT EXISTS probe.
func isBlockConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23P01" || pqErr.Code == "23505"
	}
	return false
}

// FindByID returns a session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM tutoring_sessions WHERE id = $1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// StatusUpdate carries the extra columns written alongside a transition.
type StatusUpdate struct {
	ActualStart        *time.Time
	ActualEnd          *time.Time
	CancelledAt        *time.Time
	CancelledBy        *string
	CancellationReason *string
}

// UpdateStatus performs a guarded transition: the row only changes when its
// current status still equals from. The boolean result reports whether this
// caller won the transition.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, upd StatusUpdate) (bool, error) {
	const query = `UPDATE tutoring_sessions
		SET status = $3,
		    actual_start = COALESCE($4, actual_start),
		    actual_end = COALESCE($5, actual_end),
		    cancelled_at = COALESCE($6, cancelled_at),
		    cancelled_by = COALESCE($7, cancelled_by),
		    cancellation_reason = COALESCE($8, cancellation_reason),
		    updated_at = $9
		WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to,
		upd.ActualStart, upd.ActualEnd, upd.CancelledAt, upd.CancelledBy, upd.CancellationReason,
		time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update session status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Cancel transitions the session and releases its booked block in one
// transaction. Returns false when the guarded transition lost (session
// already moved on).
func (r *SessionRepository) Cancel(ctx context.Context, id string, from models.SessionStatus, upd StatusUpdate) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE tutoring_sessions
		SET status = 'cancelled',
		    cancelled_at = $3,
		    cancelled_by = $4,
		    cancellation_reason = $5,
		    updated_at = $3
		WHERE id = $1 AND status = $2`
	res, err := tx.ExecContext(ctx, update, id, from, time.Now().UTC(), upd.CancelledBy, upd.CancellationReason)
	if err != nil {
		return false, fmt.Errorf("cancel session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	// Releasing the block reopens the window for other bookers.
	const release = `DELETE FROM time_blocks WHERE session_id = $1 AND kind = 'booked'`
	if _, err := tx.ExecContext(ctx, release, id); err != nil {
		return false, fmt.Errorf("release booked block: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit cancel tx: %w", err)
	}
	return true, nil
}

// ListUpcoming returns non-terminal sessions starting inside (after, until],
// the reminder scanner's working set.
func (r *SessionRepository) ListUpcoming(ctx context.Context, after, until time.Time) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM tutoring_sessions
		WHERE status IN ('scheduled', 'confirmed')
		  AND scheduled_start > $1 AND scheduled_start <= $2
		ORDER BY scheduled_start`, sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, after, until); err != nil {
		return nil, fmt.Errorf("list upcoming sessions: %w", err)
	}
	return sessions, nil
}

// ListForUser returns sessions where the user participates in the given
// role, newest first, with a total count for pagination.
func (r *SessionRepository) ListForUser(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	where := []string{}
	args := []interface{}{}

	switch filter.Role {
	case models.RoleTutor:
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("tutor_id = $%d", len(args)))
	default:
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("scheduled_start >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("scheduled_start < $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tutoring_sessions WHERE %s`, clause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)
	listQuery := fmt.Sprintf(`SELECT %s FROM tutoring_sessions WHERE %s ORDER BY scheduled_start DESC LIMIT $%d OFFSET $%d`,
		sessionColumns, clause, len(args)-1, len(args))

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, total, nil
}

// SetPaymentStatus records a settlement update reported by the payment
// collaborator.
func (r *SessionRepository) SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus, transactionID *string) (bool, error) {
	const query = `UPDATE tutoring_sessions
		SET payment_status = $2,
		    payment_transaction_id = COALESCE($3, payment_transaction_id),
		    updated_at = $4
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, transactionID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set payment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MaterialsUpdate carries optional note/file updates.
type MaterialsUpdate struct {
	StudentNotes     *string
	TutorNotes       *string
	HomeworkAssigned *string
	FilesUploaded    []byte
}

// UpdateMaterials writes session notes and attachments without touching the
// lifecycle columns.
func (r *SessionRepository) UpdateMaterials(ctx context.Context, id string, upd MaterialsUpdate) (bool, error) {
	const query = `UPDATE tutoring_sessions
		SET student_notes = COALESCE($2, student_notes),
		    tutor_notes = COALESCE($3, tutor_notes),
		    homework_assigned = COALESCE($4, homework_assigned),
		    files_uploaded = COALESCE($5, files_uploaded),
		    updated_at = $6
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, upd.StudentNotes, upd.TutorNotes, upd.HomeworkAssigned, upd.FilesUploaded, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update session materials: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
