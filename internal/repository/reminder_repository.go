package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
)

// ReminderRepository persists reminder preferences and the dispatch log.
type ReminderRepository struct {
	db *sqlx.DB
}

// NewReminderRepository constructs the repository.
func NewReminderRepository(db *sqlx.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

const preferenceColumns = `id, user_id, email_enabled, sms_enabled, push_enabled,
	reminder_24h, reminder_2h, reminder_30m, reminder_custom_minutes,
	dnd_enabled, dnd_start, dnd_end, created_at, updated_at`

// GetPreference returns the stored preference row for a user.
func (r *ReminderRepository) GetPreference(ctx context.Context, userID string) (*models.ReminderPreference, error) {
	query := fmt.Sprintf(`SELECT %s FROM reminder_preferences WHERE user_id = $1`, preferenceColumns)
	var pref models.ReminderPreference
	if err := r.db.GetContext(ctx, &pref, query, userID); err != nil {
		return nil, err
	}
	return &pref, nil
}

// UpsertPreference creates or replaces a user's reminder preferences.
func (r *ReminderRepository) UpsertPreference(ctx context.Context, pref *models.ReminderPreference) error {
	if pref.ID == "" {
		pref.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now

	const query = `INSERT INTO reminder_preferences (id, user_id, email_enabled, sms_enabled, push_enabled,
		reminder_24h, reminder_2h, reminder_30m, reminder_custom_minutes,
		dnd_enabled, dnd_start, dnd_end, created_at, updated_at)
		VALUES (:id, :user_id, :email_enabled, :sms_enabled, :push_enabled,
		:reminder_24h, :reminder_2h, :reminder_30m, :reminder_custom_minutes,
		:dnd_enabled, :dnd_start, :dnd_end, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET email_enabled = EXCLUDED.email_enabled,
		    sms_enabled = EXCLUDED.sms_enabled,
		    push_enabled = EXCLUDED.push_enabled,
		    reminder_24h = EXCLUDED.reminder_24h,
		    reminder_2h = EXCLUDED.reminder_2h,
		    reminder_30m = EXCLUDED.reminder_30m,
		    reminder_custom_minutes = EXCLUDED.reminder_custom_minutes,
		    dnd_enabled = EXCLUDED.dnd_enabled,
		    dnd_start = EXCLUDED.dnd_start,
		    dnd_end = EXCLUDED.dnd_end,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, pref); err != nil {
		return fmt.Errorf("upsert reminder preference: %w", err)
	}
	return nil
}

const logColumns = `id, session_id, user_id, reminder_type, channel, status,
	sent_at, error_message, opened_at, clicked_at, created_at`

// InsertLog creates a pending log row for the tuple. The unique constraint
// on (session, user, type, channel) makes concurrent scanners collapse to a
// single row; the boolean result reports whether this caller created it.
func (r *ReminderRepository) InsertLog(ctx context.Context, log *models.ReminderLog) (bool, error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Status == "" {
		log.Status = models.ReminderPending
	}
	log.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO reminder_logs (id, session_id, user_id, reminder_type, channel, status, sent_at, error_message, opened_at, clicked_at, created_at)
		VALUES (:id, :session_id, :user_id, :reminder_type, :channel, :status, :sent_at, :error_message, :opened_at, :clicked_at, :created_at)
		ON CONFLICT (session_id, user_id, reminder_type, channel) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, log)
	if err != nil {
		return false, fmt.Errorf("insert reminder log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FindLog returns the log row for a dispatch tuple.
func (r *ReminderRepository) FindLog(ctx context.Context, sessionID, userID string, typ models.ReminderType, channel models.Channel) (*models.ReminderLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM reminder_logs WHERE session_id = $1 AND user_id = $2 AND reminder_type = $3 AND channel = $4`, logColumns)
	var log models.ReminderLog
	if err := r.db.GetContext(ctx, &log, query, sessionID, userID, typ, channel); err != nil {
		return nil, err
	}
	return &log, nil
}

// ListBySession returns all log rows for a session.
func (r *ReminderRepository) ListBySession(ctx context.Context, sessionID string) ([]models.ReminderLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM reminder_logs WHERE session_id = $1 ORDER BY created_at`, logColumns)
	var logs []models.ReminderLog
	if err := r.db.SelectContext(ctx, &logs, query, sessionID); err != nil {
		return nil, fmt.Errorf("list reminder logs: %w", err)
	}
	return logs, nil
}

// MarkSent promotes a row to sent. The status guard means only one caller
// ever succeeds for a tuple.
func (r *ReminderRepository) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE reminder_logs SET status = 'sent', sent_at = $2, error_message = NULL
		WHERE id = $1 AND status IN ('pending', 'failed')`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkFailed records a dispatch failure for later retry.
func (r *ReminderRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE reminder_logs SET status = 'failed', error_message = $2
		WHERE id = $1 AND status IN ('pending', 'failed')`
	if _, err := r.db.ExecContext(ctx, query, id, message); err != nil {
		return fmt.Errorf("mark reminder failed: %w", err)
	}
	return nil
}

// MarkCancelled abandons a reminder that is no longer worth sending.
func (r *ReminderRepository) MarkCancelled(ctx context.Context, id string) error {
	const query = `UPDATE reminder_logs SET status = 'cancelled'
		WHERE id = $1 AND status IN ('pending', 'failed')`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark reminder cancelled: %w", err)
	}
	return nil
}

// CancelBySession abandons all unsent reminders for a session, used when it
// is cancelled or rescheduled.
func (r *ReminderRepository) CancelBySession(ctx context.Context, sessionID string) error {
	const query = `UPDATE reminder_logs SET status = 'cancelled'
		WHERE session_id = $1 AND status IN ('pending', 'failed')`
	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("cancel reminders for session: %w", err)
	}
	return nil
}

// MarkOpened stamps open telemetry on a sent reminder.
func (r *ReminderRepository) MarkOpened(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE reminder_logs SET opened_at = COALESCE(opened_at, $2) WHERE id = $1 AND status = 'sent'`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark reminder opened: %w", err)
	}
	return nil
}

// MarkClicked stamps click telemetry on a sent reminder.
func (r *ReminderRepository) MarkClicked(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE reminder_logs SET clicked_at = COALESCE(clicked_at, $2) WHERE id = $1 AND status = 'sent'`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark reminder clicked: %w", err)
	}
	return nil
}
