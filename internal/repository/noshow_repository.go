package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
)

// NoShowRepository persists no-show records.
type NoShowRepository struct {
	db *sqlx.DB
}

// NewNoShowRepository constructs the repository.
func NewNoShowRepository(db *sqlx.DB) *NoShowRepository {
	return &NoShowRepository{db: db}
}

const noShowColumns = `id, session_id, user_id, user_role, marked_at, marked_by, reason, penalty_applied, penalty_amount, created_at`

// Insert stores a record. The unique constraint on (session, role) makes a
// second call for the same tuple a no-op; the boolean reports whether the
// row was created.
func (r *NoShowRepository) Insert(ctx context.Context, record *models.NoShowRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.MarkedAt.IsZero() {
		record.MarkedAt = now
	}
	record.CreatedAt = now

	const query = `INSERT INTO no_show_history (id, session_id, user_id, user_role, marked_at, marked_by, reason, penalty_applied, penalty_amount, created_at)
		VALUES (:id, :session_id, :user_id, :user_role, :marked_at, :marked_by, :reason, :penalty_applied, :penalty_amount, :created_at)
		ON CONFLICT (session_id, user_role) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return false, fmt.Errorf("insert no-show record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FindBySessionAndRole returns the record for a tuple.
func (r *NoShowRepository) FindBySessionAndRole(ctx context.Context, sessionID string, role models.Role) (*models.NoShowRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM no_show_history WHERE session_id = $1 AND user_role = $2`, noShowColumns)
	var record models.NoShowRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, role); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByUser returns a user's no-show history, newest first.
func (r *NoShowRepository) ListByUser(ctx context.Context, userID string) ([]models.NoShowRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM no_show_history WHERE user_id = $1 ORDER BY marked_at DESC`, noShowColumns)
	var records []models.NoShowRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list no-show records: %w", err)
	}
	return records, nil
}
