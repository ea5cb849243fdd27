package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
)

// AnalyticsRepository maintains the per-user-per-day session rollups.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Increment applies a delta atomically via upsert. Counter additions happen
// inside the database, so concurrent increments for the same (user, role,
// date) key serialize on the row instead of losing updates.
func (r *AnalyticsRepository) Increment(ctx context.Context, delta models.RollupDelta) error {
	if delta.IsZero() {
		return nil
	}
	now := time.Now().UTC()

	const query = `INSERT INTO session_analytics (id, user_id, user_role, date,
		total_sessions, completed_sessions, cancelled_sessions, no_show_sessions,
		total_session_minutes, total_revenue, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (user_id, user_role, date) DO UPDATE
		SET total_sessions = session_analytics.total_sessions + EXCLUDED.total_sessions,
		    completed_sessions = session_analytics.completed_sessions + EXCLUDED.completed_sessions,
		    cancelled_sessions = session_analytics.cancelled_sessions + EXCLUDED.cancelled_sessions,
		    no_show_sessions = session_analytics.no_show_sessions + EXCLUDED.no_show_sessions,
		    total_session_minutes = session_analytics.total_session_minutes + EXCLUDED.total_session_minutes,
		    total_revenue = session_analytics.total_revenue + EXCLUDED.total_revenue,
		    updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), delta.UserID, delta.UserRole, delta.Date,
		delta.TotalSessions, delta.CompletedSessions, delta.CancelledSessions, delta.NoShowSessions,
		delta.TotalSessionMinutes, delta.TotalRevenue, now)
	if err != nil {
		return fmt.Errorf("increment rollup: %w", err)
	}
	return nil
}

const rollupColumns = `id, user_id, user_role, date, total_sessions, completed_sessions,
	cancelled_sessions, no_show_sessions, total_session_minutes, total_revenue,
	created_at, updated_at`

// ListRange returns rollup rows for a user/role across [from, to] inclusive,
// ordered by date.
func (r *AnalyticsRepository) ListRange(ctx context.Context, userID string, role models.Role, from, to time.Time) ([]models.AnalyticsRollup, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_analytics
		WHERE user_id = $1 AND user_role = $2 AND date >= $3 AND date <= $4
		ORDER BY date`, rollupColumns)
	var rollups []models.AnalyticsRollup
	if err := r.db.SelectContext(ctx, &rollups, query, userID, role, from, to); err != nil {
		return nil, fmt.Errorf("list rollups: %w", err)
	}
	return rollups, nil
}
