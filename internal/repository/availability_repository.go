package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
)

// AvailabilityRepository persists recurring weekly availability rules.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = `id, tutor_id, day_of_week, start_time, end_time, timezone, is_active, created_at, updated_at`

// FindByID returns a single rule.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.AvailabilityRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM tutor_availability WHERE id = $1`, availabilityColumns)
	var rule models.AvailabilityRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListActiveByTutor returns all active rules for a tutor ordered by day and
// start time.
func (r *AvailabilityRepository) ListActiveByTutor(ctx context.Context, tutorID string) ([]models.AvailabilityRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM tutor_availability WHERE tutor_id = $1 AND is_active = TRUE ORDER BY day_of_week, start_time`, availabilityColumns)
	var rules []models.AvailabilityRule
	if err := r.db.SelectContext(ctx, &rules, query, tutorID); err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}

// ExistsOverlapping probes for an active rule on the same tutor/day whose
// [start,end) window intersects the given one. excludeID skips the rule
// being updated.
func (r *AvailabilityRepository) ExistsOverlapping(ctx context.Context, tutorID string, dayOfWeek int, startTime, endTime, excludeID string) (bool, error) {
	// id is a uuid column; cast both sides so the empty-string sentinel
	// never forces a uuid <> text comparison.
	const query = `SELECT EXISTS (
		SELECT 1 FROM tutor_availability
		WHERE tutor_id = $1 AND day_of_week = $2 AND is_active = TRUE
		  AND start_time < $4 AND end_time > $3
		  AND ($5::text = '' OR id::text <> $5::text)
	)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tutorID, dayOfWeek, startTime, endTime, excludeID); err != nil {
		return false, fmt.Errorf("probe overlapping rules: %w", err)
	}
	return exists, nil
}

// Insert stores a new rule.
func (r *AvailabilityRepository) Insert(ctx context.Context, rule *models.AvailabilityRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	const query = `INSERT INTO tutor_availability (id, tutor_id, day_of_week, start_time, end_time, timezone, is_active, created_at, updated_at)
		VALUES (:id, :tutor_id, :day_of_week, :start_time, :end_time, :timezone, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("insert availability rule: %w", err)
	}
	return nil
}

// Update rewrites an existing rule's window.
func (r *AvailabilityRepository) Update(ctx context.Context, rule *models.AvailabilityRule) error {
	rule.UpdatedAt = time.Now().UTC()

	const query = `UPDATE tutor_availability
		SET day_of_week = :day_of_week,
		    start_time = :start_time,
		    end_time = :end_time,
		    timezone = :timezone,
		    is_active = :is_active,
		    updated_at = :updated_at
		WHERE id = :id AND tutor_id = :tutor_id`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("update availability rule: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a rule. Rules are never hard-deleted so historical
// slot computations stay reproducible.
func (r *AvailabilityRepository) Deactivate(ctx context.Context, tutorID, id string) (bool, error) {
	const query = `UPDATE tutor_availability SET is_active = FALSE, updated_at = $3 WHERE id = $1 AND tutor_id = $2 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, tutorID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("deactivate availability rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
