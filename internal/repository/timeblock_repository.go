package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
)

// ErrBlockConflict signals that a booked block could not be placed because a
// blocked or booked block already covers part of the interval.
var ErrBlockConflict = errors.New("time block conflicts with an existing block")

// TimeBlockRepository persists one-off availability exceptions.
type TimeBlockRepository struct {
	db *sqlx.DB
}

// NewTimeBlockRepository constructs the repository.
func NewTimeBlockRepository(db *sqlx.DB) *TimeBlockRepository {
	return &TimeBlockRepository{db: db}
}

const timeBlockColumns = `id, tutor_id, start_at, end_at, kind, reason, session_id, created_at, updated_at`

// Create stores a provider-authored available/blocked exception. Tutors may
// overlap their own blocks freely, so no conflict probe runs here.
func (r *TimeBlockRepository) Create(ctx context.Context, block *models.TimeBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	block.CreatedAt = now
	block.UpdatedAt = now

	const query = `INSERT INTO time_blocks (id, tutor_id, start_at, end_at, kind, reason, session_id, created_at, updated_at)
		VALUES (:id, :tutor_id, :start_at, :end_at, :kind, :reason, :session_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("insert time block: %w", err)
	}
	return nil
}

// FindByID returns a single block.
func (r *TimeBlockRepository) FindByID(ctx context.Context, id string) (*models.TimeBlock, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_blocks WHERE id = $1`, timeBlockColumns)
	var block models.TimeBlock
	if err := r.db.GetContext(ctx, &block, query, id); err != nil {
		return nil, err
	}
	return &block, nil
}

// ListInRange returns blocks for a tutor intersecting [from, to), ordered by
// start time.
func (r *TimeBlockRepository) ListInRange(ctx context.Context, tutorID string, from, to time.Time) ([]models.TimeBlock, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_blocks WHERE tutor_id = $1 AND start_at < $3 AND end_at > $2 ORDER BY start_at`, timeBlockColumns)
	var blocks []models.TimeBlock
	if err := r.db.SelectContext(ctx, &blocks, query, tutorID, from, to); err != nil {
		return nil, fmt.Errorf("list time blocks: %w", err)
	}
	return blocks, nil
}

// Delete removes a tutor-authored block. Booked blocks are managed by the
// booking engine and cannot be deleted here.
func (r *TimeBlockRepository) Delete(ctx context.Context, tutorID, id string) (bool, error) {
	const query = `DELETE FROM time_blocks WHERE id = $1 AND tutor_id = $2 AND kind <> 'booked'`
	res, err := r.db.ExecContext(ctx, query, id, tutorID)
	if err != nil {
		return false, fmt.Errorf("delete time block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
