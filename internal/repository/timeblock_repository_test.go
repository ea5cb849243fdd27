package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
)

func TestTimeBlockRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeBlockRepository(db)

	start := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	mock.ExpectExec("INSERT INTO time_blocks").
		WillReturnResult(sqlmock.NewResult(1, 1))
	block := &models.TimeBlock{
		TutorID: "tutor-1",
		StartAt: start,
		EndAt:   end,
		Kind:    models.BlockBlocked,
	}
	require.NoError(t, repo.Create(context.Background(), block))
	assert.NotEmpty(t, block.ID)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tutor_id", "start_at", "end_at", "kind", "reason", "session_id", "created_at", "updated_at"}).
		AddRow("block-1", "tutor-1", start, end, "blocked", nil, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM time_blocks WHERE tutor_id").
		WithArgs("tutor-1", start, end).
		WillReturnRows(rows)

	blocks, err := repo.ListInRange(context.Background(), "tutor-1", start, end)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, models.BlockBlocked, blocks[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeBlockRepositoryDeleteSkipsBookedBlocks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeBlockRepository(db)

	mock.ExpectExec("DELETE FROM time_blocks").
		WithArgs("block-1", "tutor-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Delete(context.Background(), "tutor-1", "block-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
