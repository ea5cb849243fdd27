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

func TestAnalyticsRepositoryIncrement(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO session_analytics").
		WithArgs(sqlmock.AnyArg(), "tutor-1", string(models.RoleTutor), date, 1, 0, 0, 0, 0, float64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Increment(context.Background(), models.RollupDelta{
		UserID:        "tutor-1",
		UserRole:      models.RoleTutor,
		Date:          date,
		TotalSessions: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryIncrementSkipsZeroDelta(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	// No expectations registered: a zero delta must not touch the database.
	err := repo.Increment(context.Background(), models.RollupDelta{
		UserID:   "tutor-1",
		UserRole: models.RoleTutor,
		Date:     time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryListRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	now := time.Now()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "user_role", "date", "total_sessions", "completed_sessions", "cancelled_sessions", "no_show_sessions", "total_session_minutes", "total_revenue", "created_at", "updated_at"}).
		AddRow("roll-1", "tutor-1", "tutor", date, 3, 2, 1, 0, 120, 80.0, now, now)
	mock.ExpectQuery("SELECT (.+) FROM session_analytics").
		WithArgs("tutor-1", string(models.RoleTutor), date, date.AddDate(0, 0, 7)).
		WillReturnRows(rows)

	rollups, err := repo.ListRange(context.Background(), "tutor-1", models.RoleTutor, date, date.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	assert.Equal(t, 2, rollups[0].CompletedSessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
