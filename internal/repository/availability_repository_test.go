package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAvailabilityRepositoryInsertAndList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec("INSERT INTO tutor_availability").
		WithArgs(sqlmock.AnyArg(), "tutor-1", 1, "09:00", "12:00", "UTC", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.AvailabilityRule{
		TutorID:   "tutor-1",
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "12:00",
		Timezone:  "UTC",
		Active:    true,
	}
	require.NoError(t, repo.Insert(context.Background(), rule))
	assert.NotEmpty(t, rule.ID)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tutor_id", "day_of_week", "start_time", "end_time", "timezone", "is_active", "created_at", "updated_at"}).
		AddRow("rule-1", "tutor-1", 1, "09:00", "12:00", "UTC", true, now, now)
	mock.ExpectQuery("SELECT id, tutor_id, day_of_week, start_time, end_time, timezone, is_active, created_at, updated_at FROM tutor_availability WHERE tutor_id").
		WithArgs("tutor-1").
		WillReturnRows(rows)

	rules, err := repo.ListActiveByTutor(context.Background(), "tutor-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "rule-1", rules[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryExistsOverlapping(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("tutor-1", 1, "10:00", "11:00", "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsOverlapping(context.Background(), "tutor-1", 1, "10:00", "11:00", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The exclude-id clause must compare as text on both sides: the id column is
// a uuid, and an untyped '' sentinel would otherwise pin the parameter to
// text and leave the planner with no uuid <> text operator.
func TestAvailabilityRepositoryExistsOverlappingCastsExcludeID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	clause := regexp.QuoteMeta(`($5::text = '' OR id::text <> $5::text)`)

	mock.ExpectQuery(clause).
		WithArgs("tutor-1", 1, "10:00", "11:00", "rule-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.ExistsOverlapping(context.Background(), "tutor-1", 1, "10:00", "11:00", "rule-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec("UPDATE tutor_availability SET is_active = FALSE").
		WithArgs("rule-1", "tutor-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Deactivate(context.Background(), "tutor-1", "rule-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE tutor_availability SET is_active = FALSE").
		WithArgs("rule-gone", "tutor-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.Deactivate(context.Background(), "tutor-1", "rule-gone")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
