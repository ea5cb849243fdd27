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

func TestReminderRepositoryInsertLogDeduplicates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReminderRepository(db)

	mock.ExpectExec("INSERT INTO reminder_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	created, err := repo.InsertLog(context.Background(), &models.ReminderLog{
		SessionID: "sess-1",
		UserID:    "student-1",
		Type:      models.Reminder24h,
		Channel:   models.ChannelEmail,
	})
	require.NoError(t, err)
	assert.True(t, created)

	// ON CONFLICT DO NOTHING: the second insert affects zero rows.
	mock.ExpectExec("INSERT INTO reminder_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = repo.InsertLog(context.Background(), &models.ReminderLog{
		SessionID: "sess-1",
		UserID:    "student-1",
		Type:      models.Reminder24h,
		Channel:   models.ChannelEmail,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderRepositoryMarkSentOnlyOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReminderRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE reminder_logs SET status = 'sent'").
		WithArgs("log-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	won, err := repo.MarkSent(context.Background(), "log-1", at)
	require.NoError(t, err)
	assert.True(t, won)

	mock.ExpectExec("UPDATE reminder_logs SET status = 'sent'").
		WithArgs("log-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	won, err = repo.MarkSent(context.Background(), "log-1", at)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderRepositoryUpsertPreference(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReminderRepository(db)

	mock.ExpectExec("INSERT INTO reminder_preferences").
		WillReturnResult(sqlmock.NewResult(1, 1))

	pref := models.DefaultReminderPreference("user-1")
	require.NoError(t, repo.UpsertPreference(context.Background(), pref))
	assert.NotEmpty(t, pref.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
