package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/internal/repository"
	"github.com/spayyavula/campuspandit-sub007/pkg/clock"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

type mockSessionRepo struct {
	sessions     map[string]models.Session
	bookErr      error
	booked       []*models.Session
	cancelled    []string
	transitions  []string
	updateStatus bool
	cancelResult bool
	// raceTo simulates a concurrent winner: when the guarded update loses,
	// the stored session has already moved to this status.
	raceTo models.SessionStatus
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{
		sessions:     make(map[string]models.Session),
		updateStatus: true,
		cancelResult: true,
	}
}

func (m *mockSessionRepo) Book(ctx context.Context, session *models.Session) error {
	if m.bookErr != nil {
		return m.bookErr
	}
	if session.ID == "" {
		session.ID = "session-new"
	}
	m.sessions[session.ID] = *session
	m.booked = append(m.booked, session)
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, upd repository.StatusUpdate) (bool, error) {
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
	if !m.updateStatus {
		if m.raceTo != "" {
			if s, ok := m.sessions[id]; ok {
				s.Status = m.raceTo
				m.sessions[id] = s
			}
		}
		return false, nil
	}
	if s, ok := m.sessions[id]; ok {
		s.Status = to
		m.sessions[id] = s
	}
	return true, nil
}

func (m *mockSessionRepo) Cancel(ctx context.Context, id string, from models.SessionStatus, upd repository.StatusUpdate) (bool, error) {
	if !m.cancelResult {
		return false, nil
	}
	m.cancelled = append(m.cancelled, id)
	if s, ok := m.sessions[id]; ok {
		s.Status = models.SessionCancelled
		m.sessions[id] = s
	}
	return true, nil
}

func (m *mockSessionRepo) ListForUser(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	var out []models.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockSessionRepo) SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus, transactionID *string) (bool, error) {
	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	s.PaymentStatus = status
	s.PaymentTransactionID = transactionID
	m.sessions[id] = s
	return true, nil
}

func (m *mockSessionRepo) UpdateMaterials(ctx context.Context, id string, upd repository.MaterialsUpdate) (bool, error) {
	_, ok := m.sessions[id]
	return ok, nil
}

type mockSlotChecker struct {
	bookable    bool
	invalidated []string
}

func (m *mockSlotChecker) IsBookable(ctx context.Context, tutorID string, iv models.Interval) (bool, error) {
	return m.bookable, nil
}

func (m *mockSlotChecker) InvalidateTutor(ctx context.Context, tutorID string) {
	m.invalidated = append(m.invalidated, tutorID)
}

type mockObserver struct {
	created     []string
	transitions []models.SessionStatus
}

func (m *mockObserver) SessionCreated(ctx context.Context, session *models.Session) {
	m.created = append(m.created, session.ID)
}

func (m *mockObserver) SessionTransitioned(ctx context.Context, session *models.Session, to models.SessionStatus) {
	m.transitions = append(m.transitions, to)
}

type mockCanceller struct {
	cancelled []string
}

func (m *mockCanceller) CancelBySession(ctx context.Context, sessionID string) error {
	m.cancelled = append(m.cancelled, sessionID)
	return nil
}

type mockRecorder struct {
	records []models.NoShowRecord
}

func (m *mockRecorder) Record(ctx context.Context, session *models.Session, absent models.Role, markedBy string, reason *string) (*models.NoShowRecord, bool, error) {
	rec := models.NoShowRecord{SessionID: session.ID, UserRole: absent, MarkedBy: markedBy}
	m.records = append(m.records, rec)
	return &rec, true, nil
}

type bookingFixture struct {
	svc       *BookingService
	repo      *mockSessionRepo
	slots     *mockSlotChecker
	observer  *mockObserver
	canceller *mockCanceller
	recorder  *mockRecorder
	now       time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	f := &bookingFixture{
		repo:      newMockSessionRepo(),
		slots:     &mockSlotChecker{bookable: true},
		observer:  &mockObserver{},
		canceller: &mockCanceller{},
		recorder:  &mockRecorder{},
		now:       now,
	}
	f.svc = NewBookingService(f.repo, f.slots, f.recorder, f.observer, f.canceller, nil, clock.NewFixed(now), nil, nil)
	return f
}

func validBookRequest(start time.Time) BookRequest {
	return BookRequest{
		TutorID:         "tutor-1",
		Subject:         "algebra",
		Start:           start,
		DurationMinutes: 60,
		Timezone:        "UTC",
		PricePerHour:    40,
	}
}

func seedSession(f *bookingFixture, status models.SessionStatus) models.Session {
	session := models.Session{
		ID:              "session-1",
		StudentID:       "student-1",
		TutorID:         "tutor-1",
		Subject:         "algebra",
		DurationMinutes: 60,
		ScheduledStart:  f.now.Add(24 * time.Hour),
		ScheduledEnd:    f.now.Add(25 * time.Hour),
		Timezone:        "UTC",
		Status:          status,
		PricePerHour:    40,
		TotalPrice:      40,
		PaymentStatus:   models.PaymentPending,
	}
	f.repo.sessions[session.ID] = session
	return session
}

func TestBookCreatesScheduledSession(t *testing.T) {
	f := newBookingFixture(t)

	session, err := f.svc.Book(context.Background(), "student-1", validBookRequest(f.now.Add(24*time.Hour)))
	require.NoError(t, err)

	assert.Equal(t, models.SessionScheduled, session.Status)
	assert.Equal(t, models.PaymentPending, session.PaymentStatus)
	assert.Equal(t, float64(40), session.TotalPrice)
	assert.Equal(t, session.ScheduledStart.Add(time.Hour), session.ScheduledEnd)
	assert.Len(t, f.observer.created, 1)
	assert.NotEmpty(t, f.slots.invalidated)
}

func TestBookRejectsSelfBooking(t *testing.T) {
	f := newBookingFixture(t)
	req := validBookRequest(f.now.Add(24 * time.Hour))

	_, err := f.svc.Book(context.Background(), req.TutorID, req)
	assert.True(t, appErrors.Is(err, appErrors.ErrSelfBooking))
}

func TestBookRejectsPastStart(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.Book(context.Background(), "student-1", validBookRequest(f.now.Add(-time.Hour)))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestBookRejectsUnavailableSlot(t *testing.T) {
	f := newBookingFixture(t)
	f.slots.bookable = false

	_, err := f.svc.Book(context.Background(), "student-1", validBookRequest(f.now.Add(24*time.Hour)))
	assert.True(t, appErrors.Is(err, appErrors.ErrSlotUnavailable))
	assert.Empty(t, f.repo.booked)
}

func TestBookMapsConflictToSlotUnavailable(t *testing.T) {
	f := newBookingFixture(t)
	f.repo.bookErr = repository.ErrBlockConflict

	_, err := f.svc.Book(context.Background(), "student-1", validBookRequest(f.now.Add(24*time.Hour)))
	assert.True(t, appErrors.Is(err, appErrors.ErrSlotUnavailable))
	assert.Empty(t, f.observer.created)
}

func TestConfirmRequiresTutor(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionScheduled)

	_, err := f.svc.Confirm(context.Background(), "session-1", "student-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	session, err := f.svc.Confirm(context.Background(), "session-1", "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionConfirmed, session.Status)
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionScheduled)

	// scheduled sessions cannot start without confirmation
	_, err := f.svc.Start(context.Background(), "session-1", "tutor-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestTransitionLosesGuardedRace(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionScheduled)
	f.repo.updateStatus = false

	_, err := f.svc.Confirm(context.Background(), "session-1", "tutor-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestCompleteStampsActualEnd(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionInProgress)

	session, err := f.svc.Complete(context.Background(), "session-1", "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
	require.NotNil(t, session.ActualEnd)
	assert.Equal(t, f.now, *session.ActualEnd)
	assert.Contains(t, f.observer.transitions, models.SessionCompleted)
}

func TestCancelReleasesAndCleansUp(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionConfirmed)

	reason := "sick"
	session, err := f.svc.Cancel(context.Background(), "session-1", "student-1", &reason)
	require.NoError(t, err)

	assert.Equal(t, models.SessionCancelled, session.Status)
	assert.Contains(t, f.repo.cancelled, "session-1")
	assert.Contains(t, f.canceller.cancelled, "session-1")
	assert.Contains(t, f.slots.invalidated, "tutor-1")
	assert.Contains(t, f.observer.transitions, models.SessionCancelled)
}

func TestCancelRejectsTerminalSession(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionCompleted)

	_, err := f.svc.Cancel(context.Background(), "session-1", "student-1", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestCancelRejectsStranger(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionScheduled)

	_, err := f.svc.Cancel(context.Background(), "session-1", "someone-else", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestMarkNoShowBeforeStartRejected(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionConfirmed)

	_, err := f.svc.MarkNoShow(context.Background(), "session-1", models.RoleStudent, "tutor-1", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestMarkNoShowTransitionsAndRecords(t *testing.T) {
	f := newBookingFixture(t)
	session := seedSession(f, models.SessionConfirmed)
	session.ScheduledStart = f.now.Add(-time.Hour)
	session.ScheduledEnd = f.now.Add(-time.Minute)
	f.repo.sessions[session.ID] = session

	record, err := f.svc.MarkNoShow(context.Background(), "session-1", models.RoleStudent, "tutor-1", nil)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, models.RoleStudent, record.UserRole)
	assert.Len(t, f.recorder.records, 1)
	assert.Contains(t, f.observer.transitions, models.SessionNoShow)
	assert.Contains(t, f.canceller.cancelled, "session-1")
}

func TestMarkNoShowIdempotentOnStatus(t *testing.T) {
	f := newBookingFixture(t)
	session := seedSession(f, models.SessionNoShow)
	session.ScheduledStart = f.now.Add(-time.Hour)
	f.repo.sessions[session.ID] = session

	_, err := f.svc.MarkNoShow(context.Background(), "session-1", models.RoleTutor, "student-1", nil)
	require.NoError(t, err)
	assert.Empty(t, f.repo.transitions, "already no_show, no further status writes")
	assert.Len(t, f.recorder.records, 1)
}

func TestMarkNoShowLostRaceToTerminalState(t *testing.T) {
	f := newBookingFixture(t)
	session := seedSession(f, models.SessionInProgress)
	session.ScheduledStart = f.now.Add(-time.Hour)
	f.repo.sessions[session.ID] = session
	f.repo.updateStatus = false
	f.repo.raceTo = models.SessionCompleted

	_, err := f.svc.MarkNoShow(context.Background(), "session-1", models.RoleStudent, "tutor-1", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	assert.Empty(t, f.recorder.records, "no absence may attach to a completed session")
	assert.Empty(t, f.observer.transitions)
}

func TestMarkNoShowLostRaceToNoShowStillRecords(t *testing.T) {
	f := newBookingFixture(t)
	session := seedSession(f, models.SessionConfirmed)
	session.ScheduledStart = f.now.Add(-time.Hour)
	f.repo.sessions[session.ID] = session
	f.repo.updateStatus = false
	f.repo.raceTo = models.SessionNoShow

	record, err := f.svc.MarkNoShow(context.Background(), "session-1", models.RoleTutor, "student-1", nil)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Empty(t, f.observer.transitions, "the concurrent winner already fed analytics")
}

func TestRescheduleLinksReplacement(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionScheduled)

	newStart := f.now.Add(48 * time.Hour)
	replacement, err := f.svc.Reschedule(context.Background(), "session-1", "student-1", newStart)
	require.NoError(t, err)

	require.NotNil(t, replacement.RescheduledFrom)
	assert.Equal(t, "session-1", *replacement.RescheduledFrom)
	assert.Equal(t, newStart.UTC(), replacement.ScheduledStart)
	assert.Contains(t, f.repo.cancelled, "session-1")
}

func TestRecordPaymentUpdatesSession(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionScheduled)

	txn := "txn-42"
	require.NoError(t, f.svc.RecordPayment(context.Background(), "session-1", models.PaymentPaid, &txn))
	assert.Equal(t, models.PaymentPaid, f.repo.sessions["session-1"].PaymentStatus)

	err := f.svc.RecordPayment(context.Background(), "session-1", "garbage", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUpdateMaterialsStudentCannotEditTutorNotes(t *testing.T) {
	f := newBookingFixture(t)
	seedSession(f, models.SessionCompleted)

	notes := "great progress"
	err := f.svc.UpdateMaterials(context.Background(), "session-1", "student-1", repository.MaterialsUpdate{TutorNotes: &notes})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	err = f.svc.UpdateMaterials(context.Background(), "session-1", "tutor-1", repository.MaterialsUpdate{TutorNotes: &notes})
	assert.NoError(t, err)
}
