package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/internal/repository"
	"github.com/spayyavula/campuspandit-sub007/pkg/clock"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

type bookingSessionRepo interface {
	Book(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, upd repository.StatusUpdate) (bool, error)
	Cancel(ctx context.Context, id string, from models.SessionStatus, upd repository.StatusUpdate) (bool, error)
	ListForUser(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus, transactionID *string) (bool, error)
	UpdateMaterials(ctx context.Context, id string, upd repository.MaterialsUpdate) (bool, error)
}

type slotChecker interface {
	IsBookable(ctx context.Context, tutorID string, iv models.Interval) (bool, error)
	InvalidateTutor(ctx context.Context, tutorID string)
}

type noShowRecorder interface {
	Record(ctx context.Context, session *models.Session, absent models.Role, markedBy string, reason *string) (*models.NoShowRecord, bool, error)
}

type transitionObserver interface {
	SessionCreated(ctx context.Context, session *models.Session)
	SessionTransitioned(ctx context.Context, session *models.Session, to models.SessionStatus)
}

type reminderCanceller interface {
	CancelBySession(ctx context.Context, sessionID string) error
}

type bookingMetrics interface {
	ObserveBooking(outcome string)
}

// BookRequest describes a booking attempt by a student.
type BookRequest struct {
	TutorID         string    `json:"tutor_id" validate:"required"`
	Subject         string    `json:"subject" validate:"required,max=120"`
	Topic           *string   `json:"topic"`
	Start           time.Time `json:"start" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=15,max=480"`
	Timezone        string    `json:"timezone"`
	PricePerHour    float64   `json:"price_per_hour" validate:"min=0"`
}

// BookingService owns the session lifecycle: booking, guarded status
// transitions, cancellation, rescheduling and no-show marking.
type BookingService struct {
	sessions  bookingSessionRepo
	slots     slotChecker
	noShows   noShowRecorder
	analytics transitionObserver
	reminders reminderCanceller
	metrics   bookingMetrics
	clock     clock.Clock
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService builds the service. noShows, analytics, reminders and
// metrics may be nil when the corresponding side effects are not wanted.
func NewBookingService(
	sessions bookingSessionRepo,
	slots slotChecker,
	noShows noShowRecorder,
	analytics transitionObserver,
	reminders reminderCanceller,
	metrics bookingMetrics,
	clk clock.Clock,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if clk == nil {
		clk = clock.System{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		sessions:  sessions,
		slots:     slots,
		noShows:   noShows,
		analytics: analytics,
		reminders: reminders,
		metrics:   metrics,
		clock:     clk,
		validator: validate,
		logger:    logger,
	}
}

// Book reserves a session for the student. The slot is re-validated against
// live availability, then the repository performs the atomic insert; a lost
// race surfaces as ErrSlotUnavailable, never as a partial booking.
func (s *BookingService) Book(ctx context.Context, studentID string, req BookRequest) (*models.Session, error) {
	return s.book(ctx, studentID, req, nil)
}

func (s *BookingService) book(ctx context.Context, studentID string, req BookRequest, rescheduledFrom *string) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if studentID == req.TutorID {
		return nil, appErrors.ErrSelfBooking
	}
	now := s.clock.Now()
	if !req.Start.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start must be in the future")
	}

	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
	}

	start := req.Start.UTC()
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	iv := models.Interval{Start: start, End: end}

	bookable, err := s.slots.IsBookable(ctx, req.TutorID, iv)
	if err != nil {
		return nil, err
	}
	if !bookable {
		s.observe("rejected")
		return nil, appErrors.ErrSlotUnavailable
	}

	session := &models.Session{
		StudentID:       studentID,
		TutorID:         req.TutorID,
		Subject:         req.Subject,
		Topic:           req.Topic,
		DurationMinutes: req.DurationMinutes,
		ScheduledStart:  start,
		ScheduledEnd:    end,
		Timezone:        tz,
		Status:          models.SessionScheduled,
		RescheduledFrom: rescheduledFrom,
		PricePerHour:    req.PricePerHour,
		TotalPrice:      req.PricePerHour * float64(req.DurationMinutes) / 60,
		PaymentStatus:   models.PaymentPending,
	}

	if err := s.sessions.Book(ctx, session); err != nil {
		if err == repository.ErrBlockConflict {
			s.observe("conflict")
			return nil, appErrors.ErrSlotUnavailable
		}
		s.observe("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book session")
	}

	s.observe("booked")
	s.slots.InvalidateTutor(ctx, req.TutorID)
	if s.analytics != nil {
		s.analytics.SessionCreated(ctx, session)
	}
	s.logger.Info("session booked",
		zap.String("session_id", session.ID),
		zap.String("tutor_id", session.TutorID),
		zap.Time("scheduled_start", session.ScheduledStart))
	return session, nil
}

// Get returns a session visible to the given participant.
func (s *BookingService) Get(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ParticipantRole(userID) == "" {
		return nil, appErrors.ErrForbidden
	}
	return session, nil
}

// List returns the user's sessions matching the filter.
func (s *BookingService) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	sessions, total, err := s.sessions.ListForUser(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, total, nil
}

// Confirm moves scheduled → confirmed. Only the tutor may confirm.
func (s *BookingService) Confirm(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	return s.transition(ctx, sessionID, userID, models.SessionConfirmed, func(session *models.Session) error {
		if session.ParticipantRole(userID) != models.RoleTutor {
			return appErrors.Clone(appErrors.ErrForbidden, "only the tutor can confirm")
		}
		return nil
	}, repository.StatusUpdate{})
}

// Start moves confirmed → in_progress and stamps the actual start.
func (s *BookingService) Start(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	now := s.clock.Now()
	return s.transition(ctx, sessionID, userID, models.SessionInProgress, nil,
		repository.StatusUpdate{ActualStart: &now})
}

// Complete moves in_progress → completed and stamps the actual end.
func (s *BookingService) Complete(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	now := s.clock.Now()
	return s.transition(ctx, sessionID, userID, models.SessionCompleted, nil,
		repository.StatusUpdate{ActualEnd: &now})
}

// transition runs a guarded lifecycle edge: load, authorize, check the edge,
// then compare-and-set on the current status. A concurrent move surfaces as
// ErrInvalidTransition.
func (s *BookingService) transition(
	ctx context.Context,
	sessionID, userID string,
	to models.SessionStatus,
	authorize func(*models.Session) error,
	upd repository.StatusUpdate,
) (*models.Session, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ParticipantRole(userID) == "" && userID != models.SystemActor {
		return nil, appErrors.ErrForbidden
	}
	if authorize != nil {
		if err := authorize(session); err != nil {
			return nil, err
		}
	}
	if !models.CanTransition(session.Status, to) {
		return nil, appErrors.ErrInvalidTransition
	}

	won, err := s.sessions.UpdateStatus(ctx, sessionID, session.Status, to, upd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}
	if !won {
		return nil, appErrors.ErrInvalidTransition
	}

	if s.analytics != nil {
		s.analytics.SessionTransitioned(ctx, session, to)
	}
	session.Status = to
	if upd.ActualStart != nil {
		session.ActualStart = upd.ActualStart
	}
	if upd.ActualEnd != nil {
		session.ActualEnd = upd.ActualEnd
	}
	return session, nil
}

// Cancel ends a scheduled or confirmed session, releases its booked block and
// drops any pending reminders. userID may be a participant or SystemActor.
func (s *BookingService) Cancel(ctx context.Context, sessionID, userID string, reason *string) (*models.Session, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ParticipantRole(userID) == "" && userID != models.SystemActor {
		return nil, appErrors.ErrForbidden
	}
	if !models.CanTransition(session.Status, models.SessionCancelled) {
		return nil, appErrors.ErrInvalidTransition
	}

	now := s.clock.Now()
	won, err := s.sessions.Cancel(ctx, sessionID, session.Status, repository.StatusUpdate{
		CancelledAt:        &now,
		CancelledBy:        &userID,
		CancellationReason: reason,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	if !won {
		return nil, appErrors.ErrInvalidTransition
	}

	s.slots.InvalidateTutor(ctx, session.TutorID)
	if s.reminders != nil {
		if err := s.reminders.CancelBySession(ctx, sessionID); err != nil {
			s.logger.Warn("failed to cancel pending reminders", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if s.analytics != nil {
		s.analytics.SessionTransitioned(ctx, session, models.SessionCancelled)
	}

	session.Status = models.SessionCancelled
	session.CancelledAt = &now
	session.CancelledBy = &userID
	session.CancellationReason = reason
	return session, nil
}

// Reschedule cancels the old session and books a replacement at the new
// start. The new session records its predecessor in rescheduled_from.
func (s *BookingService) Reschedule(ctx context.Context, sessionID, userID string, newStart time.Time) (*models.Session, error) {
	old, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if old.ParticipantRole(userID) == "" {
		return nil, appErrors.ErrForbidden
	}
	if !models.CanTransition(old.Status, models.SessionCancelled) {
		return nil, appErrors.ErrInvalidTransition
	}

	newIv := models.Interval{
		Start: newStart.UTC(),
		End:   newStart.UTC().Add(time.Duration(old.DurationMinutes) * time.Minute),
	}
	bookable, err := s.slots.IsBookable(ctx, old.TutorID, newIv)
	if err != nil {
		return nil, err
	}
	if !bookable {
		return nil, appErrors.ErrSlotUnavailable
	}

	reason := "rescheduled"
	if _, err := s.Cancel(ctx, sessionID, userID, &reason); err != nil {
		return nil, err
	}

	return s.book(ctx, old.StudentID, BookRequest{
		TutorID:         old.TutorID,
		Subject:         old.Subject,
		Topic:           old.Topic,
		Start:           newIv.Start,
		DurationMinutes: old.DurationMinutes,
		Timezone:        old.Timezone,
		PricePerHour:    old.PricePerHour,
	}, &sessionID)
}

// MarkNoShow flags an absent participant after the scheduled start. The
// status transition happens once; the history record is idempotent per
// (session, role).
func (s *BookingService) MarkNoShow(ctx context.Context, sessionID string, absent models.Role, markedBy string, reason *string) (*models.NoShowRecord, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ParticipantRole(markedBy) == "" && markedBy != models.SystemActor {
		return nil, appErrors.ErrForbidden
	}
	if s.clock.Now().Before(session.ScheduledStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session has not started yet")
	}

	if session.Status != models.SessionNoShow {
		if !models.CanTransition(session.Status, models.SessionNoShow) {
			return nil, appErrors.ErrInvalidTransition
		}
		won, err := s.sessions.UpdateStatus(ctx, sessionID, session.Status, models.SessionNoShow, repository.StatusUpdate{})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark session no-show")
		}
		if !won {
			// A concurrent caller moved the session. Unless it landed on
			// no_show itself, this marking is stale.
			current, err := s.find(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			if current.Status != models.SessionNoShow {
				return nil, appErrors.ErrInvalidTransition
			}
			session = current
		} else {
			if s.analytics != nil {
				s.analytics.SessionTransitioned(ctx, session, models.SessionNoShow)
			}
			if s.reminders != nil {
				if err := s.reminders.CancelBySession(ctx, sessionID); err != nil {
					s.logger.Warn("failed to cancel pending reminders", zap.String("session_id", sessionID), zap.Error(err))
				}
			}
			session.Status = models.SessionNoShow
		}
	}

	if s.noShows == nil {
		return nil, nil
	}
	record, _, err := s.noShows.Record(ctx, session, absent, markedBy, reason)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RecordPayment stores a settlement update reported by the payment
// collaborator.
func (s *BookingService) RecordPayment(ctx context.Context, sessionID string, status models.PaymentStatus, transactionID *string) error {
	switch status {
	case models.PaymentPending, models.PaymentPaid, models.PaymentRefunded, models.PaymentFailed:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}
	ok, err := s.sessions.SetPaymentStatus(ctx, sessionID, status, transactionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return nil
}

// UpdateMaterials writes notes, homework and attachments. Students may only
// edit their own notes.
func (s *BookingService) UpdateMaterials(ctx context.Context, sessionID, userID string, upd repository.MaterialsUpdate) error {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return err
	}
	switch session.ParticipantRole(userID) {
	case models.RoleTutor:
	case models.RoleStudent:
		if upd.TutorNotes != nil || upd.HomeworkAssigned != nil {
			return appErrors.Clone(appErrors.ErrForbidden, "students cannot edit tutor materials")
		}
	default:
		return appErrors.ErrForbidden
	}
	ok, err := s.sessions.UpdateMaterials(ctx, sessionID, upd)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session materials")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return nil
}

func (s *BookingService) find(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *BookingService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveBooking(outcome)
	}
}
