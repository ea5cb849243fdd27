package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

type noShowRepo interface {
	Insert(ctx context.Context, record *models.NoShowRecord) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.NoShowRecord, error)
}

// PenaltyPolicy decides whether an absence carries a financial penalty and
// how much. Pricing decisions stay pluggable so products can swap policies
// without touching the tracker.
type PenaltyPolicy interface {
	Assess(session *models.Session, absent models.Role) (amount float64, apply bool)
}

// StudentFeePolicy charges absent students a fraction of the session price
// and never penalises tutors.
type StudentFeePolicy struct {
	Fraction float64
}

// Assess implements PenaltyPolicy.
func (p StudentFeePolicy) Assess(session *models.Session, absent models.Role) (float64, bool) {
	if absent != models.RoleStudent || p.Fraction <= 0 {
		return 0, false
	}
	return session.TotalPrice * p.Fraction, true
}

// NoPenaltyPolicy records absences without charging anyone.
type NoPenaltyPolicy struct{}

// Assess implements PenaltyPolicy.
func (NoPenaltyPolicy) Assess(*models.Session, models.Role) (float64, bool) {
	return 0, false
}

// NoShowService records absences and applies the configured penalty policy.
type NoShowService struct {
	records noShowRepo
	policy  PenaltyPolicy
	logger  *zap.Logger
}

// NewNoShowService builds the tracker. A nil policy records without
// penalties.
func NewNoShowService(records noShowRepo, policy PenaltyPolicy, logger *zap.Logger) *NoShowService {
	if policy == nil {
		policy = NoPenaltyPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoShowService{records: records, policy: policy, logger: logger}
}

// Record stores one absence per (session, role). Repeat calls return the
// created=false path without touching the existing record, so penalties are
// never assessed twice.
func (s *NoShowService) Record(ctx context.Context, session *models.Session, absent models.Role, markedBy string, reason *string) (*models.NoShowRecord, bool, error) {
	userID := session.StudentID
	if absent == models.RoleTutor {
		userID = session.TutorID
	}

	record := &models.NoShowRecord{
		SessionID: session.ID,
		UserID:    userID,
		UserRole:  absent,
		MarkedBy:  markedBy,
		Reason:    reason,
	}
	if amount, apply := s.policy.Assess(session, absent); apply {
		record.PenaltyApplied = true
		record.PenaltyAmount = &amount
	}

	created, err := s.records.Insert(ctx, record)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record no-show")
	}
	if created {
		s.logger.Info("no-show recorded",
			zap.String("session_id", session.ID),
			zap.String("user_id", userID),
			zap.String("role", string(absent)),
			zap.Bool("penalty_applied", record.PenaltyApplied))
	}
	return record, created, nil
}

// History lists a user's absences, newest first.
func (s *NoShowService) History(ctx context.Context, userID string) ([]models.NoShowRecord, error) {
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list no-show history")
	}
	return records, nil
}
