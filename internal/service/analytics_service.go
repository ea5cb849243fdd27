package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/pkg/config"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

type analyticsRepo interface {
	Increment(ctx context.Context, delta models.RollupDelta) error
	ListRange(ctx context.Context, userID string, role models.Role, from, to time.Time) ([]models.AnalyticsRollup, error)
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AnalyticsService maintains per-user-per-day rollups fed by session
// lifecycle events. Writes are additive upserts, so replayed events with a
// zero delta and concurrent increments both stay correct.
type AnalyticsService struct {
	repo   analyticsRepo
	cache  analyticsCache
	cfg    config.AnalyticsConfig
	logger *zap.Logger
}

// NewAnalyticsService builds the aggregator. cache may be nil.
func NewAnalyticsService(repo analyticsRepo, cache analyticsCache, cfg config.AnalyticsConfig, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, cfg: cfg, logger: logger}
}

// SessionCreated bumps total_sessions for both participants on the session's
// scheduled date. Aggregation failures are logged, never propagated: the
// booking itself must not fail over a rollup.
func (s *AnalyticsService) SessionCreated(ctx context.Context, session *models.Session) {
	date := session.ScheduledDate()
	s.apply(ctx, session, models.RollupDelta{
		UserID: session.StudentID, UserRole: models.RoleStudent, Date: date, TotalSessions: 1,
	})
	s.apply(ctx, session, models.RollupDelta{
		UserID: session.TutorID, UserRole: models.RoleTutor, Date: date, TotalSessions: 1,
	})
}

// SessionTransitioned folds a lifecycle edge into both participants'
// rollups. Completed sessions additionally accrue minutes for both sides and
// revenue for the tutor.
func (s *AnalyticsService) SessionTransitioned(ctx context.Context, session *models.Session, to models.SessionStatus) {
	date := session.ScheduledDate()
	student := models.RollupDelta{UserID: session.StudentID, UserRole: models.RoleStudent, Date: date}
	tutor := models.RollupDelta{UserID: session.TutorID, UserRole: models.RoleTutor, Date: date}

	switch to {
	case models.SessionCompleted:
		student.CompletedSessions = 1
		student.TotalSessionMinutes = session.DurationMinutes
		tutor.CompletedSessions = 1
		tutor.TotalSessionMinutes = session.DurationMinutes
		tutor.TotalRevenue = session.TotalPrice
	case models.SessionCancelled:
		student.CancelledSessions = 1
		tutor.CancelledSessions = 1
	case models.SessionNoShow:
		student.NoShowSessions = 1
		tutor.NoShowSessions = 1
	default:
		return
	}

	s.apply(ctx, session, student)
	s.apply(ctx, session, tutor)
}

func (s *AnalyticsService) apply(ctx context.Context, session *models.Session, delta models.RollupDelta) {
	if err := s.repo.Increment(ctx, delta); err != nil {
		s.logger.Error("failed to apply analytics delta",
			zap.String("session_id", session.ID),
			zap.String("user_id", delta.UserID),
			zap.Error(err))
		return
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "rollups:"+delta.UserID+":*"); err != nil {
			s.logger.Warn("failed to invalidate rollup cache", zap.String("user_id", delta.UserID), zap.Error(err))
		}
	}
}

// GetRollups returns the user's daily rollups over [from, to]. The second
// return reports a cache hit.
func (s *AnalyticsService) GetRollups(ctx context.Context, userID string, role models.Role, from, to time.Time) ([]models.AnalyticsRollup, bool, error) {
	if role != models.RoleStudent && role != models.RoleTutor {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "role must be student or tutor")
	}
	if to.Before(from) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	key := fmt.Sprintf("rollups:%s:%s:%d:%d", userID, role, from.Unix(), to.Unix())
	if s.cache != nil && s.cfg.CacheTTL > 0 {
		var cached []models.AnalyticsRollup
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, true, nil
		}
	}

	rollups, err := s.repo.ListRange(ctx, userID, role, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rollups")
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, rollups, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache rollups", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return rollups, false, nil
}
