package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

type availabilityRuleRepo interface {
	FindByID(ctx context.Context, id string) (*models.AvailabilityRule, error)
	ListActiveByTutor(ctx context.Context, tutorID string) ([]models.AvailabilityRule, error)
	ExistsOverlapping(ctx context.Context, tutorID string, dayOfWeek int, startTime, endTime, excludeID string) (bool, error)
	Insert(ctx context.Context, rule *models.AvailabilityRule) error
	Update(ctx context.Context, rule *models.AvailabilityRule) error
	Deactivate(ctx context.Context, tutorID, id string) (bool, error)
}

type timeBlockRepo interface {
	Create(ctx context.Context, block *models.TimeBlock) error
	ListInRange(ctx context.Context, tutorID string, from, to time.Time) ([]models.TimeBlock, error)
	Delete(ctx context.Context, tutorID, id string) (bool, error)
}

// UpsertRuleRequest captures a recurring availability window.
type UpsertRuleRequest struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Timezone  string `json:"timezone"`
}

// CreateTimeBlockRequest captures a one-off exception window.
type CreateTimeBlockRequest struct {
	Start  time.Time        `json:"start" validate:"required"`
	End    time.Time        `json:"end" validate:"required"`
	Kind   models.BlockKind `json:"kind" validate:"required,oneof=available blocked"`
	Reason *string          `json:"reason"`
}

// AvailabilityService manages recurring rules and exception blocks.
type AvailabilityService struct {
	rules     availabilityRuleRepo
	blocks    timeBlockRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService builds the service.
func NewAvailabilityService(rules availabilityRuleRepo, blocks timeBlockRepo, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		rules:     rules,
		blocks:    blocks,
		validator: validate,
		logger:    logger,
	}
}

// UpsertRule creates or rewrites a recurring rule, rejecting windows that
// overlap another active rule on the same day.
func (s *AvailabilityService) UpsertRule(ctx context.Context, tutorID string, req UpsertRuleRequest) (*models.AvailabilityRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability rule payload")
	}

	startMin, err := models.MinutesOfDay(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	endMin, err := models.MinutesOfDay(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	if endMin <= startMin {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
	}

	overlaps, err := s.rules.ExistsOverlapping(ctx, tutorID, req.DayOfWeek, req.StartTime, req.EndTime, req.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check rule overlap")
	}
	if overlaps {
		return nil, appErrors.ErrOverlap
	}

	rule := &models.AvailabilityRule{
		ID:        req.ID,
		TutorID:   tutorID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  tz,
		Active:    true,
	}

	if req.ID == "" {
		if err := s.rules.Insert(ctx, rule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability rule")
		}
		return rule, nil
	}

	existing, err := s.rules.FindByID(ctx, req.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rule")
	}
	if existing.TutorID != tutorID {
		return nil, appErrors.ErrForbidden
	}
	rule.CreatedAt = existing.CreatedAt
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability rule")
	}
	return rule, nil
}

// DeactivateRule soft-deletes a rule.
func (s *AvailabilityService) DeactivateRule(ctx context.Context, tutorID, id string) error {
	ok, err := s.rules.Deactivate(ctx, tutorID, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate availability rule")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "availability rule not found")
	}
	return nil
}

// ListRules returns the tutor's active recurring rules.
func (s *AvailabilityService) ListRules(ctx context.Context, tutorID string) ([]models.AvailabilityRule, error) {
	rules, err := s.rules.ListActiveByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability rules")
	}
	return rules, nil
}

// CreateTimeBlock stores a tutor-authored exception. Booked blocks are
// reserved for the booking engine and rejected here.
func (s *AvailabilityService) CreateTimeBlock(ctx context.Context, tutorID string, req CreateTimeBlockRequest) (*models.TimeBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time block payload")
	}
	if !req.End.After(req.Start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end must be after start")
	}

	block := &models.TimeBlock{
		TutorID: tutorID,
		StartAt: req.Start.UTC(),
		EndAt:   req.End.UTC(),
		Kind:    req.Kind,
		Reason:  req.Reason,
	}
	if err := s.blocks.Create(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create time block")
	}
	return block, nil
}

// DeleteTimeBlock removes a tutor-authored exception.
func (s *AvailabilityService) DeleteTimeBlock(ctx context.Context, tutorID, id string) error {
	ok, err := s.blocks.Delete(ctx, tutorID, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete time block")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "time block not found")
	}
	return nil
}

// ListBlocks returns the tutor's exception blocks intersecting [from, to).
func (s *AvailabilityService) ListBlocks(ctx context.Context, tutorID string, from, to time.Time) ([]models.TimeBlock, error) {
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be after from")
	}
	blocks, err := s.blocks.ListInRange(ctx, tutorID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time blocks")
	}
	return blocks, nil
}
