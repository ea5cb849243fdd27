package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/internal/service"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
	"github.com/spayyavula/campuspandit-sub007/pkg/response"
)

// AvailabilityService is the schedule-management surface the handler
// depends on.
type AvailabilityService interface {
	UpsertRule(ctx context.Context, tutorID string, req service.UpsertRuleRequest) (*models.AvailabilityRule, error)
	DeactivateRule(ctx context.Context, tutorID, id string) error
	ListRules(ctx context.Context, tutorID string) ([]models.AvailabilityRule, error)
	CreateTimeBlock(ctx context.Context, tutorID string, req service.CreateTimeBlockRequest) (*models.TimeBlock, error)
	DeleteTimeBlock(ctx context.Context, tutorID, id string) error
	ListBlocks(ctx context.Context, tutorID string, from, to time.Time) ([]models.TimeBlock, error)
}

// AvailabilityHandler exposes recurring rule and time block endpoints for the
// authenticated tutor.
type AvailabilityHandler struct {
	availability AvailabilityService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(availability AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// UpsertRule godoc
// @Summary Create or update a recurring availability rule
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.UpsertRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Router /availability/rules [post]
func (h *AvailabilityHandler) UpsertRule(c *gin.Context) {
	var req service.UpsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rule, err := h.availability.UpsertRule(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.ID == "" {
		response.Created(c, rule)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// ListRules godoc
// @Summary List the tutor's active recurring rules
// @Tags Availability
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /availability/rules [get]
func (h *AvailabilityHandler) ListRules(c *gin.Context) {
	rules, err := h.availability.ListRules(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// DeleteRule godoc
// @Summary Deactivate a recurring rule
// @Tags Availability
// @Produce json
// @Param id path string true "Rule ID"
// @Success 204
// @Router /availability/rules/{id} [delete]
func (h *AvailabilityHandler) DeleteRule(c *gin.Context) {
	if err := h.availability.DeactivateRule(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateBlock godoc
// @Summary Create an availability exception block
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.CreateTimeBlockRequest true "Block payload"
// @Success 201 {object} response.Envelope
// @Router /availability/blocks [post]
func (h *AvailabilityHandler) CreateBlock(c *gin.Context) {
	var req service.CreateTimeBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	block, err := h.availability.CreateTimeBlock(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// ListBlocks godoc
// @Summary List exception blocks in a range
// @Tags Availability
// @Produce json
// @Param from query string true "RFC3339 range start"
// @Param to query string true "RFC3339 range end"
// @Success 200 {object} response.Envelope
// @Router /availability/blocks [get]
func (h *AvailabilityHandler) ListBlocks(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	blocks, err := h.availability.ListBlocks(c.Request.Context(), currentUserID(c), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// DeleteBlock godoc
// @Summary Delete an exception block
// @Tags Availability
// @Produce json
// @Param id path string true "Block ID"
// @Success 204
// @Router /availability/blocks/{id} [delete]
func (h *AvailabilityHandler) DeleteBlock(c *gin.Context) {
	if err := h.availability.DeleteTimeBlock(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339")
	}
	return from, to, nil
}
