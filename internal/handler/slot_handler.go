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

// SlotResolver is the resolver surface the handler depends on.
type SlotResolver interface {
	ResolveCached(ctx context.Context, tutorID string, from, to time.Time, granularity time.Duration) ([]models.Slot, bool, error)
}

// SlotHandler exposes resolved slot grids for a tutor.
type SlotHandler struct {
	slots   SlotResolver
	metrics *service.MetricsService
}

// NewSlotHandler constructs SlotHandler. metrics may be nil.
func NewSlotHandler(slots SlotResolver, metrics *service.MetricsService) *SlotHandler {
	return &SlotHandler{slots: slots, metrics: metrics}
}

// Resolve godoc
// @Summary Resolve a tutor's bookable slots over a date range
// @Tags Slots
// @Produce json
// @Param id path string true "Tutor ID"
// @Param from query string true "RFC3339 range start"
// @Param to query string true "RFC3339 range end"
// @Param granularity query string false "Slot width, e.g. 30m or 1h"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/slots [get]
func (h *SlotHandler) Resolve(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var granularity time.Duration
	if raw := c.Query("granularity"); raw != "" {
		granularity, err = time.ParseDuration(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "granularity must be a duration like 30m"))
			return
		}
	}

	started := time.Now()
	slots, cacheHit, err := h.slots.ResolveCached(c.Request.Context(), c.Param("id"), from, to, granularity)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveSlotResolve(time.Since(started))
		h.metrics.RecordCacheOperation(cacheHit)
	}

	response.JSON(c, http.StatusOK, slots, nil, map[string]interface{}{"cache_hit": cacheHit})
}
