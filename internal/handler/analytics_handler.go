package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
	"github.com/spayyavula/campuspandit-sub007/pkg/response"
)

// RollupService is the analytics surface the handler depends on.
type RollupService interface {
	GetRollups(ctx context.Context, userID string, role models.Role, from, to time.Time) ([]models.AnalyticsRollup, bool, error)
}

// AnalyticsHandler exposes the caller's daily session rollups.
type AnalyticsHandler struct {
	analytics RollupService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics RollupService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// GetRollups godoc
// @Summary Fetch daily rollups for the caller in one role
// @Tags Analytics
// @Produce json
// @Param role query string true "student or tutor"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /analytics/rollups [get]
func (h *AnalyticsHandler) GetRollups(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}

	role := models.Role(c.DefaultQuery("role", "student"))
	rollups, cacheHit, err := h.analytics.GetRollups(c.Request.Context(), currentUserID(c), role, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rollups, nil, map[string]interface{}{"cache_hit": cacheHit})
}
