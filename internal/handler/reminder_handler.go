package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/internal/service"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
	"github.com/spayyavula/campuspandit-sub007/pkg/response"
)

// ReminderService is the preference/telemetry surface the handler depends on.
type ReminderService interface {
	GetPreferences(ctx context.Context, userID string) (*models.ReminderPreference, error)
	UpdatePreferences(ctx context.Context, userID string, req service.PreferencesRequest) (*models.ReminderPreference, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.ReminderLog, error)
	RecordOpen(ctx context.Context, reminderID string) error
	RecordClick(ctx context.Context, reminderID string) error
}

// ReminderHandler exposes reminder preference and telemetry endpoints.
type ReminderHandler struct {
	reminders ReminderService
}

// NewReminderHandler constructs ReminderHandler.
func NewReminderHandler(reminders ReminderService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders}
}

// GetPreferences godoc
// @Summary Fetch the caller's reminder preferences
// @Tags Reminders
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reminders/preferences [get]
func (h *ReminderHandler) GetPreferences(c *gin.Context) {
	pref, err := h.reminders.GetPreferences(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pref, nil)
}

// UpdatePreferences godoc
// @Summary Update the caller's reminder preferences
// @Tags Reminders
// @Accept json
// @Produce json
// @Param payload body service.PreferencesRequest true "Preferences payload"
// @Success 200 {object} response.Envelope
// @Router /reminders/preferences [put]
func (h *ReminderHandler) UpdatePreferences(c *gin.Context) {
	var req service.PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pref, err := h.reminders.UpdatePreferences(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pref, nil)
}

// ListBySession godoc
// @Summary List the reminder log for a session
// @Tags Reminders
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/reminders [get]
func (h *ReminderHandler) ListBySession(c *gin.Context) {
	logs, err := h.reminders.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// RecordOpen godoc
// @Summary Record open telemetry for a sent reminder
// @Tags Reminders
// @Produce json
// @Param id path string true "Reminder ID"
// @Success 204
// @Router /reminders/{id}/open [post]
func (h *ReminderHandler) RecordOpen(c *gin.Context) {
	if err := h.reminders.RecordOpen(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RecordClick godoc
// @Summary Record click telemetry for a sent reminder
// @Tags Reminders
// @Produce json
// @Param id path string true "Reminder ID"
// @Success 204
// @Router /reminders/{id}/click [post]
func (h *ReminderHandler) RecordClick(c *gin.Context) {
	if err := h.reminders.RecordClick(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
