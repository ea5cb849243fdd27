package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/internal/repository"
	"github.com/spayyavula/campuspandit-sub007/internal/service"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
	"github.com/spayyavula/campuspandit-sub007/pkg/response"
)

// BookingService is the booking surface the handler depends on.
type BookingService interface {
	Book(ctx context.Context, studentID string, req service.BookRequest) (*models.Session, error)
	Get(ctx context.Context, sessionID, userID string) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	Confirm(ctx context.Context, sessionID, userID string) (*models.Session, error)
	Start(ctx context.Context, sessionID, userID string) (*models.Session, error)
	Complete(ctx context.Context, sessionID, userID string) (*models.Session, error)
	Cancel(ctx context.Context, sessionID, userID string, reason *string) (*models.Session, error)
	Reschedule(ctx context.Context, sessionID, userID string, newStart time.Time) (*models.Session, error)
	MarkNoShow(ctx context.Context, sessionID string, absent models.Role, markedBy string, reason *string) (*models.NoShowRecord, error)
	RecordPayment(ctx context.Context, sessionID string, status models.PaymentStatus, transactionID *string) error
	UpdateMaterials(ctx context.Context, sessionID, userID string, upd repository.MaterialsUpdate) error
}

// NoShowHistoryService lists recorded absences.
type NoShowHistoryService interface {
	History(ctx context.Context, userID string) ([]models.NoShowRecord, error)
}

// SessionHandler exposes booking and session lifecycle endpoints.
type SessionHandler struct {
	bookings BookingService
	noShows  NoShowHistoryService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(bookings BookingService, noShows NoShowHistoryService) *SessionHandler {
	return &SessionHandler{bookings: bookings, noShows: noShows}
}

// Book godoc
// @Summary Book a tutoring session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.BookRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Book(c *gin.Context) {
	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.bookings.Book(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List godoc
// @Summary List the caller's sessions
// @Tags Sessions
// @Produce json
// @Param role query string false "student or tutor"
// @Param status query string false "Filter by status"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	filter := models.SessionFilter{
		UserID: currentUserID(c),
		Role:   models.Role(c.DefaultQuery("role", "student")),
		Status: models.SessionStatus(c.Query("status")),
	}
	if raw := c.Query("from"); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = &from
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = &to
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	sessions, total, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, models.NewPagination(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Fetch one session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.bookings.Get(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Confirm godoc
// @Summary Confirm a scheduled session (tutor only)
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/confirm [post]
func (h *SessionHandler) Confirm(c *gin.Context) {
	session, err := h.bookings.Confirm(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Start godoc
// @Summary Start a confirmed session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/start [post]
func (h *SessionHandler) Start(c *gin.Context) {
	session, err := h.bookings.Start(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Complete godoc
// @Summary Complete a session in progress
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) Complete(c *gin.Context) {
	session, err := h.bookings.Complete(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

type cancelRequest struct {
	Reason *string `json:"reason"`
}

// Cancel godoc
// @Summary Cancel a session and release its slot
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	session, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"), currentUserID(c), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

type rescheduleRequest struct {
	Start time.Time `json:"start" binding:"required"`
}

// Reschedule godoc
// @Summary Move a session to a new start time
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body rescheduleRequest true "New start"
// @Success 201 {object} response.Envelope
// @Router /sessions/{id}/reschedule [post]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.bookings.Reschedule(c.Request.Context(), c.Param("id"), currentUserID(c), req.Start)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

type noShowRequest struct {
	Role   models.Role `json:"role" binding:"required,oneof=student tutor"`
	Reason *string     `json:"reason"`
}

// MarkNoShow godoc
// @Summary Mark a participant as a no-show
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body noShowRequest true "Absent role"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/no-show [post]
func (h *SessionHandler) MarkNoShow(c *gin.Context) {
	var req noShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.bookings.MarkNoShow(c.Request.Context(), c.Param("id"), req.Role, currentUserID(c), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

type paymentRequest struct {
	Status        models.PaymentStatus `json:"status" binding:"required"`
	TransactionID *string              `json:"transaction_id"`
}

// RecordPayment godoc
// @Summary Record a settlement update from the payment collaborator
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body paymentRequest true "Settlement payload"
// @Success 204
// @Router /sessions/{id}/payment [put]
func (h *SessionHandler) RecordPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.bookings.RecordPayment(c.Request.Context(), c.Param("id"), req.Status, req.TransactionID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type materialsRequest struct {
	StudentNotes     *string         `json:"student_notes"`
	TutorNotes       *string         `json:"tutor_notes"`
	HomeworkAssigned *string         `json:"homework_assigned"`
	FilesUploaded    json.RawMessage `json:"files_uploaded"`
}

// UpdateMaterials godoc
// @Summary Update session notes, homework and attachments
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body materialsRequest true "Materials payload"
// @Success 204
// @Router /sessions/{id}/materials [put]
func (h *SessionHandler) UpdateMaterials(c *gin.Context) {
	var req materialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	err := h.bookings.UpdateMaterials(c.Request.Context(), c.Param("id"), currentUserID(c), repository.MaterialsUpdate{
		StudentNotes:     req.StudentNotes,
		TutorNotes:       req.TutorNotes,
		HomeworkAssigned: req.HomeworkAssigned,
		FilesUploaded:    []byte(req.FilesUploaded),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// NoShowHistory godoc
// @Summary List the caller's no-show history
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /no-shows [get]
func (h *SessionHandler) NoShowHistory(c *gin.Context) {
	records, err := h.noShows.History(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
