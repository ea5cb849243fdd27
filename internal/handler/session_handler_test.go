package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spayyavula/campuspandit-sub007/internal/middleware"
	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/internal/repository"
	"github.com/spayyavula/campuspandit-sub007/internal/service"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type fakeBookingSrv struct {
	session    *models.Session
	sessions   []models.Session
	record     *models.NoShowRecord
	err        error
	lastUserID    string
	lastFilter    models.SessionFilter
	lastMaterials repository.MaterialsUpdate
}

func (f *fakeBookingSrv) Book(_ context.Context, studentID string, req service.BookRequest) (*models.Session, error) {
	f.lastUserID = studentID
	return f.session, f.err
}

func (f *fakeBookingSrv) Get(_ context.Context, sessionID, userID string) (*models.Session, error) {
	f.lastUserID = userID
	return f.session, f.err
}

func (f *fakeBookingSrv) List(_ context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	f.lastFilter = filter
	return f.sessions, len(f.sessions), f.err
}

func (f *fakeBookingSrv) Confirm(_ context.Context, sessionID, userID string) (*models.Session, error) {
	f.lastUserID = userID
	return f.session, f.err
}

func (f *fakeBookingSrv) Start(_ context.Context, sessionID, userID string) (*models.Session, error) {
	return f.session, f.err
}

func (f *fakeBookingSrv) Complete(_ context.Context, sessionID, userID string) (*models.Session, error) {
	return f.session, f.err
}

func (f *fakeBookingSrv) Cancel(_ context.Context, sessionID, userID string, reason *string) (*models.Session, error) {
	return f.session, f.err
}

func (f *fakeBookingSrv) Reschedule(_ context.Context, sessionID, userID string, newStart time.Time) (*models.Session, error) {
	return f.session, f.err
}

func (f *fakeBookingSrv) MarkNoShow(_ context.Context, sessionID string, absent models.Role, markedBy string, reason *string) (*models.NoShowRecord, error) {
	return f.record, f.err
}

func (f *fakeBookingSrv) RecordPayment(_ context.Context, sessionID string, status models.PaymentStatus, transactionID *string) error {
	return f.err
}

func (f *fakeBookingSrv) UpdateMaterials(_ context.Context, sessionID, userID string, upd repository.MaterialsUpdate) error {
	f.lastMaterials = upd
	return f.err
}

type fakeHistorySrv struct {
	records []models.NoShowRecord
}

func (f *fakeHistorySrv) History(context.Context, string) ([]models.NoShowRecord, error) {
	return f.records, nil
}

func testContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: "student"})
	return c, rec
}

func TestSessionHandlerBookSuccess(t *testing.T) {
	booking := &fakeBookingSrv{session: &models.Session{ID: "session-1", Status: models.SessionScheduled}}
	h := NewSessionHandler(booking, &fakeHistorySrv{})

	body := `{"tutor_id":"tutor-1","subject":"algebra","start":"2026-09-07T09:00:00Z","duration_minutes":60}`
	c, rec := testContext(t, http.MethodPost, "/sessions", body)

	h.Book(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "student-1", booking.lastUserID)
}

func TestSessionHandlerBookRejectsBadJSON(t *testing.T) {
	h := NewSessionHandler(&fakeBookingSrv{}, &fakeHistorySrv{})

	c, rec := testContext(t, http.MethodPost, "/sessions", "{not json")
	h.Book(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandlerBookSurfacesConflict(t *testing.T) {
	booking := &fakeBookingSrv{err: appErrors.ErrSlotUnavailable}
	h := NewSessionHandler(booking, &fakeHistorySrv{})

	body := `{"tutor_id":"tutor-1","subject":"algebra","start":"2026-09-07T09:00:00Z","duration_minutes":60}`
	c, rec := testContext(t, http.MethodPost, "/sessions", body)

	h.Book(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "SLOT_UNAVAILABLE", envelope.Error["code"])
}

func TestSessionHandlerListParsesFilter(t *testing.T) {
	booking := &fakeBookingSrv{sessions: []models.Session{{ID: "session-1"}}}
	h := NewSessionHandler(booking, &fakeHistorySrv{})

	c, rec := testContext(t, http.MethodGet, "/sessions?role=tutor&status=confirmed&page=2&limit=10", "")
	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleTutor, booking.lastFilter.Role)
	assert.Equal(t, models.SessionConfirmed, booking.lastFilter.Status)
	assert.Equal(t, 2, booking.lastFilter.Page)
	assert.Equal(t, 10, booking.lastFilter.PageSize)
	assert.Equal(t, "student-1", booking.lastFilter.UserID)
}

func TestSessionHandlerRescheduleRequiresStart(t *testing.T) {
	h := NewSessionHandler(&fakeBookingSrv{}, &fakeHistorySrv{})

	c, rec := testContext(t, http.MethodPost, "/sessions/session-1/reschedule", `{}`)
	h.Reschedule(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandlerNoShowValidatesRole(t *testing.T) {
	h := NewSessionHandler(&fakeBookingSrv{record: &models.NoShowRecord{ID: "record-1"}}, &fakeHistorySrv{})

	c, rec := testContext(t, http.MethodPost, "/sessions/session-1/no-show", `{"role":"admin"}`)
	h.MarkNoShow(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = testContext(t, http.MethodPost, "/sessions/session-1/no-show", `{"role":"student"}`)
	h.MarkNoShow(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionHandlerCancelSurfacesTransitionError(t *testing.T) {
	booking := &fakeBookingSrv{err: appErrors.ErrInvalidTransition}
	h := NewSessionHandler(booking, &fakeHistorySrv{})

	c, rec := testContext(t, http.MethodDelete, "/sessions/session-1", "")
	h.Cancel(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionHandlerPaymentCallback(t *testing.T) {
	h := NewSessionHandler(&fakeBookingSrv{}, &fakeHistorySrv{})

	c, rec := testContext(t, http.MethodPost, "/sessions/session-1/payment", `{"status":"paid","transaction_id":"txn-1"}`)
	h.RecordPayment(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionHandlerMaterialsAcceptsJSONFileList(t *testing.T) {
	booking := &fakeBookingSrv{}
	h := NewSessionHandler(booking, &fakeHistorySrv{})

	body := `{"tutor_notes":"good progress","files_uploaded":["s3://bucket/notes.pdf"]}`
	c, rec := testContext(t, http.MethodPut, "/sessions/session-1/materials", body)
	h.UpdateMaterials(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.JSONEq(t, `["s3://bucket/notes.pdf"]`, string(booking.lastMaterials.FilesUploaded),
		"attachment list must pass through as raw JSON, not base64")
}

func TestSessionHandlerNoShowHistory(t *testing.T) {
	h := NewSessionHandler(&fakeBookingSrv{}, &fakeHistorySrv{records: []models.NoShowRecord{{ID: "record-1"}}})

	c, rec := testContext(t, http.MethodGet, "/no-shows", "")
	h.NoShowHistory(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
