package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/internal/service"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

type fakeAvailabilitySrv struct {
	rule        *models.AvailabilityRule
	block       *models.TimeBlock
	err         error
	lastTutorID string
}

func (f *fakeAvailabilitySrv) UpsertRule(_ context.Context, tutorID string, req service.UpsertRuleRequest) (*models.AvailabilityRule, error) {
	f.lastTutorID = tutorID
	return f.rule, f.err
}

func (f *fakeAvailabilitySrv) DeactivateRule(_ context.Context, tutorID, id string) error {
	return f.err
}

func (f *fakeAvailabilitySrv) ListRules(_ context.Context, tutorID string) ([]models.AvailabilityRule, error) {
	if f.rule == nil {
		return nil, f.err
	}
	return []models.AvailabilityRule{*f.rule}, f.err
}

func (f *fakeAvailabilitySrv) CreateTimeBlock(_ context.Context, tutorID string, req service.CreateTimeBlockRequest) (*models.TimeBlock, error) {
	return f.block, f.err
}

func (f *fakeAvailabilitySrv) DeleteTimeBlock(_ context.Context, tutorID, id string) error {
	return f.err
}

func (f *fakeAvailabilitySrv) ListBlocks(_ context.Context, tutorID string, from, to time.Time) ([]models.TimeBlock, error) {
	if f.block == nil {
		return nil, f.err
	}
	return []models.TimeBlock{*f.block}, f.err
}

func TestAvailabilityHandlerUpsertRuleCreated(t *testing.T) {
	srv := &fakeAvailabilitySrv{rule: &models.AvailabilityRule{ID: "rule-1"}}
	h := NewAvailabilityHandler(srv)

	body := `{"day_of_week":1,"start_time":"09:00","end_time":"12:00","timezone":"UTC"}`
	c, rec := testContext(t, http.MethodPost, "/availability/rules", body)

	h.UpsertRule(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "student-1", srv.lastTutorID, "tutor id comes from the JWT")
}

func TestAvailabilityHandlerUpsertRuleConflict(t *testing.T) {
	h := NewAvailabilityHandler(&fakeAvailabilitySrv{err: appErrors.ErrOverlap})

	body := `{"day_of_week":1,"start_time":"09:00","end_time":"12:00"}`
	c, rec := testContext(t, http.MethodPost, "/availability/rules", body)

	h.UpsertRule(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAvailabilityHandlerListBlocksRequiresRange(t *testing.T) {
	h := NewAvailabilityHandler(&fakeAvailabilitySrv{})

	c, rec := testContext(t, http.MethodGet, "/availability/blocks", "")
	h.ListBlocks(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityHandlerDeleteBlock(t *testing.T) {
	h := NewAvailabilityHandler(&fakeAvailabilitySrv{})

	c, rec := testContext(t, http.MethodDelete, "/availability/blocks/block-1", "")
	c.Params = []gin.Param{{Key: "id", Value: "block-1"}}
	h.DeleteBlock(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
