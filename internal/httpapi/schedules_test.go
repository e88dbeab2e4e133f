package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/common"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/schedule"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

func newTestScheduleHandler(t *testing.T) *ScheduleHandler {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := schedule.NewRepository(badger.NewScheduleStorage(db, logger))
	return NewScheduleHandler(repo, logger)
}

func validCreateBody() createRequest {
	return createRequest{
		DomainConfigID: "dc-1",
		Domain:         "https://example.test",
		ScanType:       models.ScanTypeQuick,
		Frequency:      models.FrequencyDaily,
		TimeConfig:     models.TimeConfig{Hour: 9, Minute: 0},
		ScanParams:     models.ScanParams{ScanDepth: 0, MaxRetries: 1, WaitForDynamicContent: 10},
		Enabled:        true,
	}
}

func TestScheduleHandler_CreateAndGet(t *testing.T) {
	h := newTestScheduleHandler(t)

	body, err := json.Marshal(validCreateBody())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/schedules", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleCollection(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"]
	require.NotEmpty(t, id)

	getReq := httptest.NewRequest(http.MethodGet, "/api/schedules/"+id, nil)
	getRec := httptest.NewRecorder()
	h.HandleItem(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	var sched models.Schedule
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &sched))
	assert.Equal(t, "https://example.test", sched.Domain)
}

func TestScheduleHandler_GetUnknown(t *testing.T) {
	h := newTestScheduleHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/schedules/nope", nil)
	rec := httptest.NewRecorder()
	h.HandleItem(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleHandler_CreateRejectsInvalidParams(t *testing.T) {
	h := newTestScheduleHandler(t)

	bad := validCreateBody()
	bad.ScanParams.WaitForDynamicContent = 999 // out of spec bounds (5-60)
	body, err := json.Marshal(bad)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/schedules", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleCollection(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandler_DeleteAndList(t *testing.T) {
	h := newTestScheduleHandler(t)

	body, err := json.Marshal(validCreateBody())
	require.NoError(t, err)
	createRec := httptest.NewRecorder()
	h.HandleCollection(createRec, httptest.NewRequest(http.MethodPost, "/api/schedules", bytes.NewReader(body)))
	var created map[string]string
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	id := created["id"]

	delRec := httptest.NewRecorder()
	h.HandleItem(delRec, httptest.NewRequest(http.MethodDelete, "/api/schedules/"+id, nil))
	assert.Equal(t, http.StatusOK, delRec.Code)

	listRec := httptest.NewRecorder()
	h.HandleCollection(listRec, httptest.NewRequest(http.MethodGet, "/api/schedules", nil))
	assert.Equal(t, http.StatusOK, listRec.Code)

	var listed map[string][]*models.Schedule
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	assert.Empty(t, listed["schedules"])
}

func TestScheduleHandler_MethodNotAllowed(t *testing.T) {
	h := newTestScheduleHandler(t)

	rec := httptest.NewRecorder()
	h.HandleCollection(rec, httptest.NewRequest(http.MethodPatch, "/api/schedules", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
