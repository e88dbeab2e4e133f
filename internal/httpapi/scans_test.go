package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/common"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/schedule"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

func newTestScanResultHandler(t *testing.T) (*ScanResultHandler, *badger.ScanResultStorage) {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := badger.NewScanResultStorage(db, logger)
	return NewScanResultHandler(store, logger), store
}

func TestScanResultHandler_GetAndList(t *testing.T) {
	h, store := newTestScanResultHandler(t)

	require.NoError(t, store.Create(&models.ScanResult{
		ScanID:         "scan-1",
		DomainConfigID: "dc-1",
		Status:         models.ScanStatusSuccess,
	}))

	getRec := httptest.NewRecorder()
	h.HandleItem(getRec, httptest.NewRequest(http.MethodGet, "/api/scans/scan-1", nil))
	assert.Equal(t, http.StatusOK, getRec.Code)

	listRec := httptest.NewRecorder()
	h.HandleCollection(listRec, httptest.NewRequest(http.MethodGet, "/api/scans?domain_config_id=dc-1", nil))
	assert.Equal(t, http.StatusOK, listRec.Code)

	var listed map[string][]*models.ScanResult
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	require.Len(t, listed["scans"], 1)
	assert.Equal(t, "scan-1", listed["scans"][0].ScanID)
}

func TestScanResultHandler_ListRequiresDomainConfigID(t *testing.T) {
	h, _ := newTestScanResultHandler(t)

	rec := httptest.NewRecorder()
	h.HandleCollection(rec, httptest.NewRequest(http.MethodGet, "/api/scans", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanResultHandler_GetUnknown(t *testing.T) {
	h, _ := newTestScanResultHandler(t)

	rec := httptest.NewRecorder()
	h.HandleItem(rec, httptest.NewRequest(http.MethodGet, "/api/scans/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newTestTriggerHandler(t *testing.T) (*TriggerHandler, *schedule.Repository, chan string) {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := schedule.NewRepository(badger.NewScheduleStorage(db, logger))

	fired := make(chan string, 1)
	h := NewTriggerHandler(repo, func(scheduleID string) { fired <- scheduleID }, logger)
	return h, repo, fired
}

func TestTriggerHandler_FiresExistingSchedule(t *testing.T) {
	h, repo, fired := newTestTriggerHandler(t)

	id, err := repo.Create("dc-1", "https://example.test", models.ScanTypeQuick, models.FrequencyDaily,
		models.TimeConfig{Hour: 9, Minute: 0}, models.ScanParams{ScanDepth: 0, MaxRetries: 1, WaitForDynamicContent: 10}, true)
	require.NoError(t, err)

	body, err := json.Marshal(triggerRequest{ScheduleID: id})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/scans/trigger", bytes.NewReader(body)))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case got := <-fired:
		assert.Equal(t, id, got)
	case <-time.After(time.Second):
		t.Fatal("fire callback was not invoked")
	}
}

func TestTriggerHandler_UnknownSchedule(t *testing.T) {
	h, _, _ := newTestTriggerHandler(t)

	body, err := json.Marshal(triggerRequest{ScheduleID: "nope"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/scans/trigger", bytes.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerHandler_RequiresScheduleID(t *testing.T) {
	h, _, _ := newTestTriggerHandler(t)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/scans/trigger", bytes.NewReader([]byte("{}"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
