package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/progress"
)

func TestHandleStream_UnknownScanReturnsErrorEvent(t *testing.T) {
	bus := progress.NewBus()
	h := NewScanHandler(bus, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/scans/does-not-exist/stream", nil)
	rec := httptest.NewRecorder()

	h.HandleStream(rec, req)

	assert.Contains(t, rec.Body.String(), "event: error")
	assert.Contains(t, rec.Body.String(), "scan not found")
}

func TestHandleStream_MissingScanIDIsBadRequest(t *testing.T) {
	bus := progress.NewBus()
	h := NewScanHandler(bus, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/scans//stream", nil)
	rec := httptest.NewRecorder()

	h.HandleStream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStream_TerminalSnapshotClosesImmediately(t *testing.T) {
	bus := progress.NewBus()
	bus.Publish(progress.Snapshot{ScanID: "s1", Status: models.ScanStatusSuccess, PagesVisited: 3, CookiesFound: 12})
	h := NewScanHandler(bus, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/scans/s1/stream", nil)
	rec := httptest.NewRecorder()

	h.HandleStream(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "\"scan_id\":\"s1\"")
}
