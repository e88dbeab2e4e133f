// Package httpapi exposes the Progress Bus over HTTP (spec §4.9, §6): one
// polling SSE endpoint, grounded on the teacher's sse_logs_handler.go but
// trimmed from the teacher's multi-scope pub/sub fan-out down to a single
// per-scan poll loop, since the Progress Bus (internal/progress) already
// holds only the latest snapshot and was never meant to push.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/progress"
)

const pollInterval = 2 * time.Second

// ScanHandler serves the progress SSE endpoint.
type ScanHandler struct {
	bus    *progress.Bus
	logger arbor.ILogger
}

func NewScanHandler(bus *progress.Bus, logger arbor.ILogger) *ScanHandler {
	return &ScanHandler{bus: bus, logger: logger}
}

// HandleStream is the mux.HandleFunc entry point for GET /scans/{scan_id}/stream,
// extracting scan_id the way the teacher's route helpers parse path segments
// (route_helpers.go) rather than via Go 1.22 mux patterns.
func (h *ScanHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const prefix = "/scans/"
	const suffix = "/stream"

	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		http.NotFound(w, r)
		return
	}

	scanID := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if scanID == "" {
		http.Error(w, "scan_id is required", http.StatusBadRequest)
		return
	}

	h.StreamProgress(w, r, scanID)
}

// StreamProgress handles GET /scans/{scan_id}/stream. It polls the Progress
// Bus every 2s and forwards the latest snapshot as one SSE frame; it never
// blocks on the executor and never buffers more than one frame per tick.
func (h *ScanHandler) StreamProgress(w http.ResponseWriter, r *http.Request, scanID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	snap, ok := h.bus.Latest(scanID)
	if !ok {
		h.sendEvent(w, flusher, "error", map[string]string{"error": "scan not found"})
		return
	}
	h.sendEvent(w, flusher, "", snap)
	if snap.Status.IsTerminal() {
		h.sendEvent(w, flusher, "close", snap)
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, ok := h.bus.Latest(scanID)
			if !ok {
				h.sendEvent(w, flusher, "error", map[string]string{"error": "scan not found"})
				return
			}

			h.sendEvent(w, flusher, "", snap)

			if snap.Status.IsTerminal() {
				h.sendEvent(w, flusher, "close", snap)
				return
			}
		}
	}
}

// sendEvent writes one SSE frame. An empty event name produces an unnamed
// data-only frame, matching the progress-snapshot framing in spec §6.
func (h *ScanHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal SSE progress frame")
		return
	}

	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
