package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/schedule"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

// ScanResultHandler serves GET /api/scans/{id} and GET
// /api/scans?domain_config_id=... (persisted ScanResult rows, spec §3);
// the live-progress surface lives in ScanHandler (sse.go).
type ScanResultHandler struct {
	results *badger.ScanResultStorage
	logger  arbor.ILogger
}

func NewScanResultHandler(results *badger.ScanResultStorage, logger arbor.ILogger) *ScanResultHandler {
	return &ScanResultHandler{results: results, logger: logger}
}

// HandleCollection serves GET /api/scans?domain_config_id=...&limit=....
func (h *ScanResultHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	domainConfigID := r.URL.Query().Get("domain_config_id")
	if domainConfigID == "" {
		http.Error(w, "domain_config_id is required", http.StatusBadRequest)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			limit = parsed
		}
	}

	results, err := h.results.ListByDomainConfigID(domainConfigID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("domain_config_id", domainConfigID).Msg("failed to list scan results")
		http.Error(w, "failed to list scan results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scans": results})
}

// HandleItem serves GET /api/scans/{id}.
func (h *ScanResultHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/scans/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	result, err := h.results.Get(id)
	if err != nil {
		h.logger.Error().Err(err).Str("scan_id", id).Msg("failed to load scan result")
		http.Error(w, "failed to load scan result", http.StatusInternalServerError)
		return
	}
	if result == nil {
		http.Error(w, "scan not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parsePositiveInt(s string) (int, error) {
	var n int
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, &invalidIntError{s}
		}
		n = n*10 + int(ch-'0')
	}
	if n <= 0 {
		return 0, &invalidIntError{s}
	}
	return n, nil
}

type invalidIntError struct{ s string }

func (e *invalidIntError) Error() string { return "invalid integer: " + e.s }

// TriggerHandler serves POST /api/scans/trigger: an operator-initiated
// immediate firing of an existing schedule, run asynchronously through
// the same Scan Coordinator path a cron firing would use (spec §4.D
// "scan" subcommand's HTTP-surface equivalent).
type TriggerHandler struct {
	repo   *schedule.Repository
	fire   func(scheduleID string)
	logger arbor.ILogger
}

func NewTriggerHandler(repo *schedule.Repository, fire func(scheduleID string), logger arbor.ILogger) *TriggerHandler {
	return &TriggerHandler{repo: repo, fire: fire, logger: logger}
}

type triggerRequest struct {
	ScheduleID string `json:"schedule_id"`
}

// Handle fires the named schedule immediately, out of band from its cron
// trigger. The scan still runs through Coordinator.Run, so the
// Distributed Lock and admission control apply exactly as they would for
// a cron-driven firing.
func (h *TriggerHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduleID == "" {
		http.Error(w, "schedule_id is required", http.StatusBadRequest)
		return
	}

	sched, err := h.repo.Get(req.ScheduleID)
	if err != nil {
		h.logger.Error().Err(err).Str("schedule_id", req.ScheduleID).Msg("failed to load schedule for manual trigger")
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	if sched == nil {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}

	go h.fire(req.ScheduleID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered", "schedule_id": req.ScheduleID})
}
