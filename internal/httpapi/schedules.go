// Package httpapi's schedule handler exposes the Schedule Repository
// (spec §4.1) as a small CRUD surface. Grounded on the teacher's
// job_handler.go: JSON in/out via encoding/json, http.Error on failure,
// structured logging on every error path.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/schedule"
)

// ScheduleHandler serves /api/schedules and /api/schedules/{id}.
type ScheduleHandler struct {
	repo   *schedule.Repository
	logger arbor.ILogger
}

func NewScheduleHandler(repo *schedule.Repository, logger arbor.ILogger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, logger: logger}
}

// createRequest is the wire shape for POST /api/schedules and the mutable
// subset of PUT /api/schedules/{id}.
type createRequest struct {
	DomainConfigID string            `json:"domain_config_id"`
	Domain         string            `json:"domain"`
	ScanType       models.ScanType   `json:"scan_type"`
	Frequency      models.Frequency  `json:"frequency"`
	TimeConfig     models.TimeConfig `json:"time_config"`
	ScanParams     models.ScanParams `json:"scan_params"`
	Enabled        bool              `json:"enabled"`
}

// HandleCollection routes GET (list) and POST (create) on /api/schedules.
func (h *ScheduleHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleItem routes GET/PUT/DELETE on /api/schedules/{id}.
func (h *ScheduleHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) list(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	schedules, err := h.repo.List(enabledOnly)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list schedules")
		http.Error(w, "failed to list schedules", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedules": schedules})
}

func (h *ScheduleHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.repo.Create(req.DomainConfigID, req.Domain, req.ScanType, req.Frequency, req.TimeConfig, req.ScanParams, req.Enabled)
	if err != nil {
		h.logger.Warn().Err(err).Str("domain", req.Domain).Msg("rejected invalid schedule")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *ScheduleHandler) get(w http.ResponseWriter, id string) {
	sched, err := h.repo.Get(id)
	if err != nil {
		h.logger.Error().Err(err).Str("schedule_id", id).Msg("failed to load schedule")
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	if sched == nil {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (h *ScheduleHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := h.repo.Update(id, func(sched *models.Schedule) {
		sched.Domain = req.Domain
		sched.ScanType = req.ScanType
		sched.Frequency = req.Frequency
		sched.TimeConfig = req.TimeConfig
		sched.ScanParams = req.ScanParams
		sched.Enabled = req.Enabled
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("schedule_id", id).Msg("rejected invalid schedule update")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *ScheduleHandler) delete(w http.ResponseWriter, id string) {
	ok, err := h.repo.Delete(id)
	if err != nil {
		h.logger.Error().Err(err).Str("schedule_id", id).Msg("failed to delete schedule")
		http.Error(w, "failed to delete schedule", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
