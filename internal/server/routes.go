package server

import (
	"net/http"

	"github.com/ternarybob/cookiescan/internal/common"
)

// setupRoutes configures the HTTP surface spec.md §6 names (the progress
// SSE stream) plus the Schedule Repository/ScanResult REST surface a
// running service needs to manage what it schedules and inspect what it
// has scanned.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Progress SSE (spec §4.9, §6)
	mux.HandleFunc("/scans/", s.app.ScanAPI.HandleStream)

	// Schedule Repository CRUD (spec §4.1)
	mux.HandleFunc("/api/schedules", s.app.ScheduleAPI.HandleCollection)
	mux.HandleFunc("/api/schedules/", s.app.ScheduleAPI.HandleItem)

	// Persisted scan results (spec §3) and manual trigger
	mux.HandleFunc("/api/scans", s.app.ScanResultAPI.HandleCollection)
	mux.HandleFunc("/api/scans/trigger", s.app.TriggerAPI.Handle)
	mux.HandleFunc("/api/scans/", s.app.ScanResultAPI.HandleItem)

	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler)

	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"version":"` + common.GetVersion() + `","build":"` + common.GetBuild() + `"}`))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "not found", http.StatusNotFound)
}
