package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edmw/volumio-hid/internal/command"
	"github.com/edmw/volumio-hid/internal/history"
	"github.com/edmw/volumio-hid/internal/supervisor"
	"github.com/edmw/volumio-hid/internal/volumio"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/scans", s.handleListScans)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// statusResponse is the payload of GET /api/status.
type statusResponse struct {
	Version string                 `json:"version"`
	Device  deviceStatus           `json:"device"`
	Session *sessionStatus         `json:"session,omitempty"`
	Tasks   []supervisor.TaskStats `json:"tasks,omitempty"`
}

type deviceStatus struct {
	Path string `json:"path"`
}

type sessionStatus struct {
	Connected bool          `json:"connected"`
	Player    volumio.State `json:"player"`
}

// handleStatus returns the daemon status: session state, player snapshot
// and supervised task statuses.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Version: s.version,
		Device:  deviceStatus{Path: s.devicePath},
	}

	if s.player != nil {
		resp.Session = &sessionStatus{
			Connected: s.player.IsConnected(),
			Player:    s.player.State(),
		}
	}
	if s.tasks != nil {
		resp.Tasks = s.tasks.Stats()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListScans returns the scan history, filtered by query parameters:
// outcome, identifier, limit, offset.
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if s.scans == nil {
		writeNotFound(w, "scan history is disabled")
		return
	}

	filter := history.Filter{
		Outcome:    command.Outcome(r.URL.Query().Get("outcome")),
		Identifier: r.URL.Query().Get("identifier"),
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.scans.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("scan history query failed", "error", err)
		writeInternalError(w, "querying scan history failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
