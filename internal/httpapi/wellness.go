package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type wellnessRequest struct {
	MoodScore int    `json:"mood_score"`
	Note      string `json:"note"`
}

func (s *Server) handleCreateWellnessLog(w http.ResponseWriter, r *http.Request) {
	var req wellnessRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ident := identityFrom(r.Context())
	wl, err := s.triage.RecordWellness(r.Context(), ident.UserID, req.MoodScore, req.Note)
	if err != nil {
		respondError(w, http.StatusBadRequest, "wellness_rejected", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, wl)
}

func (s *Server) handleListWellnessLogs(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := s.store.ListWellnessLogs(r.Context(), ident.UserID, limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
