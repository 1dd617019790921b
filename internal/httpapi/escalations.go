package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calmlinehq/calmline/internal/store"
)

func (s *Server) handleListEscalations(w http.ResponseWriter, r *http.Request) {
	f, err := escalationFilterFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	ident := identityFrom(r.Context())
	msgs, err := s.triage.ListEscalations(r.Context(), ident.UserID, f)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

type interventionRequest struct {
	InterventionType string `json:"intervention_type"`
	Notes            string `json:"notes"`
}

func (s *Server) handleCreateIntervention(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	var req interventionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ident := identityFrom(r.Context())
	iv, err := s.triage.RecordIntervention(r.Context(), ident.UserID, messageID, req.InterventionType, req.Notes)
	if err != nil {
		respondError(w, http.StatusBadRequest, "intervention_rejected", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, iv)
}

func (s *Server) handleListInterventions(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	ivs, err := s.store.ListInterventions(r.Context(), messageID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ivs)
}

func escalationFilterFrom(r *http.Request) (store.EscalationFilter, error) {
	var f store.EscalationFilter
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("risk_score_min")); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil || min < 0 || min > 1 {
			return f, errInvalidParam("risk_score_min")
		}
		f.MinRiskScore = &min
	}
	f.PatientID = strings.TrimSpace(q.Get("patient"))
	if v := strings.TrimSpace(q.Get("date_from")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return f, errInvalidParam("date_from")
		}
		f.From = &t
	}
	if v := strings.TrimSpace(q.Get("date_to")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return f, errInvalidParam("date_to")
		}
		f.To = &t
	}
	return f, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

type paramError string

func errInvalidParam(name string) paramError { return paramError(name) }

func (e paramError) Error() string { return "invalid query parameter: " + string(e) }
