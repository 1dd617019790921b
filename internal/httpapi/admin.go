package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type sweepResponse struct {
	SoftDeleted struct {
		Messages     int64 `json:"messages"`
		WellnessLogs int64 `json:"wellness_logs"`
	} `json:"soft_deleted"`
	HardDeleted struct {
		Messages          int64 `json:"messages"`
		WellnessLogs      int64 `json:"wellness_logs"`
		AuditEntries      int64 `json:"audit_entries"`
		EscalationEntries int64 `json:"escalation_entries"`
	} `json:"hard_deleted"`
}

// handleRetentionSweep runs both retention passes on demand. The scheduler
// covers routine operation; this endpoint exists for operators who need the
// sweep to happen now, typically after a policy change.
func (s *Server) handleRetentionSweep(w http.ResponseWriter, r *http.Request) {
	soft, err := s.sweeper.SoftDeleteSweep(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "sweep_failed", err.Error())
		return
	}
	hard, err := s.sweeper.HardDeleteSweep(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "sweep_failed", err.Error())
		return
	}

	var resp sweepResponse
	resp.SoftDeleted.Messages = soft.Messages
	resp.SoftDeleted.WellnessLogs = soft.WellnessLogs
	resp.HardDeleted.Messages = hard.Messages
	resp.HardDeleted.WellnessLogs = hard.WellnessLogs
	resp.HardDeleted.AuditEntries = hard.AuditEntries
	resp.HardDeleted.EscalationEntries = hard.EscalationEntries
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	limit := 100
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.store.ListAudit(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
