package httpapi

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/calmlinehq/calmline/internal/responder"
	"github.com/calmlinehq/calmline/internal/triage"
)

// DegradedReply is returned when every AI backend fails. The patient's
// message is already triaged and persisted by then.
const DegradedReply = "I'm having technical difficulties. Please try again in a moment."

type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

type sendMessageResponse struct {
	MessageID     string   `json:"message_id"`
	UserMessage   string   `json:"user_message"`
	AIResponse    string   `json:"ai_response"`
	SafetyWarning string   `json:"safety_warning,omitempty"`
	IsEscalated   bool     `json:"is_escalated"`
	RiskScore     *float64 `json:"risk_score,omitempty"`
	RiskTags      []string `json:"risk_tags,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "missing_content", "content must not be empty")
		return
	}

	sess, err := s.ownedSession(r, req.SessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
		return
	}

	ident := identityFrom(r.Context())
	result, err := s.triage.HandleMessage(r.Context(), triage.Inbound{
		SessionID:  sess.ID,
		SenderID:   ident.UserID,
		SenderRole: ident.Role,
		Text:       req.Content,
	})
	if err != nil {
		// Nothing was persisted; the client may retry.
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	_ = s.sessions.RecordMessage(sess.ID)

	reply := s.generateReply(r.Context(), sess.ID, ident.UserID, result)

	respondJSON(w, http.StatusCreated, sendMessageResponse{
		MessageID:     result.Message.ID,
		UserMessage:   result.Message.Content,
		AIResponse:    reply,
		SafetyWarning: result.SafetyWarning,
		IsEscalated:   result.Escalated,
		RiskScore:     result.Message.RiskScore,
		RiskTags:      result.Message.RiskTags,
	})
}

// generateReply asks the AI backend chain for a reply and runs it through
// outbound guardrail validation. Backend failure degrades the reply, never
// the request: the message and its audit trail are already committed.
func (s *Server) generateReply(ctx context.Context, sessionID, userID string, result triage.Result) string {
	replyCtx, cancel := context.WithTimeout(ctx, s.cfg.ResponderTimeout)
	defer cancel()

	resp, err := s.responder.Reply(replyCtx, responder.Request{
		SessionID: sessionID,
		UserID:    userID,
		Text:      result.Message.Content,
	})
	if err != nil {
		log.Printf("httpapi: responder failed for session %s: %v", sessionID, err)
		return DegradedReply
	}
	return s.filter.ValidateResponse(resp.Text)
}
