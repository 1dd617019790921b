package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/calmlinehq/calmline/internal/protocol"
	"github.com/calmlinehq/calmline/internal/triage"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
)

// handleChatWS runs one patient chat connection. Each inbound user_message
// is triaged and persisted before the AI backend is consulted, so a dropped
// connection never loses a triaged message.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	if _, err := s.ownedSession(r, sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
		return
	}
	ident := identityFrom(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	defer s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)

	// Single writer goroutine; everything reaches the socket through outbound.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.emit(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch msg := parsed.(type) {
		case protocol.UserMessage:
			if msg.SessionID != sessionID {
				s.emit(ctx, outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: sessionID,
					Code:      "session_mismatch",
					Source:    "gateway",
					Retryable: false,
					Detail:    "message addressed to a different session",
				})
				continue
			}
			s.handleWSUserMessage(ctx, outbound, ident, sessionID, msg)
		case protocol.ClientControl:
			if msg.Action == "end" {
				if _, err := s.sessions.End(sessionID); err == nil {
					s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
					s.metrics.SessionEvents.WithLabelValues("ended").Inc()
				}
				s.emit(ctx, outbound, protocol.SystemEvent{
					Type:      protocol.TypeSystemEvent,
					SessionID: sessionID,
					Code:      "session_ended",
				})
				break readLoop
			}
			s.emit(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "unsupported_action",
				Source:    "gateway",
				Retryable: false,
				Detail:    "unknown control action: " + msg.Action,
			})
		}
	}

	cancel()
	<-writerDone
}

// handleWSUserMessage triages one chat turn and streams the resulting
// events: an ack once persisted, an optional safety warning, then the
// validated (or degraded) AI reply.
func (s *Server) handleWSUserMessage(ctx context.Context, outbound chan<- any, ident Identity, sessionID string, msg protocol.UserMessage) {
	result, err := s.triage.HandleMessage(ctx, triage.Inbound{
		SessionID:  sessionID,
		SenderID:   ident.UserID,
		SenderRole: ident.Role,
		Text:       msg.Text,
	})
	if err != nil {
		s.emit(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      "storage_unavailable",
			Source:    "store",
			Retryable: true,
			Detail:    err.Error(),
		})
		return
	}
	_ = s.sessions.RecordMessage(sessionID)

	s.emit(ctx, outbound, protocol.MessageAck{
		Type:      protocol.TypeMessageAck,
		SessionID: sessionID,
		MessageID: result.Message.ID,
		Content:   result.Message.Content,
		Escalated: result.Escalated,
	})
	if result.SafetyWarning != "" {
		s.emit(ctx, outbound, protocol.SafetyWarning{
			Type:      protocol.TypeSafetyWarning,
			SessionID: sessionID,
			MessageID: result.Message.ID,
			Text:      result.SafetyWarning,
		})
	}

	reply := s.generateReply(ctx, sessionID, ident.UserID, result)
	s.emit(ctx, outbound, protocol.AssistantReply{
		Type:      protocol.TypeAssistantReply,
		SessionID: sessionID,
		MessageID: result.Message.ID,
		Text:      reply,
	})
}

func (s *Server) emit(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}

func messageTypeOf(msg any) (protocol.MessageType, bool) {
	switch m := msg.(type) {
	case protocol.UserMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.MessageAck:
		return m.Type, true
	case protocol.SafetyWarning:
		return m.Type, true
	case protocol.AssistantReply:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
