package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/calmlinehq/calmline/internal/config"
	"github.com/calmlinehq/calmline/internal/guardrail"
	"github.com/calmlinehq/calmline/internal/observability"
	"github.com/calmlinehq/calmline/internal/responder"
	"github.com/calmlinehq/calmline/internal/retention"
	"github.com/calmlinehq/calmline/internal/session"
	"github.com/calmlinehq/calmline/internal/store"
	"github.com/calmlinehq/calmline/internal/triage"
)

type Server struct {
	cfg       config.Config
	sessions  *session.Manager
	triage    *triage.Service
	responder responder.Adapter
	filter    *guardrail.Filter
	sweeper   *retention.Sweeper
	store     store.Store
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(
	cfg config.Config,
	sessions *session.Manager,
	triageSvc *triage.Service,
	resp responder.Adapter,
	filter *guardrail.Filter,
	sweeper *retention.Sweeper,
	st store.Store,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:       cfg,
		sessions:  sessions,
		triage:    triageSvc,
		responder: resp,
		filter:    filter,
		sweeper:   sweeper,
		store:     st,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// often omit Origin and are allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/v1/sessions", s.handleCreateSession)
		r.Post("/v1/sessions/{id}/end", s.handleEndSession)
		r.Get("/v1/chat/ws", s.handleChatWS)
		r.Post("/v1/messages", s.handleSendMessage)

		r.Post("/v1/wellness", s.handleCreateWellnessLog)
		r.Get("/v1/wellness", s.handleListWellnessLogs)

		r.With(s.requireRole(RoleConsultant, RoleAdmin)).Get("/v1/escalations", s.handleListEscalations)
		r.With(s.requireRole(RoleConsultant, RoleAdmin)).Post("/v1/escalations/{id}/interventions", s.handleCreateIntervention)
		r.With(s.requireRole(RoleConsultant, RoleAdmin)).Get("/v1/escalations/{id}/interventions", s.handleListInterventions)

		r.With(s.requireRole(RoleAdmin)).Post("/v1/admin/retention/sweep", s.handleRetentionSweep)
		r.With(s.requireRole(RoleAdmin)).Get("/v1/admin/audit", s.handleListAudit)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"responder": s.responder.Name(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess := s.sessions.Create(ident.UserID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.ownedSession(r, id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	sess, err = s.sessions.End(sess.ID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

// ownedSession resolves a session id and checks it belongs to the caller.
// Consultants and admins may address any session.
func (s *Server) ownedSession(r *http.Request, id string) (*session.Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	ident := identityFrom(r.Context())
	if ident.Role == RolePatient && sess.UserID != ident.UserID {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
