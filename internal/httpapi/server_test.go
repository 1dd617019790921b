package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/calmlinehq/calmline/internal/config"
	"github.com/calmlinehq/calmline/internal/guardrail"
	"github.com/calmlinehq/calmline/internal/lexicon"
	"github.com/calmlinehq/calmline/internal/notify"
	"github.com/calmlinehq/calmline/internal/observability"
	"github.com/calmlinehq/calmline/internal/responder"
	"github.com/calmlinehq/calmline/internal/retention"
	"github.com/calmlinehq/calmline/internal/session"
	"github.com/calmlinehq/calmline/internal/store"
	"github.com/calmlinehq/calmline/internal/triage"
)

type captureAlerts struct {
	alerts []notify.EscalationAlert
}

func (c *captureAlerts) Enqueue(alert notify.EscalationAlert) bool {
	c.alerts = append(c.alerts, alert)
	return true
}

type testHarness struct {
	server  *httptest.Server
	store   *store.InMemoryStore
	alerts  *captureAlerts
	backend *responder.MockAdapter
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		ResponderTimeout:         5 * time.Second,
	}
	st := store.NewInMemoryStore()
	lex := lexicon.Default()
	filter := guardrail.New(lex)
	metrics := observability.NewMetrics("test_httpapi_" + strconv.FormatInt(time.Now().UnixNano(), 10))
	alerts := &captureAlerts{}
	triageSvc := triage.NewService(st, filter, lex, alerts, metrics)
	sweeper, err := retention.NewSweeper(st, retention.DefaultPolicy(), metrics)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	backend := responder.NewMockAdapter("That sounds really hard. I'm here with you.")

	srv := New(cfg, sessions, triageSvc, backend, filter, sweeper, st, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testHarness{server: ts, store: st, alerts: alerts, backend: backend}
}

func doJSON(t *testing.T, method, url string, headers map[string]string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer res.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(res.Body).Decode(&decoded)
	return res, decoded
}

func patientHeaders(userID string) map[string]string {
	return map[string]string{"X-User-ID": userID, "X-User-Role": RolePatient}
}

func createSession(t *testing.T, h *testHarness, userID string) string {
	t.Helper()
	res, body := doJSON(t, http.MethodPost, h.server.URL+"/v1/sessions", patientHeaders(userID), map[string]string{})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("missing session_id in create response: %+v", body)
	}
	return id
}

func TestSendMessageLowRisk(t *testing.T) {
	h := newTestHarness(t)
	sid := createSession(t, h, "patient-1")

	res, body := doJSON(t, http.MethodPost, h.server.URL+"/v1/messages", patientHeaders("patient-1"), map[string]string{
		"session_id": sid,
		"content":    "I had an okay day, just a little tired.",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, want %d (body %+v)", res.StatusCode, http.StatusCreated, body)
	}
	if escalated, _ := body["is_escalated"].(bool); escalated {
		t.Fatalf("is_escalated = true, want false")
	}
	if reply, _ := body["ai_response"].(string); reply == "" {
		t.Fatalf("missing ai_response in %+v", body)
	}
	if len(h.alerts.alerts) != 0 {
		t.Fatalf("alerts = %d, want 0", len(h.alerts.alerts))
	}
}

func TestSendMessageCrisisEscalates(t *testing.T) {
	h := newTestHarness(t)
	sid := createSession(t, h, "patient-2")

	res, body := doJSON(t, http.MethodPost, h.server.URL+"/v1/messages", patientHeaders("patient-2"), map[string]string{
		"session_id": sid,
		"content":    "I want to die, there is no point anymore",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, want %d (body %+v)", res.StatusCode, http.StatusCreated, body)
	}
	if escalated, _ := body["is_escalated"].(bool); !escalated {
		t.Fatalf("is_escalated = false, want true")
	}
	if warning, _ := body["safety_warning"].(string); warning == "" {
		t.Fatalf("expected a safety warning on crisis content")
	}
	if score, _ := body["risk_score"].(float64); score != 1.0 {
		t.Fatalf("risk_score = %v, want 1.0", score)
	}
	if len(h.alerts.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(h.alerts.alerts))
	}
}

func TestSendMessageDegradedReply(t *testing.T) {
	h := newTestHarness(t)
	h.backend.Fail(http.ErrServerClosed)
	sid := createSession(t, h, "patient-3")

	res, body := doJSON(t, http.MethodPost, h.server.URL+"/v1/messages", patientHeaders("patient-3"), map[string]string{
		"session_id": sid,
		"content":    "hello",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if reply, _ := body["ai_response"].(string); reply != DegradedReply {
		t.Fatalf("ai_response = %q, want degraded reply", reply)
	}
	// The message still persists even when every backend fails.
	if id, _ := body["message_id"].(string); id == "" {
		t.Fatalf("missing message_id in %+v", body)
	}
}

func TestSessionOwnershipEnforced(t *testing.T) {
	h := newTestHarness(t)
	sid := createSession(t, h, "patient-4")

	res, _ := doJSON(t, http.MethodPost, h.server.URL+"/v1/messages", patientHeaders("intruder"), map[string]string{
		"session_id": sid,
		"content":    "hi",
	})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestEscalationRoutesRequireConsultant(t *testing.T) {
	h := newTestHarness(t)

	res, _ := doJSON(t, http.MethodGet, h.server.URL+"/v1/escalations", patientHeaders("patient-5"), nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("patient list escalations status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}

	consultant := map[string]string{"X-User-ID": "consultant-1", "X-User-Role": RoleConsultant}
	res, _ = doJSON(t, http.MethodGet, h.server.URL+"/v1/escalations", consultant, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("consultant list escalations status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestEscalationReviewFlow(t *testing.T) {
	h := newTestHarness(t)
	sid := createSession(t, h, "patient-6")

	_, sent := doJSON(t, http.MethodPost, h.server.URL+"/v1/messages", patientHeaders("patient-6"), map[string]string{
		"session_id": sid,
		"content":    "I have been thinking about suicide",
	})
	msgID, _ := sent["message_id"].(string)
	if msgID == "" {
		t.Fatalf("missing message_id in %+v", sent)
	}

	consultant := map[string]string{"X-User-ID": "consultant-2", "X-User-Role": RoleConsultant}
	res, _ := doJSON(t, http.MethodPost, h.server.URL+"/v1/escalations/"+msgID+"/interventions", consultant, map[string]string{
		"intervention_type": "contact",
		"notes":             "called and confirmed safety plan",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create intervention status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	res, _ = doJSON(t, http.MethodGet, h.server.URL+"/v1/escalations/"+msgID+"/interventions", consultant, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list interventions status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestWellnessLogRoundTrip(t *testing.T) {
	h := newTestHarness(t)

	res, body := doJSON(t, http.MethodPost, h.server.URL+"/v1/wellness", patientHeaders("patient-7"), map[string]any{
		"mood_score": 7,
		"note":       "slept well",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create wellness status = %d, want %d (body %+v)", res.StatusCode, http.StatusCreated, body)
	}

	res, _ = doJSON(t, http.MethodPost, h.server.URL+"/v1/wellness", patientHeaders("patient-7"), map[string]any{
		"mood_score": 14,
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("out-of-range mood status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	listRes, err := http.DefaultClient.Do(mustRequest(t, http.MethodGet, h.server.URL+"/v1/wellness", patientHeaders("patient-7")))
	if err != nil {
		t.Fatalf("list wellness error = %v", err)
	}
	defer listRes.Body.Close()
	var logs []map[string]any
	if err := json.NewDecoder(listRes.Body).Decode(&logs); err != nil {
		t.Fatalf("decode wellness list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("wellness logs = %d, want 1", len(logs))
	}
}

func TestAdminRetentionSweep(t *testing.T) {
	h := newTestHarness(t)

	admin := map[string]string{"X-User-ID": "admin-1", "X-User-Role": RoleAdmin}
	res, body := doJSON(t, http.MethodPost, h.server.URL+"/v1/admin/retention/sweep", admin, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sweep status = %d, want %d (body %+v)", res.StatusCode, http.StatusOK, body)
	}
	if _, ok := body["soft_deleted"]; !ok {
		t.Fatalf("missing soft_deleted in sweep response: %+v", body)
	}

	res, _ = doJSON(t, http.MethodPost, h.server.URL+"/v1/admin/retention/sweep", patientHeaders("patient-8"), nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("patient sweep status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}
}

func TestJWTAuthentication(t *testing.T) {
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		ResponderTimeout:         5 * time.Second,
		AuthSecret:               "test-secret",
	}
	st := store.NewInMemoryStore()
	lex := lexicon.Default()
	filter := guardrail.New(lex)
	metrics := observability.NewMetrics("test_httpapi_jwt_" + time.Now().Format("150405_000000000"))
	triageSvc := triage.NewService(st, filter, lex, &captureAlerts{}, metrics)
	sweeper, err := retention.NewSweeper(st, retention.DefaultPolicy(), metrics)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	srv := New(cfg, sessions, triageSvc, responder.NewMockAdapter(), filter, sweeper, st, metrics)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions", nil, map[string]string{})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no-token status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}

	token, err := TokenFor("test-secret", "patient-9", RolePatient, time.Minute)
	if err != nil {
		t.Fatalf("TokenFor() error = %v", err)
	}
	res, body := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions", map[string]string{
		"Authorization": "Bearer " + token,
	}, map[string]string{})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("token status = %d, want %d (body %+v)", res.StatusCode, http.StatusCreated, body)
	}

	forged, err := TokenFor("wrong-secret", "patient-9", RolePatient, time.Minute)
	if err != nil {
		t.Fatalf("TokenFor() error = %v", err)
	}
	res, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/sessions", map[string]string{
		"Authorization": "Bearer " + forged,
	}, map[string]string{})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged-token status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func mustRequest(t *testing.T, method, url string, headers map[string]string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}
