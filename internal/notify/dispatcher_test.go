package notify

import (
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.RetryBase = time.Millisecond
	cfg.RetryCap = 5 * time.Millisecond
	cfg.ConsultantEmails = []string{"oncall@example.com"}
	cfg.OnCallNumbers = []string{"+15550001111"}
	return cfg
}

func TestDispatcherDeliversEmail(t *testing.T) {
	email := NewMockEmailProvider()
	sms := NewMockSMSProvider()
	d := NewDispatcher(testConfig(), email, sms, nil)
	d.Start()

	ok := d.Enqueue(EscalationAlert{
		MessageID: "msg-1",
		PatientID: "patient-1",
		RiskScore: 0.7,
		Excerpt:   "I feel hopeless",
		CreatedAt: time.Now().UTC(),
	})
	if !ok {
		t.Fatalf("Enqueue() = false, want true")
	}
	d.Stop()

	sent := email.Sent()
	if len(sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(sent))
	}
	if sent[0].To != "oncall@example.com" {
		t.Fatalf("To = %q, want oncall@example.com", sent[0].To)
	}
	if !strings.Contains(sent[0].Subject, "patient-1") {
		t.Fatalf("Subject = %q, want patient id included", sent[0].Subject)
	}
	// 0.7 is below the SMS threshold.
	if got := sms.Sent(); len(got) != 0 {
		t.Fatalf("sms sent = %d, want 0 below threshold", len(got))
	}
}

func TestDispatcherSendsSMSAtThreshold(t *testing.T) {
	email := NewMockEmailProvider()
	sms := NewMockSMSProvider()
	d := NewDispatcher(testConfig(), email, sms, nil)
	d.Start()

	d.Enqueue(EscalationAlert{
		MessageID: "msg-2",
		PatientID: "patient-2",
		RiskScore: 0.8,
		Excerpt:   "crisis content",
		CreatedAt: time.Now().UTC(),
	})
	d.Stop()

	if got := sms.Sent(); len(got) != 1 {
		t.Fatalf("sms sent = %d, want 1 at threshold", len(got))
	}
	if got := email.Sent(); len(got) != 1 {
		t.Fatalf("emails sent = %d, want 1 alongside sms", len(got))
	}
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	email := NewMockEmailProvider()
	email.FailFirst(2)
	d := NewDispatcher(testConfig(), email, NewMockSMSProvider(), nil)
	d.Start()

	d.Enqueue(EscalationAlert{MessageID: "msg-3", PatientID: "patient-3", RiskScore: 0.6})
	d.Stop()

	if got := email.Sent(); len(got) != 1 {
		t.Fatalf("emails sent = %d, want 1 after retries", len(got))
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.BufferSize = 1
	// Not started: nothing drains the queue.
	d := NewDispatcher(cfg, NewMockEmailProvider(), NewMockSMSProvider(), nil)

	if !d.Enqueue(EscalationAlert{MessageID: "msg-4"}) {
		t.Fatalf("first Enqueue() = false, want true")
	}
	if d.Enqueue(EscalationAlert{MessageID: "msg-5"}) {
		t.Fatalf("second Enqueue() = true, want drop on full queue")
	}
}

func TestStopDrainsQueuedAlerts(t *testing.T) {
	email := NewMockEmailProvider()
	d := NewDispatcher(testConfig(), email, NewMockSMSProvider(), nil)
	d.Start()

	for i := 0; i < 5; i++ {
		d.Enqueue(EscalationAlert{MessageID: "msg", PatientID: "patient", RiskScore: 0.6})
	}
	d.Stop()

	if got := email.Sent(); len(got) != 5 {
		t.Fatalf("emails sent = %d, want all 5 drained before stop", len(got))
	}
}
