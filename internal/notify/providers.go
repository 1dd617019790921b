package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// LogEmailProvider writes alert emails to the process log. Used when no
// SMTP relay is configured so escalations remain visible in dev.
type LogEmailProvider struct{}

func (LogEmailProvider) SendEmail(_ context.Context, to, subject, body string) error {
	log.Printf("notify: EMAIL to=%s subject=%q\n%s", to, subject, body)
	return nil
}

// LogSMSProvider writes alert SMS to the process log.
type LogSMSProvider struct{}

func (LogSMSProvider) SendSMS(_ context.Context, to, body string) error {
	log.Printf("notify: SMS to=%s body=%q", to, body)
	return nil
}

// MockEmailProvider records sent emails for tests.
type MockEmailProvider struct {
	mu         sync.Mutex
	sent       []MockDelivery
	failBefore int
	attempts   int
}

// MockDelivery is one captured send.
type MockDelivery struct {
	To      string
	Subject string
	Body    string
}

func NewMockEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{}
}

// FailFirst makes the next n sends return an error before succeeding.
func (p *MockEmailProvider) FailFirst(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failBefore = n
	p.attempts = 0
}

func (p *MockEmailProvider) SendEmail(_ context.Context, to, subject, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failBefore {
		return fmt.Errorf("mock email failure %d", p.attempts)
	}
	p.sent = append(p.sent, MockDelivery{To: to, Subject: subject, Body: body})
	return nil
}

func (p *MockEmailProvider) Sent() []MockDelivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MockDelivery, len(p.sent))
	copy(out, p.sent)
	return out
}

// MockSMSProvider records sent SMS for tests.
type MockSMSProvider struct {
	mu   sync.Mutex
	sent []MockDelivery
}

func NewMockSMSProvider() *MockSMSProvider {
	return &MockSMSProvider{}
}

func (p *MockSMSProvider) SendSMS(_ context.Context, to, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, MockDelivery{To: to, Body: body})
	return nil
}

func (p *MockSMSProvider) Sent() []MockDelivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MockDelivery, len(p.sent))
	copy(out, p.sent)
	return out
}
