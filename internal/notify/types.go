// Package notify fans escalation alerts out to on-call consultants over
// email and SMS. Delivery is a best-effort side channel: enqueueing never
// blocks message intake and a delivery failure never fails the request that
// created the message.
package notify

import (
	"context"
	"fmt"
	"time"
)

// EscalationAlert is the job descriptor handed off when a message escalates.
type EscalationAlert struct {
	MessageID string    `json:"message_id"`
	PatientID string    `json:"patient_id"`
	RiskScore float64   `json:"risk_score"`
	Excerpt   string    `json:"excerpt"`
	CreatedAt time.Time `json:"created_at"`
}

// Subject builds the alert email subject line.
func (a EscalationAlert) Subject() string {
	return fmt.Sprintf("URGENT: Patient Escalation Alert - %s", a.PatientID)
}

// Body builds the alert email body. Excerpt is already sanitized text.
func (a EscalationAlert) Body() string {
	return fmt.Sprintf(
		"URGENT ESCALATION REQUIRED\n\nPatient: %s\nRisk Score: %.2f\nMessage: %s\nTime: %s\n\nPlease contact the patient immediately.",
		a.PatientID, a.RiskScore, a.Excerpt, a.CreatedAt.Format(time.RFC3339),
	)
}

// SMSBody builds the short-form alert for high-risk cases.
func (a EscalationAlert) SMSBody() string {
	return fmt.Sprintf("URGENT: Patient %s escalation detected. Risk: %.2f. Check email.", a.PatientID, a.RiskScore)
}

// EmailProvider delivers one email. Implementations must tolerate duplicate
// alerts for the same message id; the queue is at-least-once.
type EmailProvider interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSProvider delivers one SMS.
type SMSProvider interface {
	SendSMS(ctx context.Context, to, body string) error
}
