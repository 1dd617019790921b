// Package triage runs the risk-assessment and escalation pipeline for every
// inbound patient message: sanitize, gate, score, persist, audit, notify.
package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calmlinehq/calmline/internal/audit"
	"github.com/calmlinehq/calmline/internal/guardrail"
	"github.com/calmlinehq/calmline/internal/lexicon"
	"github.com/calmlinehq/calmline/internal/notify"
	"github.com/calmlinehq/calmline/internal/observability"
	"github.com/calmlinehq/calmline/internal/risk"
	"github.com/calmlinehq/calmline/internal/store"
)

// CrisisTag marks the forced escalation applied when the safety gate trips.
// It replaces scorer output entirely rather than merging with it.
const CrisisTag = "crisis:immediate_intervention"

// Alerts is the slice of the notification dispatcher triage depends on.
type Alerts interface {
	Enqueue(alert notify.EscalationAlert) bool
}

// Inbound is one message submission from the request layer.
type Inbound struct {
	SessionID  string
	SenderID   string
	SenderRole string
	Text       string
}

// Result is what the request layer needs to build the stored message view
// and the response envelope.
type Result struct {
	Message       store.Message
	Escalated     bool
	SafetyWarning string
}

// Service orchestrates the triage pipeline. It is safe for concurrent use;
// scoring is pure and each request touches only the message it creates.
type Service struct {
	store   store.Store
	filter  *guardrail.Filter
	lex     lexicon.Lexicon
	alerts  Alerts
	metrics *observability.Metrics
}

func NewService(st store.Store, filter *guardrail.Filter, lex lexicon.Lexicon, alerts Alerts, metrics *observability.Metrics) *Service {
	return &Service{
		store:   st,
		filter:  filter,
		lex:     lex,
		alerts:  alerts,
		metrics: metrics,
	}
}

// HandleMessage runs the full pipeline for one inbound message. The message
// and its audit entries commit atomically; a storage failure surfaces as a
// retryable error with nothing persisted. Notification enqueue happens after
// commit and never fails the call.
func (s *Service) HandleMessage(ctx context.Context, in Inbound) (Result, error) {
	sanitized := s.filter.SanitizeInput(in.Text)
	warning := s.filter.Warning(sanitized)

	var assessment risk.Assessment
	if !s.filter.IsSafe(in.Text) {
		// Hard override: crisis content bypasses the scorer entirely.
		assessment = risk.Assessment{
			Score: 1.0,
			Tags:  []string{CrisisTag},
			Risky: true,
		}
	} else {
		assessment = risk.Score(sanitized, s.lex)
	}

	score := assessment.Score
	msg := store.Message{
		ID:          uuid.NewString(),
		SessionID:   in.SessionID,
		SenderID:    in.SenderID,
		Content:     sanitized,
		IsEscalated: assessment.Risky,
		RiskScore:   &score,
		RiskTags:    assessment.Tags,
		CreatedAt:   time.Now().UTC(),
	}

	entries := []audit.Entry{
		audit.NewEntry(audit.ActionMessageSent, in.SenderID, map[string]any{
			"message_id": msg.ID,
			"escalated":  assessment.Risky,
		}),
	}
	if assessment.Risky {
		entries = append(entries, audit.NewEntry(audit.ActionEscalationCreated, in.SenderID, map[string]any{
			"message_id":           msg.ID,
			"risk_score":           assessment.Score,
			"risk_tags":            assessment.Tags,
			"escalation_timestamp": msg.CreatedAt.Format(time.RFC3339Nano),
		}))
	}

	stored, err := s.store.CreateMessage(ctx, msg, entries)
	if err != nil {
		return Result{}, fmt.Errorf("persist message: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Messages.WithLabelValues(in.SenderRole).Inc()
		if assessment.Risky {
			s.metrics.Escalations.WithLabelValues(risk.Band(assessment.Score)).Inc()
		}
	}

	if assessment.Risky && s.alerts != nil {
		s.alerts.Enqueue(notify.EscalationAlert{
			MessageID: stored.ID,
			PatientID: in.SenderID,
			RiskScore: assessment.Score,
			Excerpt:   sanitized,
			CreatedAt: stored.CreatedAt,
		})
	}

	return Result{
		Message:       stored,
		Escalated:     stored.IsEscalated,
		SafetyWarning: warning,
	}, nil
}

// RecordIntervention logs an explicit consultant action on an escalated
// message. The message's escalation flag is untouched; resolution history
// is layered on top of it in the audit trail.
func (s *Service) RecordIntervention(ctx context.Context, consultantID, messageID, ivType, notes string) (store.Intervention, error) {
	if !store.ValidInterventionType(ivType) {
		return store.Intervention{}, fmt.Errorf("invalid intervention type %q", ivType)
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return store.Intervention{}, fmt.Errorf("load message: %w", err)
	}
	if !msg.IsEscalated {
		return store.Intervention{}, fmt.Errorf("message %s is not escalated", messageID)
	}

	iv := store.Intervention{
		ID:           uuid.NewString(),
		ConsultantID: consultantID,
		MessageID:    messageID,
		Type:         ivType,
		Notes:        notes,
		CreatedAt:    time.Now().UTC(),
	}
	entry := audit.NewEntry(audit.ActionEscalationResolved, consultantID, map[string]any{
		"message_id":        messageID,
		"intervention_type": ivType,
		"resolution_notes":  notes,
	})
	if err := s.store.CreateIntervention(ctx, iv, entry); err != nil {
		return store.Intervention{}, fmt.Errorf("record intervention: %w", err)
	}
	return iv, nil
}

// ListEscalations returns escalated messages for consultant review and
// audits the view.
func (s *Service) ListEscalations(ctx context.Context, viewerID string, f store.EscalationFilter) ([]store.Message, error) {
	msgs, err := s.store.ListEscalations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	entry := audit.NewEntry(audit.ActionEscalationViewed, viewerID, map[string]any{
		"result_count": len(msgs),
	})
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("audit escalation view: %w", err)
	}
	return msgs, nil
}

// RecordWellness stores a mood check-in with its audit entry.
func (s *Service) RecordWellness(ctx context.Context, patientID string, moodScore int, note string) (store.WellnessLog, error) {
	if moodScore < 1 || moodScore > 10 {
		return store.WellnessLog{}, fmt.Errorf("mood score %d out of range 1..10", moodScore)
	}
	wl := store.WellnessLog{
		ID:        uuid.NewString(),
		PatientID: patientID,
		MoodScore: moodScore,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	entry := audit.NewEntry(audit.ActionWellnessLogged, patientID, map[string]any{
		"wellness_log_id": wl.ID,
		"mood_score":      moodScore,
	})
	if err := s.store.CreateWellnessLog(ctx, wl, entry); err != nil {
		return store.WellnessLog{}, fmt.Errorf("record wellness log: %w", err)
	}
	if s.metrics != nil {
		s.metrics.WellnessLogs.Inc()
	}
	return wl, nil
}
