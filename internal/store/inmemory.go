package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calmlinehq/calmline/internal/audit"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
// Sweeps mutate under one lock, matching the all-or-nothing contract.
type InMemoryStore struct {
	mu            sync.RWMutex
	messages      map[string]*Message
	wellness      map[string]*WellnessLog
	interventions []Intervention
	auditTrail    []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages: make(map[string]*Message),
		wellness: make(map[string]*WellnessLog),
	}
}

func (s *InMemoryStore) CreateMessage(_ context.Context, msg Message, entries []audit.Entry) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if existing, ok := s.messages[msg.ID]; ok {
		// Escalation is one-shot: a duplicate write may raise the flag but
		// never lower it.
		existing.IsEscalated = existing.IsEscalated || msg.IsEscalated
		s.appendAuditLocked(entries)
		return *existing, nil
	}

	stored := msg
	s.messages[msg.ID] = &stored
	s.appendAuditLocked(entries)
	return stored, nil
}

func (s *InMemoryStore) GetMessage(_ context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return *m, nil
}

func (s *InMemoryStore) ListEscalations(_ context.Context, f EscalationFilter) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Message{}
	for _, m := range s.messages {
		if !m.IsEscalated || m.IsDeleted {
			continue
		}
		if f.MinRiskScore != nil && (m.RiskScore == nil || *m.RiskScore < *f.MinRiskScore) {
			continue
		}
		if f.PatientID != "" && !strings.Contains(m.SenderID, f.PatientID) {
			continue
		}
		if f.From != nil && m.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && m.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		return scoreOf(out[i]) > scoreOf(out[j])
	})
	return out, nil
}

func (s *InMemoryStore) CreateIntervention(_ context.Context, iv Intervention, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[iv.MessageID]; !ok {
		return ErrNotFound
	}
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	s.interventions = append(s.interventions, iv)
	s.appendAuditLocked([]audit.Entry{entry})
	return nil
}

func (s *InMemoryStore) ListInterventions(_ context.Context, messageID string) ([]Intervention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Intervention{}
	for _, iv := range s.interventions {
		if iv.MessageID == messageID {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (s *InMemoryStore) CreateWellnessLog(_ context.Context, wl WellnessLog, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wl.ID == "" {
		wl.ID = uuid.NewString()
	}
	if wl.CreatedAt.IsZero() {
		wl.CreatedAt = time.Now().UTC()
	}
	stored := wl
	s.wellness[wl.ID] = &stored
	s.appendAuditLocked([]audit.Entry{entry})
	return nil
}

func (s *InMemoryStore) ListWellnessLogs(_ context.Context, patientID string, limit int) ([]WellnessLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []WellnessLog{}
	for _, wl := range s.wellness {
		if wl.PatientID == patientID && !wl.IsDeleted {
			out = append(out, *wl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AppendAudit(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAuditLocked([]audit.Entry{entry})
	return nil
}

func (s *InMemoryStore) ListAudit(_ context.Context, userID string, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []audit.Entry{}
	for i := len(s.auditTrail) - 1; i >= 0; i-- {
		e := s.auditTrail[i]
		if userID != "" && e.UserID != userID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) SoftDeleteSweep(_ context.Context, messageCutoff, wellnessCutoff, now time.Time) (SoftSweepCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts SoftSweepCounts
	for _, m := range s.messages {
		if !m.IsDeleted && m.CreatedAt.Before(messageCutoff) {
			m.IsDeleted = true
			at := now
			m.DeletedAt = &at
			counts.Messages++
		}
	}
	for _, wl := range s.wellness {
		if !wl.IsDeleted && wl.CreatedAt.Before(wellnessCutoff) {
			wl.IsDeleted = true
			at := now
			wl.DeletedAt = &at
			counts.WellnessLogs++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) HardDeleteSweep(_ context.Context, messageCutoff, wellnessCutoff, auditCutoff, escalationCutoff time.Time) (HardSweepCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts HardSweepCounts
	for id, m := range s.messages {
		if m.IsDeleted && m.DeletedAt != nil && m.DeletedAt.Before(messageCutoff) {
			delete(s.messages, id)
			counts.Messages++
		}
	}
	for id, wl := range s.wellness {
		if wl.IsDeleted && wl.DeletedAt != nil && wl.DeletedAt.Before(wellnessCutoff) {
			delete(s.wellness, id)
			counts.WellnessLogs++
		}
	}

	// Escalation entries age out first on their narrower window; the
	// general pass then only considers non-escalation actions, so no row
	// is counted twice.
	kept := s.auditTrail[:0]
	for _, e := range s.auditTrail {
		escalation := audit.IsEscalationAction(e.Action)
		switch {
		case escalation && e.Timestamp.Before(escalationCutoff):
			counts.EscalationEntries++
		case !escalation && e.Timestamp.Before(auditCutoff):
			counts.AuditEntries++
		default:
			kept = append(kept, e)
		}
	}
	s.auditTrail = kept

	return counts, nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) appendAuditLocked(entries []audit.Entry) {
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now().UTC()
		}
		s.auditTrail = append(s.auditTrail, e)
	}
}

func scoreOf(m Message) float64 {
	if m.RiskScore == nil {
		return 0
	}
	return *m.RiskScore
}
