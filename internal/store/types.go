package store

import (
	"context"
	"errors"
	"time"

	"github.com/calmlinehq/calmline/internal/audit"
)

var ErrNotFound = errors.New("record not found")

// Message is one chat turn. Content is held as sanitized plaintext here;
// encryption at rest belongs to the database layer, not this model.
type Message struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	SenderID    string     `json:"sender_id"`
	Content     string     `json:"content"`
	IsEscalated bool       `json:"is_escalated"`
	RiskScore   *float64   `json:"risk_score,omitempty"`
	RiskTags    []string   `json:"risk_tags,omitempty"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// WellnessLog is a patient mood check-in. MoodScore is on a 1..10 scale.
type WellnessLog struct {
	ID        string     `json:"id"`
	PatientID string     `json:"patient_id"`
	MoodScore int        `json:"mood_score"`
	Note      string     `json:"note,omitempty"`
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Intervention records an explicit consultant action on an escalated
// message. Recording one never clears the message's escalation flag.
type Intervention struct {
	ID           string    `json:"id"`
	ConsultantID string    `json:"consultant_id"`
	MessageID    string    `json:"message_id"`
	Type         string    `json:"intervention_type"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Intervention types.
const (
	InterventionContact  = "contact"
	InterventionEscalate = "escalate"
	InterventionResolve  = "resolve"
)

// ValidInterventionType reports whether t is a known intervention type.
func ValidInterventionType(t string) bool {
	switch t {
	case InterventionContact, InterventionEscalate, InterventionResolve:
		return true
	}
	return false
}

// EscalationFilter narrows an escalation listing.
type EscalationFilter struct {
	MinRiskScore *float64
	PatientID    string
	From         *time.Time
	To           *time.Time
}

// SoftSweepCounts reports one soft-delete sweep.
type SoftSweepCounts struct {
	Messages     int64 `json:"messages_soft_deleted"`
	WellnessLogs int64 `json:"wellness_logs_soft_deleted"`
}

// HardSweepCounts reports one hard-delete sweep. EscalationEntries counts
// audit rows purged on the narrower escalation window; AuditEntries counts
// the remaining audit rows purged on the general window. The two never
// overlap.
type HardSweepCounts struct {
	Messages          int64 `json:"messages_deleted"`
	WellnessLogs      int64 `json:"wellness_logs_deleted"`
	AuditEntries      int64 `json:"audit_logs_deleted"`
	EscalationEntries int64 `json:"escalations_purged"`
}

// Total is the number of rows removed by the sweep.
func (c HardSweepCounts) Total() int64 {
	return c.Messages + c.WellnessLogs + c.AuditEntries + c.EscalationEntries
}

// Store persists messages, wellness logs, interventions and the audit
// trail. Implementations must make CreateMessage atomic with its audit
// entries and must run each sweep in a single transaction.
type Store interface {
	// CreateMessage persists a message together with its audit entries.
	// Either everything commits or nothing does. If the id already exists
	// the stored escalation flag is kept unless the new message raises it;
	// an escalated message is never downgraded.
	CreateMessage(ctx context.Context, msg Message, entries []audit.Entry) (Message, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	ListEscalations(ctx context.Context, f EscalationFilter) ([]Message, error)

	CreateIntervention(ctx context.Context, iv Intervention, entry audit.Entry) error
	ListInterventions(ctx context.Context, messageID string) ([]Intervention, error)

	CreateWellnessLog(ctx context.Context, wl WellnessLog, entry audit.Entry) error
	ListWellnessLogs(ctx context.Context, patientID string, limit int) ([]WellnessLog, error)

	AppendAudit(ctx context.Context, entry audit.Entry) error
	ListAudit(ctx context.Context, userID string, limit int) ([]audit.Entry, error)

	// SoftDeleteSweep marks still-live rows older than their cutoff as
	// deleted at `now`. Re-running it only affects still-eligible rows.
	SoftDeleteSweep(ctx context.Context, messageCutoff, wellnessCutoff, now time.Time) (SoftSweepCounts, error)
	// HardDeleteSweep removes soft-deleted rows whose deletion is older
	// than the cutoff (age basis is deleted_at, not created_at) and ages
	// out audit entries. Escalation-action entries are purged first on
	// their own window; the general audit purge excludes them so rows are
	// never double-counted.
	HardDeleteSweep(ctx context.Context, messageCutoff, wellnessCutoff, auditCutoff, escalationCutoff time.Time) (HardSweepCounts, error)

	Close() error
}
