// Package audit defines the append-only audit trail entries that act as the
// system of record for escalation history. Entries are persisted by the
// storage layer and are only ever removed by the retention sweeper.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies what an audit entry records.
type Action string

const (
	ActionMessageSent        Action = "message_sent"
	ActionEscalationCreated  Action = "escalation_created"
	ActionEscalationViewed   Action = "escalation_viewed"
	ActionEscalationResolved Action = "escalation_resolved"
	ActionWellnessLogged     Action = "wellness_logged"
	ActionSoftDeleteSweep    Action = "automated_soft_delete"
	ActionDataCleanup        Action = "automated_data_cleanup"
)

// EscalationActions is the narrower purge category: these entries age out on
// the escalation retention window ahead of the general audit window.
var EscalationActions = []Action{
	ActionEscalationCreated,
	ActionEscalationViewed,
	ActionEscalationResolved,
}

// Entry is one append-only audit record. UserID is empty for system actions
// such as retention sweeps.
type Entry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Action    Action         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEntry builds an entry stamped with the current time.
func NewEntry(action Action, userID string, metadata map[string]any) Entry {
	return Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// IsEscalationAction reports whether an action belongs to the escalation
// purge category.
func IsEscalationAction(a Action) bool {
	for _, e := range EscalationActions {
		if a == e {
			return true
		}
	}
	return false
}
