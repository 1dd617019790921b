// Package retention enforces per-category data retention: a soft-delete
// sweep marks aged rows, a hard-delete sweep removes rows whose soft delete
// has itself aged out. Each sweep is one transaction; a failure leaves the
// data untouched for the next scheduled run.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/calmlinehq/calmline/internal/audit"
	"github.com/calmlinehq/calmline/internal/observability"
	"github.com/calmlinehq/calmline/internal/store"
)

// Policy holds the per-category retention windows in days.
type Policy struct {
	MessageDays    int
	WellnessDays   int
	AuditDays      int
	EscalationDays int
}

// DefaultPolicy returns the stock windows.
func DefaultPolicy() Policy {
	return Policy{
		MessageDays:    365,
		WellnessDays:   730,
		AuditDays:      1095,
		EscalationDays: 180,
	}
}

func (p Policy) validate() error {
	if p.MessageDays <= 0 || p.WellnessDays <= 0 || p.AuditDays <= 0 || p.EscalationDays <= 0 {
		return fmt.Errorf("retention windows must be positive: %+v", p)
	}
	return nil
}

// Sweeper runs retention sweeps against the store. The external scheduler
// is responsible for not overlapping runs of the same sweep.
type Sweeper struct {
	store   store.Store
	policy  Policy
	metrics *observability.Metrics
	now     func() time.Time
}

func NewSweeper(st store.Store, policy Policy, metrics *observability.Metrics) (*Sweeper, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Sweeper{
		store:   st,
		policy:  policy,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// SoftDeleteSweep marks messages and wellness logs older than their windows
// as deleted. Idempotent: a second run right after finds nothing eligible.
func (s *Sweeper) SoftDeleteSweep(ctx context.Context) (store.SoftSweepCounts, error) {
	now := s.now()
	counts, err := s.store.SoftDeleteSweep(ctx,
		now.AddDate(0, 0, -s.policy.MessageDays),
		now.AddDate(0, 0, -s.policy.WellnessDays),
		now,
	)
	if err != nil {
		return store.SoftSweepCounts{}, fmt.Errorf("soft-delete sweep: %w", err)
	}

	// Summary is written after the sweep commits; the sweep itself must
	// not hinge on being able to log it twice.
	entry := audit.NewEntry(audit.ActionSoftDeleteSweep, "", map[string]any{
		"messages_soft_deleted":      counts.Messages,
		"wellness_logs_soft_deleted": counts.WellnessLogs,
	})
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		return counts, fmt.Errorf("audit soft-delete sweep: %w", err)
	}
	return counts, nil
}

// HardDeleteSweep removes aged soft-deleted rows and ages out audit
// entries. Hard deletion ages from deleted_at, not created_at. Escalation
// audit actions purge first on their narrower window; the general audit
// purge excludes them, so the two criteria never touch the same row.
func (s *Sweeper) HardDeleteSweep(ctx context.Context) (store.HardSweepCounts, error) {
	now := s.now()
	counts, err := s.store.HardDeleteSweep(ctx,
		now.AddDate(0, 0, -s.policy.MessageDays),
		now.AddDate(0, 0, -s.policy.WellnessDays),
		now.AddDate(0, 0, -s.policy.AuditDays),
		now.AddDate(0, 0, -s.policy.EscalationDays),
	)
	if err != nil {
		return store.HardSweepCounts{}, fmt.Errorf("hard-delete sweep: %w", err)
	}

	entry := audit.NewEntry(audit.ActionDataCleanup, "", map[string]any{
		"messages_deleted":      counts.Messages,
		"wellness_logs_deleted": counts.WellnessLogs,
		"audit_logs_deleted":    counts.AuditEntries,
		"escalations_purged":    counts.EscalationEntries,
		"retention_policy": map[string]any{
			"messages_days":    s.policy.MessageDays,
			"wellness_days":    s.policy.WellnessDays,
			"audit_days":       s.policy.AuditDays,
			"escalations_days": s.policy.EscalationDays,
		},
	})
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		return counts, fmt.Errorf("audit hard-delete sweep: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RetentionDeleted.WithLabelValues("messages").Add(float64(counts.Messages))
		s.metrics.RetentionDeleted.WithLabelValues("wellness").Add(float64(counts.WellnessLogs))
		s.metrics.RetentionDeleted.WithLabelValues("audit").Add(float64(counts.AuditEntries))
		s.metrics.RetentionDeleted.WithLabelValues("escalations").Add(float64(counts.EscalationEntries))
	}
	return counts, nil
}

// StartScheduler runs both sweeps on a fixed interval until ctx is done.
// Failures are logged and retried on the next tick with the full window.
func (s *Sweeper) StartScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SoftDeleteSweep(ctx); err != nil {
					log.Printf("retention: soft-delete sweep failed: %v", err)
				}
				if _, err := s.HardDeleteSweep(ctx); err != nil {
					log.Printf("retention: hard-delete sweep failed: %v", err)
				}
			}
		}
	}()
}
