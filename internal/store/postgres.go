package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calmlinehq/calmline/internal/audit"
)

// PostgresStore persists triage records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			content TEXT NOT NULL,
			is_escalated BOOLEAN NOT NULL DEFAULT FALSE,
			risk_score DOUBLE PRECISION NULL,
			risk_tags TEXT[] NOT NULL DEFAULT '{}',
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_escalated ON messages (is_escalated, risk_score DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages (created_at);`,
		`CREATE TABLE IF NOT EXISTS wellness_logs (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			mood_score INTEGER NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_wellness_patient_created ON wellness_logs (patient_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS interventions (
			id TEXT PRIMARY KEY,
			consultant_id TEXT NOT NULL,
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			intervention_type TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_interventions_message ON interventions (message_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			metadata JSONB NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_action_ts ON audit_logs (action, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_logs (ts);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg Message, entries []audit.Entry) (Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.RiskTags == nil {
		msg.RiskTags = []string{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Escalation is one-shot: a conflicting write may raise the stored
	// flag but never lower it.
	row := tx.QueryRow(ctx,
		`INSERT INTO messages (id, session_id, sender_id, content, is_escalated, risk_score, risk_tags, is_deleted, deleted_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (id) DO UPDATE SET
			is_escalated = messages.is_escalated OR EXCLUDED.is_escalated
		 RETURNING id, session_id, sender_id, content, is_escalated, risk_score, risk_tags, is_deleted, deleted_at, created_at`,
		msg.ID,
		msg.SessionID,
		msg.SenderID,
		msg.Content,
		msg.IsEscalated,
		msg.RiskScore,
		msg.RiskTags,
		msg.IsDeleted,
		msg.DeletedAt,
		msg.CreatedAt,
	)
	stored, err := scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	for _, e := range entries {
		if err := insertAudit(ctx, tx, e); err != nil {
			return Message{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit message: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (Message, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, sender_id, content, is_escalated, risk_score, risk_tags, is_deleted, deleted_at, created_at
		 FROM messages WHERE id=$1`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListEscalations(ctx context.Context, f EscalationFilter) ([]Message, error) {
	query := `SELECT id, session_id, sender_id, content, is_escalated, risk_score, risk_tags, is_deleted, deleted_at, created_at
		 FROM messages WHERE is_escalated AND NOT is_deleted`
	args := []any{}
	if f.MinRiskScore != nil {
		args = append(args, *f.MinRiskScore)
		query += fmt.Sprintf(" AND risk_score >= $%d", len(args))
	}
	if f.PatientID != "" {
		args = append(args, "%"+f.PatientID+"%")
		query += fmt.Sprintf(" AND sender_id ILIKE $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY risk_score DESC NULLS LAST, created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escalation row: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateIntervention(ctx context.Context, iv Intervention, entry audit.Entry) error {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO interventions (id, consultant_id, message_id, intervention_type, notes, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		iv.ID, iv.ConsultantID, iv.MessageID, iv.Type, iv.Notes, iv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit intervention: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListInterventions(ctx context.Context, messageID string) ([]Intervention, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, consultant_id, message_id, intervention_type, notes, created_at
		 FROM interventions WHERE message_id=$1 ORDER BY created_at`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	defer rows.Close()

	out := []Intervention{}
	for rows.Next() {
		var iv Intervention
		if err := rows.Scan(&iv.ID, &iv.ConsultantID, &iv.MessageID, &iv.Type, &iv.Notes, &iv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan intervention row: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateWellnessLog(ctx context.Context, wl WellnessLog, entry audit.Entry) error {
	if wl.ID == "" {
		wl.ID = uuid.NewString()
	}
	if wl.CreatedAt.IsZero() {
		wl.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO wellness_logs (id, patient_id, mood_score, note, is_deleted, deleted_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		wl.ID, wl.PatientID, wl.MoodScore, wl.Note, wl.IsDeleted, wl.DeletedAt, wl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wellness log: %w", err)
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit wellness log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListWellnessLogs(ctx context.Context, patientID string, limit int) ([]WellnessLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, patient_id, mood_score, note, is_deleted, deleted_at, created_at
		 FROM wellness_logs WHERE patient_id=$1 AND NOT is_deleted
		 ORDER BY created_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wellness logs: %w", err)
	}
	defer rows.Close()

	out := []WellnessLog{}
	for rows.Next() {
		var wl WellnessLog
		if err := rows.Scan(&wl.ID, &wl.PatientID, &wl.MoodScore, &wl.Note, &wl.IsDeleted, &wl.DeletedAt, &wl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wellness row: %w", err)
		}
		out = append(out, wl)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry audit.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, userID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, user_id, action, ts, metadata FROM audit_logs`
	args := []any{}
	if userID != "" {
		args = append(args, userID)
		query += " WHERE user_id=$1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	out := []audit.Entry{}
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Timestamp, &e.Metadata); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SoftDeleteSweep(ctx context.Context, messageCutoff, wellnessCutoff, now time.Time) (SoftSweepCounts, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SoftSweepCounts{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var counts SoftSweepCounts

	tag, err := tx.Exec(ctx,
		`UPDATE messages SET is_deleted=TRUE, deleted_at=$1
		 WHERE NOT is_deleted AND created_at < $2`, now, messageCutoff)
	if err != nil {
		return SoftSweepCounts{}, fmt.Errorf("soft delete messages: %w", err)
	}
	counts.Messages = tag.RowsAffected()

	tag, err = tx.Exec(ctx,
		`UPDATE wellness_logs SET is_deleted=TRUE, deleted_at=$1
		 WHERE NOT is_deleted AND created_at < $2`, now, wellnessCutoff)
	if err != nil {
		return SoftSweepCounts{}, fmt.Errorf("soft delete wellness logs: %w", err)
	}
	counts.WellnessLogs = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return SoftSweepCounts{}, fmt.Errorf("commit soft-delete sweep: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) HardDeleteSweep(ctx context.Context, messageCutoff, wellnessCutoff, auditCutoff, escalationCutoff time.Time) (HardSweepCounts, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return HardSweepCounts{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var counts HardSweepCounts

	// deleted_at, not created_at, is the age basis for hard deletes.
	tag, err := tx.Exec(ctx,
		`DELETE FROM messages WHERE is_deleted AND deleted_at < $1`, messageCutoff)
	if err != nil {
		return HardSweepCounts{}, fmt.Errorf("hard delete messages: %w", err)
	}
	counts.Messages = tag.RowsAffected()

	tag, err = tx.Exec(ctx,
		`DELETE FROM wellness_logs WHERE is_deleted AND deleted_at < $1`, wellnessCutoff)
	if err != nil {
		return HardSweepCounts{}, fmt.Errorf("hard delete wellness logs: %w", err)
	}
	counts.WellnessLogs = tag.RowsAffected()

	// The escalation purge runs first on its narrower window; the general
	// audit purge excludes the escalation actions so the two criteria stay
	// mutually exclusive and counts never overlap.
	escActions := escalationActionStrings()
	tag, err = tx.Exec(ctx,
		`DELETE FROM audit_logs WHERE action = ANY($1) AND ts < $2`,
		escActions, escalationCutoff)
	if err != nil {
		return HardSweepCounts{}, fmt.Errorf("purge escalation audit entries: %w", err)
	}
	counts.EscalationEntries = tag.RowsAffected()

	tag, err = tx.Exec(ctx,
		`DELETE FROM audit_logs WHERE NOT (action = ANY($1)) AND ts < $2`,
		escActions, auditCutoff)
	if err != nil {
		return HardSweepCounts{}, fmt.Errorf("purge audit entries: %w", err)
	}
	counts.AuditEntries = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return HardSweepCounts{}, fmt.Errorf("commit hard-delete sweep: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func insertAudit(ctx context.Context, tx pgx.Tx, e audit.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, ts, metadata) VALUES ($1,$2,$3,$4,$5)`,
		e.ID, e.UserID, string(e.Action), e.Timestamp, e.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID, &m.SessionID, &m.SenderID, &m.Content, &m.IsEscalated,
		&m.RiskScore, &m.RiskTags, &m.IsDeleted, &m.DeletedAt, &m.CreatedAt,
	)
	return m, err
}

func escalationActionStrings() []string {
	out := make([]string, 0, len(audit.EscalationActions))
	for _, a := range audit.EscalationActions {
		out = append(out, string(a))
	}
	return out
}
