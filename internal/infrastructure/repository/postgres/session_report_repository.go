package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

// SessionReportRepository persists end-of-session evaluation reports.
// Reports are write-once; reading them back is an offline concern.
type SessionReportRepository struct {
	db *sql.DB
}

func NewSessionReportRepository(db *sql.DB) *SessionReportRepository {
	return &SessionReportRepository{db: db}
}

func (r *SessionReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS session_reports (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ NOT NULL,
	turns INTEGER NOT NULL DEFAULT 0,
	gathering_turns INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL,
	final_diagnosis TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	uncertainty TEXT NOT NULL DEFAULT '',
	red_flags JSONB NOT NULL DEFAULT '[]'::jsonb,
	safety_alerts INTEGER NOT NULL DEFAULT 0,
	escalation_reason TEXT NOT NULL DEFAULT '',
	profile JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_session_reports_session_id ON session_reports(session_id);
CREATE INDEX IF NOT EXISTS idx_session_reports_ended_at ON session_reports(ended_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionReportRepository) SaveReport(ctx context.Context, report *domain.SessionReport) error {
	redFlagsJSON, err := json.Marshal(report.RedFlags)
	if err != nil {
		return fmt.Errorf("marshal red flags: %w", err)
	}
	profileJSON, err := json.Marshal(report.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO session_reports (
	id, session_id, started_at, ended_at, turns, gathering_turns, outcome, final_diagnosis, confidence, uncertainty, red_flags, safety_alerts, escalation_reason, profile
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		report.ID, report.SessionID, report.StartedAt, report.EndedAt,
		report.Turns, report.GatheringTurns, string(report.Outcome),
		report.FinalDiagnosis, report.Confidence, string(report.Uncertainty),
		redFlagsJSON, report.SafetyAlerts, report.EscalationReason, profileJSON,
	)
	if err != nil {
		return fmt.Errorf("insert session report: %w", err)
	}
	return nil
}
