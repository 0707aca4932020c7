package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

const replyGenerationUnavailable = "I'm sorry, I'm having trouble putting a response together right now. Nothing you told me was lost; please send your last message again in a moment."

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
}

// SessionManager owns the live session registry and wraps the orchestrator
// with commit-after-assembly semantics: each turn runs on a clone and the
// clone replaces the stored session only when the turn fully succeeds.
type SessionManager struct {
	orchestrator *Orchestrator
	queue        ports.MessageQueue
	reports      ports.SessionReportStore

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewSessionManager builds the session registry. queue and reports may be
// nil; alerts and reports are then kept in the turn results only.
func NewSessionManager(orchestrator *Orchestrator, queue ports.MessageQueue, reports ports.SessionReportStore) *SessionManager {
	return &SessionManager{
		orchestrator: orchestrator,
		queue:        queue,
		reports:      reports,
		sessions:     make(map[string]*sessionEntry),
	}
}

var _ ports.DialogueService = (*SessionManager)(nil)

func (m *SessionManager) StartSession(ctx context.Context) (*domain.Session, error) {
	s := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = &sessionEntry{session: s}
	m.mu.Unlock()

	slog.Info("dialogue_session_started", "session_id", s.ID)
	return s.Clone(), nil
}

func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	entry, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

func (m *SessionManager) RunTurn(ctx context.Context, sessionID, message string, sink ports.StreamSink) (*domain.TurnResult, error) {
	entry, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.session.Clone()
	result, alert, err := m.orchestrator.RunTurn(ctx, working, message, sink)
	if err != nil {
		if domain.IsKind(err, domain.ErrTemporary) {
			// The working copy is discarded, so the user can retry the
			// same message once the backend recovers.
			slog.Warn("dialogue_turn_unavailable", "session_id", sessionID, "error", err)
			if sink != nil {
				sink(replyGenerationUnavailable)
			}
			return &domain.TurnResult{
				SessionID: sessionID,
				Stage:     entry.session.Stage(),
				Intent:    domain.IntentUnavailable,
				Reply:     replyGenerationUnavailable,
				Degraded:  true,
			}, nil
		}
		return nil, fmt.Errorf("run turn: %w", err)
	}

	entry.session = working

	if alert != nil {
		result.Alert = alert
		m.publishAlert(ctx, alert)
	}
	return result, nil
}

func (m *SessionManager) EndSession(ctx context.Context, sessionID string) (*domain.SessionReport, error) {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "end session", fmt.Errorf("session %s", sessionID))
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	report := buildSessionReport(entry.session, m.orchestrator.Config().ConfidenceThreshold)
	if m.reports != nil {
		if err := m.reports.SaveReport(ctx, &report); err != nil {
			// The report is still returned to the caller.
			slog.Error("session_report_persist", "session_id", sessionID, "error", err)
		}
	}

	slog.Info("dialogue_session_ended",
		"session_id", sessionID, "outcome", report.Outcome, "turns", report.Turns)
	return &report, nil
}

func (m *SessionManager) lookup(sessionID string) (*sessionEntry, error) {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "lookup session", fmt.Errorf("session %s", sessionID))
	}
	return entry, nil
}

func (m *SessionManager) publishAlert(ctx context.Context, alert *domain.EscalationAlert) {
	if m.queue == nil {
		return
	}
	if err := m.queue.PublishEscalationAlert(ctx, *alert); err != nil {
		slog.Error("escalation_alert_publish",
			"session_id", alert.SessionID, "source", alert.Source, "error", err)
		return
	}
	slog.Info("escalation_alert",
		"session_id", alert.SessionID, "source", alert.Source, "reason", alert.Reason)
}

func buildSessionReport(s *domain.Session, confidenceThreshold float64) domain.SessionReport {
	report := domain.SessionReport{
		ID:               uuid.NewString(),
		SessionID:        s.ID,
		StartedAt:        s.CreatedAt,
		EndedAt:          time.Now().UTC(),
		Turns:            s.UserTurns,
		GatheringTurns:   s.GatheringTurns,
		Outcome:          domain.OutcomeAbandoned,
		SafetyAlerts:     s.SafetyAlerts,
		EscalationReason: s.EscalationReason,
		Profile:          s.Profile,
	}
	if report.GatheringTurns == 0 {
		report.GatheringTurns = s.UserTurns
	}
	if s.LastOutcome != nil {
		report.FinalDiagnosis = s.LastOutcome.Report.MostLikely
		report.Confidence = s.LastOutcome.Report.MostLikelyConfidence
		report.Uncertainty = s.LastOutcome.Report.Uncertainty
		report.RedFlags = append([]string(nil), s.LastOutcome.Report.RedFlags...)
	}

	switch {
	case s.Escalated:
		report.Outcome = domain.OutcomeEscalated
	case s.DiagnosisComplete && report.Confidence >= confidenceThreshold && report.Uncertainty != domain.UncertaintyHigh:
		report.Outcome = domain.OutcomeDiagnosed
	case s.DiagnosisComplete:
		report.Outcome = domain.OutcomeUncertain
	}
	return report
}
