package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

type DialogueConfig struct {
	MinGatheringTurns      int
	ExtendedGatheringTurns int
	ConfidenceThreshold    float64
	DuplicateOverlap       float64
	QuestionRetryLimit     int
	HistoryMaxTurns        int
	MaxRemedies            int
	DialogueTopK           int
	RiskProfileQuestion    string
}

const defaultRiskProfileQuestion = "Before I share remedies: are you pregnant, taking any regular medication, or do you have any known allergies?"

func (c DialogueConfig) withDefaults() DialogueConfig {
	if c.MinGatheringTurns <= 0 {
		c.MinGatheringTurns = 4
	}
	if c.ExtendedGatheringTurns <= c.MinGatheringTurns {
		c.ExtendedGatheringTurns = c.MinGatheringTurns + 5
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = 0.6
	}
	if c.DuplicateOverlap <= 0 || c.DuplicateOverlap > 1 {
		c.DuplicateOverlap = 0.75
	}
	if c.QuestionRetryLimit <= 0 {
		c.QuestionRetryLimit = 2
	}
	if c.HistoryMaxTurns <= 0 {
		c.HistoryMaxTurns = defaultHistoryMaxTurns
	}
	if c.MaxRemedies <= 0 {
		c.MaxRemedies = 5
	}
	if c.DialogueTopK <= 0 {
		c.DialogueTopK = 8
	}
	if strings.TrimSpace(c.RiskProfileQuestion) == "" {
		c.RiskProfileQuestion = defaultRiskProfileQuestion
	}
	return c
}

// Collaborator contracts, defined here so tests can substitute the heavy
// retrieval and generation pipelines.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, filter domain.SearchFilter) ([]domain.RetrievalCandidate, []string, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, text string) string
}

type SafetyEvaluator interface {
	Evaluate(ctx context.Context, text string) (domain.SafetyAssessment, error)
}

type DifferentialRunner interface {
	Run(ctx context.Context, history string, contextChunks []domain.RetrievalCandidate) (domain.DifferentialOutcome, error)
}

// Orchestrator drives one diagnostic session turn by turn. It mutates only
// the session it is handed; callers pass a working copy and commit it after
// the turn finishes, so a failed turn leaves no trace.
type Orchestrator struct {
	retriever    ContextRetriever
	rewriter     Rewriter
	safety       SafetyEvaluator
	differential DifferentialRunner
	generator    ports.TextGenerator
	renderer     ports.IntentRenderer
	cfg          DialogueConfig
}

func NewOrchestrator(
	retriever ContextRetriever,
	rewriter Rewriter,
	safety SafetyEvaluator,
	differential DifferentialRunner,
	generator ports.TextGenerator,
	renderer ports.IntentRenderer,
	cfg DialogueConfig,
) *Orchestrator {
	return &Orchestrator{
		retriever:    retriever,
		rewriter:     rewriter,
		safety:       safety,
		differential: differential,
		generator:    generator,
		renderer:     renderer,
		cfg:          cfg.withDefaults(),
	}
}

func (o *Orchestrator) Config() DialogueConfig {
	return o.cfg
}

const replyEscalatedSession = "This consultation was escalated because your symptoms may need urgent in-person care. Please contact a medical professional now. You can start a new session for anything else."

// retrieveContext queries the retrieval pipeline and caps the pool at the
// dialogue grounding size, so prompts stay bounded no matter how wide the
// rerank stage is configured.
func (o *Orchestrator) retrieveContext(ctx context.Context, query string, filter domain.SearchFilter) ([]domain.RetrievalCandidate, []string, error) {
	candidates, degradedReasons, err := o.retriever.RetrieveContext(ctx, query, filter)
	if err != nil {
		return nil, degradedReasons, err
	}
	if len(candidates) > o.cfg.DialogueTopK {
		candidates = candidates[:o.cfg.DialogueTopK]
	}
	return candidates, degradedReasons, nil
}

// RunTurn executes one dialogue turn on the given session. The returned
// alert, when non-nil, must be published by the caller. A non-nil error
// means the turn did not happen and the session must not be committed.
//
// Escalated sessions only repeat the urgent-care notice. Completed sessions
// still answer follow-up questions in final mode, without state changes.
func (o *Orchestrator) RunTurn(ctx context.Context, s *domain.Session, message string, sink ports.StreamSink) (*domain.TurnResult, *domain.EscalationAlert, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "dialogue turn", errors.New("empty message"))
	}

	if s.Escalated {
		if sink != nil {
			sink(replyEscalatedSession)
		}
		return &domain.TurnResult{
			SessionID: s.ID,
			Stage:     s.Stage(),
			Intent:    domain.IntentEscalation,
			Reply:     replyEscalatedSession,
		}, nil, nil
	}

	// The safety gate runs before any dialogue-state mutation; a triggered
	// gate must not advance gathering counters or touch the history.
	assessment, safetyErr := o.safety.Evaluate(ctx, message)
	if assessment.RiskDetected {
		return o.safetyStop(ctx, s, assessment, safetyErr, sink)
	}

	appendTurn(s, domain.RoleUser, message, o.cfg.HistoryMaxTurns)

	switch decideTurnAction(s, o.cfg) {
	case actionRecordRiskAnswer:
		s.AwaitingRiskInfo = false
		s.RiskInfoCollected = true
		return o.deliverRemedies(ctx, s, sink)
	case actionConsentReply:
		return o.handleConsent(ctx, s, message, sink)
	case actionFollowUp:
		return o.finishTurn(ctx, s, turnResponse{
			intent: domain.ResponseIntent{
				Kind:              domain.IntentFollowUp,
				UserText:          message,
				History:           formattedHistory(s),
				Profile:           s.Profile,
				Outcome:           s.LastOutcome,
				RemediesDelivered: s.RemediesDelivered,
			},
		}, sink)
	case actionGather:
		return o.askQuestion(ctx, s, domain.IntentGathering, nil, sink)
	case actionDifferential:
		return o.attemptDifferential(ctx, s, false, sink)
	default:
		return o.attemptDifferential(ctx, s, true, sink)
	}
}

func (o *Orchestrator) safetyStop(ctx context.Context, s *domain.Session, assessment domain.SafetyAssessment, safetyErr error, sink ports.StreamSink) (*domain.TurnResult, *domain.EscalationAlert, error) {
	s.SafetyAlerts++

	reason := alertReason(assessment, safetyErr)
	result, alert, err := o.finishTurn(ctx, s, turnResponse{
		intent: domain.ResponseIntent{
			Kind:           domain.IntentSafetyAlert,
			SafetyMatches:  assessment.Matches,
			SafetyDegraded: assessment.Degraded,
		},
		safety:   &assessment,
		degraded: assessment.Degraded,
		alert: &domain.EscalationAlert{
			SessionID: s.ID,
			Source:    domain.AlertSourceSafetyGate,
			Reason:    reason,
			Matches:   assessment.Matches,
			At:        time.Now().UTC(),
		},
		skipHistory: true,
	}, sink)
	if err != nil {
		return nil, nil, err
	}
	return result, alert, nil
}

func alertReason(assessment domain.SafetyAssessment, safetyErr error) string {
	if assessment.Degraded {
		return fmt.Sprintf("safety engine unavailable, failing closed: %v", safetyErr)
	}
	names := make([]string, 0, len(assessment.Matches))
	for _, m := range assessment.Matches {
		names = append(names, m.Concept)
	}
	return "matched risk concepts: " + strings.Join(names, ", ")
}

func (o *Orchestrator) handleConsent(ctx context.Context, s *domain.Session, message string, sink ports.StreamSink) (*domain.TurnResult, *domain.EscalationAlert, error) {
	if !parseAssent(message) {
		s.AwaitingConsent = false
		s.Completed = true
		return o.finishTurn(ctx, s, turnResponse{
			intent: domain.ResponseIntent{Kind: domain.IntentFarewell, Outcome: s.LastOutcome},
		}, sink)
	}

	s.AwaitingConsent = false
	if !s.RiskInfoCollected {
		s.AwaitingRiskInfo = true
		return o.finishTurn(ctx, s, turnResponse{
			intent: domain.ResponseIntent{
				Kind:                domain.IntentRiskProfileQuestion,
				RiskProfileQuestion: o.cfg.RiskProfileQuestion,
			},
		}, sink)
	}
	return o.deliverRemedies(ctx, s, sink)
}

func (o *Orchestrator) deliverRemedies(ctx context.Context, s *domain.Session, sink ports.StreamSink) (*domain.TurnResult, *domain.EscalationAlert, error) {
	condition := "the reported symptoms"
	if s.LastOutcome != nil && s.LastOutcome.Report.MostLikely != "" {
		condition = s.LastOutcome.Report.MostLikely
	}

	query := "ayurvedic remedies and management for " + condition
	contextChunks, degradedReasons, err := o.retrieveContext(ctx, query, domain.SearchFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve remedy context: %w", err)
	}

	s.Completed = true

	if len(contextChunks) == 0 {
		return o.finishTurn(ctx, s, turnResponse{
			intent: domain.ResponseIntent{Kind: domain.IntentNoInformation, RemedyCondition: condition},
		}, sink)
	}

	s.RemediesDelivered = true
	return o.finishTurn(ctx, s, turnResponse{
		intent: domain.ResponseIntent{
			Kind:            domain.IntentRemedies,
			History:         formattedHistory(s),
			Profile:         s.Profile,
			Outcome:         s.LastOutcome,
			Context:         contextChunks,
			RemedyCondition: condition,
			MaxRemedies:     o.cfg.MaxRemedies,
		},
		sources:  contextChunks,
		degraded: len(degradedReasons) > 0,
	}, sink)
}

// askQuestion generates the next question under the duplicate guard.
// Questions are generated unstreamed so a duplicate is never shown, then
// emitted to the sink whole.
func (o *Orchestrator) askQuestion(ctx context.Context, s *domain.Session, kind domain.IntentKind, contextChunks []domain.RetrievalCandidate, sink ports.StreamSink) (*domain.TurnResult, *domain.EscalationAlert, error) {
	degraded := false
	if contextChunks == nil {
		narrative := symptomNarrative(s)
		query := o.rewriter.Rewrite(ctx, narrative)
		var reasons []string
		var err error
		contextChunks, reasons, err = o.retrieveContext(ctx, query, domain.SearchFilter{})
		if err != nil {
			// Questions can be asked ungrounded.
			contextChunks = nil
			degraded = true
		}
		degraded = degraded || len(reasons) > 0
	}

	intent := domain.ResponseIntent{
		Kind:           kind,
		History:        formattedHistory(s),
		Profile:        s.Profile,
		Context:        contextChunks,
		Outcome:        s.LastOutcome,
		AvoidQuestions: append([]string(nil), s.AskedQuestions...),
	}

	question, err := o.generateNovelQuestion(ctx, intent, s.AskedQuestions)
	if err != nil {
		return nil, nil, err
	}

	if sink != nil {
		sink(question)
	}
	s.AskedQuestions = append(s.AskedQuestions, question)
	appendTurn(s, domain.RoleAssistant, question, o.cfg.HistoryMaxTurns)

	return &domain.TurnResult{
		SessionID: s.ID,
		Stage:     s.Stage(),
		Intent:    kind,
		Reply:     question,
		Outcome:   s.LastOutcome,
		Degraded:  degraded,
	}, nil, nil
}

func (o *Orchestrator) generateNovelQuestion(ctx context.Context, intent domain.ResponseIntent, asked []string) (string, error) {
	for attempt := 0; attempt <= o.cfg.QuestionRetryLimit; attempt++ {
		rendered, err := o.renderer.Render(intent)
		if err != nil {
			return "", fmt.Errorf("render intent %s: %w", intent.Kind, err)
		}
		candidate, err := o.generator.Generate(ctx, rendered.Prompt)
		if err != nil {
			return "", fmt.Errorf("generate question: %w", err)
		}
		candidate = strings.TrimSpace(candidate)
		if candidate != "" && !isDuplicateQuestion(candidate, asked, o.cfg.DuplicateOverlap) {
			return candidate, nil
		}
		intent.AvoidQuestions = append(intent.AvoidQuestions, candidate)
	}
	return fallbackQuestion, nil
}

func (o *Orchestrator) attemptDifferential(ctx context.Context, s *domain.Session, finalAttempt bool, sink ports.StreamSink) (*domain.TurnResult, *domain.EscalationAlert, error) {
	narrative := symptomNarrative(s)

	if !s.RedFlagScanned {
		s.RedFlagScanned = true
		if reason, hit := scanRedFlags(narrative, s.Profile); hit {
			return o.escalate(ctx, s, domain.AlertSourceRedFlagScan, reason, nil, sink)
		}
	}

	query := o.rewriter.Rewrite(ctx, narrative)
	contextChunks, degradedReasons, err := o.retrieveContext(ctx, query, domain.SearchFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve differential context: %w", err)
	}
	if len(contextChunks) == 0 {
		return o.finishTurn(ctx, s, turnResponse{
			intent: domain.ResponseIntent{Kind: domain.IntentNoInformation},
		}, sink)
	}

	outcome, err := o.differential.Run(ctx, formattedHistory(s), contextChunks)
	if err != nil {
		return nil, nil, fmt.Errorf("differential: %w", err)
	}
	s.LastOutcome = &outcome

	if outcome.NeedsEscalation() {
		return o.escalate(ctx, s, outcome.EscalationSource(), strings.Join(outcome.Report.RedFlags, "; "), &outcome, sink)
	}

	confident := outcome.Report.MostLikelyConfidence >= o.cfg.ConfidenceThreshold &&
		outcome.Report.Uncertainty != domain.UncertaintyHigh &&
		!outcome.SelfCheck.Overconfident &&
		!outcome.SelfCheck.MissingDifferentials

	switch {
	case confident:
		s.DiagnosisComplete = true
		s.AwaitingConsent = true
		s.GatheringTurns = s.UserTurns
		return o.finishTurn(ctx, s, turnResponse{
			intent: domain.ResponseIntent{
				Kind:    domain.IntentDiagnosis,
				History: formattedHistory(s),
				Profile: s.Profile,
				Context: contextChunks,
				Outcome: &outcome,
			},
			outcome:    &outcome,
			sources:    contextChunks,
			degraded:   outcome.Degraded || len(degradedReasons) > 0,
			askConsent: true,
		}, sink)
	case finalAttempt:
		s.DiagnosisComplete = true
		s.AwaitingConsent = true
		s.GatheringTurns = s.UserTurns
		return o.finishTurn(ctx, s, turnResponse{
			intent: domain.ResponseIntent{
				Kind:    domain.IntentUncertainFinal,
				History: formattedHistory(s),
				Profile: s.Profile,
				Context: contextChunks,
				Outcome: &outcome,
			},
			outcome:    &outcome,
			sources:    contextChunks,
			degraded:   outcome.Degraded || len(degradedReasons) > 0,
			askConsent: true,
		}, sink)
	default:
		return o.askQuestion(ctx, s, domain.IntentUncertain, contextChunks, sink)
	}
}

func (o *Orchestrator) escalate(ctx context.Context, s *domain.Session, source domain.AlertSource, reason string, outcome *domain.DifferentialOutcome, sink ports.StreamSink) (*domain.TurnResult, *domain.EscalationAlert, error) {
	s.Escalated = true
	s.Completed = true
	s.EscalationReason = reason
	if s.GatheringTurns == 0 {
		s.GatheringTurns = s.UserTurns
	}

	return o.finishTurn(ctx, s, turnResponse{
		intent: domain.ResponseIntent{
			Kind:             domain.IntentEscalation,
			EscalationReason: reason,
			Outcome:          outcome,
		},
		outcome: outcome,
		alert: &domain.EscalationAlert{
			SessionID: s.ID,
			Source:    source,
			Reason:    reason,
			At:        time.Now().UTC(),
		},
	}, sink)
}

type turnResponse struct {
	intent      domain.ResponseIntent
	outcome     *domain.DifferentialOutcome
	safety      *domain.SafetyAssessment
	alert       *domain.EscalationAlert
	sources     []domain.RetrievalCandidate
	degraded    bool
	skipHistory bool
	askConsent  bool
}

func (o *Orchestrator) finishTurn(ctx context.Context, s *domain.Session, resp turnResponse, sink ports.StreamSink) (*domain.TurnResult, *domain.EscalationAlert, error) {
	reply, err := o.respond(ctx, resp.intent, sink)
	if err != nil {
		return nil, nil, err
	}

	// The consent question is appended verbatim rather than left to the
	// generator, so the awaiting-consent state always has a visible question
	// to answer.
	if resp.askConsent {
		rendered, err := o.renderer.Render(domain.ResponseIntent{Kind: domain.IntentRemedyConsent})
		if err != nil {
			return nil, nil, fmt.Errorf("render intent %s: %w", domain.IntentRemedyConsent, err)
		}
		if sink != nil {
			sink("\n\n" + rendered.Text)
		}
		reply += "\n\n" + rendered.Text
	}

	if !resp.skipHistory {
		appendTurn(s, domain.RoleAssistant, reply, o.cfg.HistoryMaxTurns)
	}

	return &domain.TurnResult{
		SessionID: s.ID,
		Stage:     s.Stage(),
		Intent:    resp.intent.Kind,
		Reply:     reply,
		Outcome:   resp.outcome,
		Safety:    resp.safety,
		Sources:   resp.sources,
		Degraded:  resp.degraded,
	}, resp.alert, nil
}

// respond renders the intent and produces the reply, streaming when a sink
// is given. Fixed replies from the renderer bypass the generator entirely.
func (o *Orchestrator) respond(ctx context.Context, intent domain.ResponseIntent, sink ports.StreamSink) (string, error) {
	rendered, err := o.renderer.Render(intent)
	if err != nil {
		return "", fmt.Errorf("render intent %s: %w", intent.Kind, err)
	}
	if rendered.Text != "" {
		if sink != nil {
			sink(rendered.Text)
		}
		return rendered.Text, nil
	}

	if sink != nil {
		reply, err := o.generator.GenerateStream(ctx, rendered.Prompt, func(fragment string) error {
			sink(fragment)
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("generate reply: %w", err)
		}
		return strings.TrimSpace(reply), nil
	}

	reply, err := o.generator.Generate(ctx, rendered.Prompt)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
