package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

type dialogueRetrieverFake struct {
	candidates []domain.RetrievalCandidate
	degraded   []string
	err        error
	queries    []string
}

func (f *dialogueRetrieverFake) RetrieveContext(_ context.Context, query string, _ domain.SearchFilter) ([]domain.RetrievalCandidate, []string, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.candidates, f.degraded, nil
}

type dialogueRewriterFake struct{}

func (dialogueRewriterFake) Rewrite(_ context.Context, text string) string { return text }

type dialogueSafetyFake struct {
	assessment domain.SafetyAssessment
	err        error
	texts      []string
}

func (f *dialogueSafetyFake) Evaluate(_ context.Context, text string) (domain.SafetyAssessment, error) {
	f.texts = append(f.texts, text)
	return f.assessment, f.err
}

type dialogueDifferentialFake struct {
	outcome   domain.DifferentialOutcome
	err       error
	calls     int
	poolSizes []int
}

func (f *dialogueDifferentialFake) Run(_ context.Context, _ string, contextChunks []domain.RetrievalCandidate) (domain.DifferentialOutcome, error) {
	f.calls++
	f.poolSizes = append(f.poolSizes, len(contextChunks))
	if f.err != nil {
		return domain.DifferentialOutcome{}, f.err
	}
	return f.outcome, nil
}

type dialogueGeneratorFake struct {
	replies []string
	err     error
	prompts []string
}

func (f *dialogueGeneratorFake) next() string {
	if len(f.replies) == 0 {
		return "generated reply"
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply
}

func (f *dialogueGeneratorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.next(), nil
}

func (f *dialogueGeneratorFake) GenerateJSON(context.Context, string) (string, error) {
	return "", errors.New("unexpected GenerateJSON call")
}

func (f *dialogueGeneratorFake) GenerateStream(_ context.Context, prompt string, onDelta func(string) error) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	reply := f.next()
	for _, half := range []string{reply[:len(reply)/2], reply[len(reply)/2:]} {
		if err := onDelta(half); err != nil {
			return "", err
		}
	}
	return reply, nil
}

type dialogueRendererFake struct {
	intents []domain.ResponseIntent
}

func (f *dialogueRendererFake) Render(intent domain.ResponseIntent) (domain.RenderedResponse, error) {
	f.intents = append(f.intents, intent)
	switch intent.Kind {
	case domain.IntentEscalation:
		return domain.RenderedResponse{Text: "ESCALATION NOTICE: " + intent.EscalationReason}, nil
	case domain.IntentSafetyAlert:
		return domain.RenderedResponse{Text: "SAFETY NOTICE"}, nil
	case domain.IntentFarewell:
		return domain.RenderedResponse{Text: "FAREWELL"}, nil
	case domain.IntentNoInformation:
		return domain.RenderedResponse{Text: "NO INFORMATION"}, nil
	case domain.IntentRiskProfileQuestion:
		return domain.RenderedResponse{Text: intent.RiskProfileQuestion}, nil
	case domain.IntentRemedyConsent:
		return domain.RenderedResponse{Text: "CONSENT QUESTION"}, nil
	default:
		return domain.RenderedResponse{Prompt: "PROMPT " + string(intent.Kind)}, nil
	}
}

type dialogueFixture struct {
	retriever    *dialogueRetrieverFake
	safety       *dialogueSafetyFake
	differential *dialogueDifferentialFake
	generator    *dialogueGeneratorFake
	renderer     *dialogueRendererFake
	orchestrator *Orchestrator
}

func newDialogueFixture() *dialogueFixture {
	f := &dialogueFixture{
		retriever: &dialogueRetrieverFake{candidates: []domain.RetrievalCandidate{
			{Chunk: domain.Chunk{Index: 1, Source: "charaka", Text: "reference passage"}},
		}},
		safety:       &dialogueSafetyFake{},
		differential: &dialogueDifferentialFake{},
		generator:    &dialogueGeneratorFake{},
		renderer:     &dialogueRendererFake{},
	}
	f.orchestrator = NewOrchestrator(f.retriever, dialogueRewriterFake{}, f.safety, f.differential, f.generator, f.renderer, DialogueConfig{})
	return f
}

func sessionWithUserTurns(n int) *domain.Session {
	s := &domain.Session{ID: "s-1"}
	for i := 0; i < n; i++ {
		appendTurn(s, domain.RoleUser, "it keeps aching in the evening", 50)
		appendTurn(s, domain.RoleAssistant, "noted", 50)
	}
	return s
}

func confidentOutcome() domain.DifferentialOutcome {
	return domain.DifferentialOutcome{
		Report: domain.DifferentialReport{
			Candidates: []domain.ConditionCandidate{
				{Name: "vata imbalance", Confidence: 0.8},
				{Name: "tension headache", Confidence: 0.4},
				{Name: "migraine", Confidence: 0.2},
			},
			MostLikely:           "vata imbalance",
			MostLikelyConfidence: 0.8,
			Uncertainty:          domain.UncertaintyLow,
		},
		SelfCheck: domain.SelfCheckReport{TreatmentAllowed: true, ConfidenceCap: 1},
	}
}

func TestRunTurnEmptyMessage(t *testing.T) {
	f := newDialogueFixture()
	_, _, err := f.orchestrator.RunTurn(context.Background(), &domain.Session{ID: "s-1"}, "   ", nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRunTurnGatheringAsksQuestion(t *testing.T) {
	f := newDialogueFixture()
	f.generator.replies = []string{"How long have you had this pain?"}
	s := &domain.Session{ID: "s-1"}

	var streamed strings.Builder
	result, alert, err := f.orchestrator.RunTurn(context.Background(), s, "I have a headache", func(fragment string) {
		streamed.WriteString(fragment)
	})
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if alert != nil {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if result.Intent != domain.IntentGathering {
		t.Fatalf("intent = %s, want gathering", result.Intent)
	}
	if result.Reply != "How long have you had this pain?" {
		t.Fatalf("reply = %q", result.Reply)
	}
	if streamed.String() != result.Reply {
		t.Fatalf("expected question emitted to sink whole, got %q", streamed.String())
	}
	if s.UserTurns != 1 || len(s.Turns) != 2 {
		t.Fatalf("expected user+assistant turns recorded, got UserTurns=%d len=%d", s.UserTurns, len(s.Turns))
	}
	if len(s.AskedQuestions) != 1 || s.AskedQuestions[0] != result.Reply {
		t.Fatalf("expected question recorded, got %v", s.AskedQuestions)
	}
	if result.Stage != domain.StageGathering {
		t.Fatalf("stage = %s, want gathering", result.Stage)
	}
}

func TestRunTurnGatheringSkipsDuplicateQuestion(t *testing.T) {
	f := newDialogueFixture()
	f.generator.replies = []string{
		"How long have you had the headache?",
		"Have you noticed any fever or chills recently?",
	}
	s := &domain.Session{ID: "s-1", AskedQuestions: []string{"How long have you had this headache?"}}

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "still hurting", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Reply != "Have you noticed any fever or chills recently?" {
		t.Fatalf("expected regenerated question, got %q", result.Reply)
	}
	if len(f.generator.prompts) != 2 {
		t.Fatalf("expected 2 generation attempts, got %d", len(f.generator.prompts))
	}
}

func TestRunTurnGatheringFallsBackWhenRetriesExhausted(t *testing.T) {
	f := newDialogueFixture()
	f.generator.replies = []string{
		"How long have you had the headache?",
		"How long have you had the headache?",
		"How long have you had the headache?",
	}
	s := &domain.Session{ID: "s-1", AskedQuestions: []string{"How long have you had the headache?"}}

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "still hurting", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Reply != fallbackQuestion {
		t.Fatalf("expected fallback question, got %q", result.Reply)
	}
}

func TestRunTurnSafetyGateShortCircuits(t *testing.T) {
	f := newDialogueFixture()
	f.safety.assessment = domain.SafetyAssessment{
		RiskDetected: true,
		Matches:      []domain.RiskMatch{{Concept: "stroke_symptoms", Score: 0.82}},
	}
	s := &domain.Session{ID: "s-1"}

	result, alert, err := f.orchestrator.RunTurn(context.Background(), s, "my face is drooping", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentSafetyAlert || result.Reply != "SAFETY NOTICE" {
		t.Fatalf("unexpected result %+v", result)
	}
	if alert == nil || alert.Source != domain.AlertSourceSafetyGate {
		t.Fatalf("expected safety gate alert, got %+v", alert)
	}
	if s.UserTurns != 0 || len(s.Turns) != 0 {
		t.Fatalf("expected no history mutation, got UserTurns=%d len=%d", s.UserTurns, len(s.Turns))
	}
	if s.SafetyAlerts != 1 {
		t.Fatalf("expected safety alert counter 1, got %d", s.SafetyAlerts)
	}
	if f.differential.calls != 0 {
		t.Fatalf("expected no differential call")
	}
}

func TestRunTurnSafetyGateFailsClosed(t *testing.T) {
	f := newDialogueFixture()
	f.safety.assessment = domain.SafetyAssessment{RiskDetected: true, Degraded: true}
	f.safety.err = errors.New("embedder down")
	s := &domain.Session{ID: "s-1"}

	result, alert, err := f.orchestrator.RunTurn(context.Background(), s, "hello", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if !result.Degraded {
		t.Fatalf("expected degraded result")
	}
	if alert == nil || !strings.Contains(alert.Reason, "failing closed") {
		t.Fatalf("expected fail-closed alert reason, got %+v", alert)
	}
}

func TestRunTurnDifferentialDiagnosisAwaitsConsent(t *testing.T) {
	f := newDialogueFixture()
	f.differential.outcome = confidentOutcome()
	s := sessionWithUserTurns(3)

	result, alert, err := f.orchestrator.RunTurn(context.Background(), s, "the pain moves around and my sleep is poor", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if alert != nil {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if f.differential.calls != 1 {
		t.Fatalf("expected 1 differential call, got %d", f.differential.calls)
	}
	if result.Intent != domain.IntentDiagnosis {
		t.Fatalf("intent = %s, want diagnosis", result.Intent)
	}
	if !s.DiagnosisComplete || !s.AwaitingConsent {
		t.Fatalf("expected diagnosis complete awaiting consent, got %+v", s)
	}
	if result.Stage != domain.StageAwaitingConsent {
		t.Fatalf("stage = %s, want awaiting_consent", result.Stage)
	}
	if result.Outcome == nil || result.Outcome.Report.MostLikely != "vata imbalance" {
		t.Fatalf("expected outcome attached, got %+v", result.Outcome)
	}
	if len(result.Sources) == 0 {
		t.Fatalf("expected sources attached")
	}
	if s.GatheringTurns != 4 {
		t.Fatalf("expected gathering turns snapshot 4, got %d", s.GatheringTurns)
	}
}

func TestRunTurnDifferentialUncertainKeepsGathering(t *testing.T) {
	f := newDialogueFixture()
	outcome := confidentOutcome()
	outcome.Report.MostLikelyConfidence = 0.4
	f.differential.outcome = outcome
	f.generator.replies = []string{"Does anything make the pain better?"}
	s := sessionWithUserTurns(3)

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "hard to say", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentUncertain {
		t.Fatalf("intent = %s, want uncertain", result.Intent)
	}
	if s.DiagnosisComplete {
		t.Fatalf("expected gathering to continue")
	}
	if s.LastOutcome == nil {
		t.Fatalf("expected outcome snapshot stored")
	}
	if len(s.AskedQuestions) != 1 {
		t.Fatalf("expected clarifying question recorded, got %v", s.AskedQuestions)
	}
}

func TestRunTurnHighUncertaintyBlocksDiagnosis(t *testing.T) {
	f := newDialogueFixture()
	outcome := confidentOutcome()
	outcome.Report.Uncertainty = domain.UncertaintyHigh
	f.differential.outcome = outcome
	s := sessionWithUserTurns(3)

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "hard to say", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentUncertain {
		t.Fatalf("intent = %s, want uncertain despite confidence", result.Intent)
	}
}

func TestRunTurnSelfCheckFlagsBlockDiagnosis(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.DifferentialOutcome)
	}{
		{"overconfident", func(o *domain.DifferentialOutcome) { o.SelfCheck.Overconfident = true }},
		{"missing differentials", func(o *domain.DifferentialOutcome) { o.SelfCheck.MissingDifferentials = true }},
	}
	for _, tc := range cases {
		f := newDialogueFixture()
		outcome := confidentOutcome()
		tc.mutate(&outcome)
		f.differential.outcome = outcome
		s := sessionWithUserTurns(3)

		result, _, err := f.orchestrator.RunTurn(context.Background(), s, "hard to say", nil)
		if err != nil {
			t.Fatalf("%s: RunTurn() error = %v", tc.name, err)
		}
		if result.Intent != domain.IntentUncertain {
			t.Fatalf("%s: intent = %s, want uncertain despite confidence", tc.name, result.Intent)
		}
		if s.DiagnosisComplete {
			t.Fatalf("%s: self-check flag must block diagnosis", tc.name)
		}
	}
}

func TestRunTurnRedFlagEscalatesBeforeDifferential(t *testing.T) {
	f := newDialogueFixture()
	s := sessionWithUserTurns(3)

	result, alert, err := f.orchestrator.RunTurn(context.Background(), s, "since this morning I cannot walk", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if f.differential.calls != 0 {
		t.Fatalf("expected differential skipped, got %d calls", f.differential.calls)
	}
	if alert == nil || alert.Source != domain.AlertSourceRedFlagScan {
		t.Fatalf("expected red flag alert, got %+v", alert)
	}
	if !s.Escalated || !s.Completed {
		t.Fatalf("expected escalated session")
	}
	if !strings.HasPrefix(result.Reply, "ESCALATION NOTICE") {
		t.Fatalf("expected canned escalation reply, got %q", result.Reply)
	}
	if !s.RedFlagScanned {
		t.Fatalf("expected scan marked done")
	}
}

func TestRunTurnDifferentialRedFlagsEscalate(t *testing.T) {
	f := newDialogueFixture()
	outcome := confidentOutcome()
	outcome.Report.RedFlags = []string{"possible internal bleeding"}
	f.differential.outcome = outcome
	s := sessionWithUserTurns(3)

	_, alert, err := f.orchestrator.RunTurn(context.Background(), s, "something feels very wrong", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if alert == nil || alert.Source != domain.AlertSourceDifferential {
		t.Fatalf("expected differential alert, got %+v", alert)
	}
	if !s.Escalated || s.EscalationReason == "" {
		t.Fatalf("expected escalation recorded, got %+v", s)
	}
}

func TestRunTurnSelfCheckEscalates(t *testing.T) {
	f := newDialogueFixture()
	outcome := confidentOutcome()
	outcome.SelfCheck.RequiresEscalation = true
	outcome.Report.RedFlags = []string{domain.EscalationAdvisedFlag}
	f.differential.outcome = outcome
	s := sessionWithUserTurns(3)

	_, alert, err := f.orchestrator.RunTurn(context.Background(), s, "something feels wrong", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if alert == nil || alert.Source != domain.AlertSourceSelfCheck {
		t.Fatalf("expected self-check alert, got %+v", alert)
	}
}

func TestRunTurnDiagnosisAppendsConsentQuestion(t *testing.T) {
	f := newDialogueFixture()
	f.differential.outcome = confidentOutcome()
	f.generator.replies = []string{"This points to a vata imbalance."}
	s := sessionWithUserTurns(3)

	var streamed strings.Builder
	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "and my sleep is poor", func(fragment string) {
		streamed.WriteString(fragment)
	})
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if !strings.HasSuffix(result.Reply, "\n\nCONSENT QUESTION") {
		t.Fatalf("expected consent question appended to the diagnosis, got %q", result.Reply)
	}
	if streamed.String() != result.Reply {
		t.Fatalf("streamed = %q, reply = %q", streamed.String(), result.Reply)
	}
	last := f.renderer.intents[len(f.renderer.intents)-1]
	if last.Kind != domain.IntentRemedyConsent {
		t.Fatalf("last rendered intent = %s, want remedy_consent", last.Kind)
	}
	if got := s.Turns[len(s.Turns)-1].Content; got != result.Reply {
		t.Fatalf("history records %q, want full reply with consent question", got)
	}
}

func TestRunTurnTrimsContextToDialogueTopK(t *testing.T) {
	candidates := make([]domain.RetrievalCandidate, 6)
	for i := range candidates {
		candidates[i] = domain.RetrievalCandidate{Chunk: domain.Chunk{Index: i, Source: "charaka", Text: "reference passage"}}
	}
	retriever := &dialogueRetrieverFake{candidates: candidates}
	differential := &dialogueDifferentialFake{outcome: confidentOutcome()}
	renderer := &dialogueRendererFake{}
	orchestrator := NewOrchestrator(retriever, dialogueRewriterFake{}, &dialogueSafetyFake{}, differential, &dialogueGeneratorFake{}, renderer, DialogueConfig{DialogueTopK: 2})
	s := sessionWithUserTurns(3)

	result, _, err := orchestrator.RunTurn(context.Background(), s, "the pain moves around and my sleep is poor", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(result.Sources))
	}
	if len(differential.poolSizes) != 1 || differential.poolSizes[0] != 2 {
		t.Fatalf("expected differential to see 2 chunks, got %v", differential.poolSizes)
	}
	for _, intent := range renderer.intents {
		if intent.Kind == domain.IntentDiagnosis && len(intent.Context) != 2 {
			t.Fatalf("diagnosis intent carries %d chunks, want 2", len(intent.Context))
		}
	}
}

func TestRunTurnUncertainFinalAwaitsConsent(t *testing.T) {
	f := newDialogueFixture()
	outcome := confidentOutcome()
	outcome.Report.MostLikelyConfidence = 0.3
	outcome.Report.Uncertainty = domain.UncertaintyHigh
	f.differential.outcome = outcome
	s := sessionWithUserTurns(8)

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "that is everything I can tell you", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentUncertainFinal {
		t.Fatalf("intent = %s, want uncertain_final", result.Intent)
	}
	if !s.DiagnosisComplete || !s.AwaitingConsent {
		t.Fatalf("expected forced completion awaiting consent, got %+v", s)
	}
	if !strings.HasSuffix(result.Reply, "CONSENT QUESTION") {
		t.Fatalf("expected consent question appended, got %q", result.Reply)
	}
}

func TestRunTurnConsentYesAsksRiskQuestion(t *testing.T) {
	f := newDialogueFixture()
	s := &domain.Session{ID: "s-1", DiagnosisComplete: true, AwaitingConsent: true}
	outcome := confidentOutcome()
	s.LastOutcome = &outcome

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "yes please", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentRiskProfileQuestion {
		t.Fatalf("intent = %s, want risk_profile_question", result.Intent)
	}
	if !s.AwaitingRiskInfo || s.AwaitingConsent {
		t.Fatalf("expected risk gate, got %+v", s)
	}
	if result.Reply != defaultRiskProfileQuestion {
		t.Fatalf("reply = %q", result.Reply)
	}
}

func TestRunTurnConsentNoCompletes(t *testing.T) {
	f := newDialogueFixture()
	s := &domain.Session{ID: "s-1", DiagnosisComplete: true, AwaitingConsent: true}

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "no thank you", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentFarewell || result.Reply != "FAREWELL" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !s.Completed || s.AwaitingConsent {
		t.Fatalf("expected completed session, got %+v", s)
	}
}

func TestRunTurnRiskAnswerDeliversRemedies(t *testing.T) {
	f := newDialogueFixture()
	s := &domain.Session{ID: "s-1", DiagnosisComplete: true, AwaitingRiskInfo: true}
	outcome := confidentOutcome()
	s.LastOutcome = &outcome

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "no allergies and no medication", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentRemedies {
		t.Fatalf("intent = %s, want remedies", result.Intent)
	}
	if !s.RiskInfoCollected || s.AwaitingRiskInfo {
		t.Fatalf("expected risk answer recorded, got %+v", s)
	}
	if !s.RemediesDelivered || !s.Completed {
		t.Fatalf("expected remedies to complete the session, got %+v", s)
	}
	if len(f.retriever.queries) != 1 || !strings.Contains(f.retriever.queries[0], "vata imbalance") {
		t.Fatalf("expected remedy query for the diagnosis, got %v", f.retriever.queries)
	}
	if result.Stage != domain.StageComplete {
		t.Fatalf("stage = %s, want complete", result.Stage)
	}
}

func TestRunTurnRemedyRetrievalEmptySaysNoInformation(t *testing.T) {
	f := newDialogueFixture()
	f.retriever.candidates = nil
	s := &domain.Session{ID: "s-1", DiagnosisComplete: true, AwaitingRiskInfo: true}

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "nothing to report", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentNoInformation || result.Reply != "NO INFORMATION" {
		t.Fatalf("unexpected result %+v", result)
	}
	if s.RemediesDelivered {
		t.Fatalf("expected no remedies marked delivered")
	}
	if !s.Completed {
		t.Fatalf("expected session completed")
	}
}

func TestRunTurnDifferentialContextEmptySaysNoInformation(t *testing.T) {
	f := newDialogueFixture()
	f.retriever.candidates = nil
	s := sessionWithUserTurns(3)

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "the ache comes and goes", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentNoInformation {
		t.Fatalf("intent = %s, want no_information", result.Intent)
	}
	if f.differential.calls != 0 {
		t.Fatalf("expected differential skipped without context")
	}
	if s.DiagnosisComplete || s.Completed {
		t.Fatalf("expected state unchanged for retry, got %+v", s)
	}
}

func TestRunTurnCompletedSessionAnswersFollowUp(t *testing.T) {
	f := newDialogueFixture()
	s := &domain.Session{ID: "s-1", DiagnosisComplete: true, RemediesDelivered: true, Completed: true}
	outcome := confidentOutcome()
	s.LastOutcome = &outcome

	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "how should I take the remedy?", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if result.Intent != domain.IntentFollowUp {
		t.Fatalf("intent = %s, want follow_up", result.Intent)
	}
	if !s.Completed || s.Escalated {
		t.Fatalf("expected no state transitions, got %+v", s)
	}
	if len(f.renderer.intents) == 0 || !f.renderer.intents[len(f.renderer.intents)-1].RemediesDelivered {
		t.Fatalf("expected renderer told remedies were delivered")
	}
}

func TestRunTurnEscalatedSessionRepeatsNotice(t *testing.T) {
	f := newDialogueFixture()
	s := &domain.Session{ID: "s-1", Escalated: true, Completed: true}

	result, alert, err := f.orchestrator.RunTurn(context.Background(), s, "but what should I do?", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if alert != nil {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if result.Reply != replyEscalatedSession {
		t.Fatalf("reply = %q", result.Reply)
	}
	if len(s.Turns) != 0 {
		t.Fatalf("expected no history mutation")
	}
}

func TestRunTurnStreamsGeneratedReply(t *testing.T) {
	f := newDialogueFixture()
	f.differential.outcome = confidentOutcome()
	f.generator.replies = []string{"Based on what you described, this points to a vata imbalance."}
	s := sessionWithUserTurns(3)

	var fragments []string
	result, _, err := f.orchestrator.RunTurn(context.Background(), s, "and my skin is very dry", func(fragment string) {
		fragments = append(fragments, fragment)
	})
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if len(fragments) < 2 {
		t.Fatalf("expected streamed fragments, got %d", len(fragments))
	}
	if strings.Join(fragments, "") != result.Reply {
		t.Fatalf("fragments = %q, reply = %q", strings.Join(fragments, ""), result.Reply)
	}
}

func TestRunTurnGeneratorFailurePropagates(t *testing.T) {
	f := newDialogueFixture()
	f.generator.err = domain.WrapError(domain.ErrTemporary, "generate", errors.New("ollama down"))
	s := &domain.Session{ID: "s-1"}

	_, _, err := f.orchestrator.RunTurn(context.Background(), s, "I have a headache", nil)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
