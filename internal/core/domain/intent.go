package domain

type IntentKind string

const (
	IntentGathering           IntentKind = "gathering"
	IntentDiagnosis           IntentKind = "diagnosis"
	IntentUncertain           IntentKind = "uncertain"
	IntentUncertainFinal      IntentKind = "uncertain_final"
	IntentEscalation          IntentKind = "escalation"
	IntentRemedyConsent       IntentKind = "remedy_consent"
	IntentRiskProfileQuestion IntentKind = "risk_profile_question"
	IntentRemedies            IntentKind = "remedies"
	IntentSafetyAlert         IntentKind = "safety_alert"
	IntentFollowUp            IntentKind = "follow_up"
	IntentFarewell            IntentKind = "farewell"
	IntentNoInformation       IntentKind = "no_information"
	IntentUnavailable         IntentKind = "unavailable"
)

// ResponseIntent describes WHAT the assistant must say next; rendering it
// into a prompt (or canned text) happens in the presentation layer.
type ResponseIntent struct {
	Kind IntentKind

	UserText string
	History  string
	Profile  PatientProfile

	Context []RetrievalCandidate

	Outcome *DifferentialOutcome

	SafetyMatches    []RiskMatch
	SafetyDegraded   bool
	EscalationReason string

	AvoidQuestions []string

	RiskProfileQuestion string
	RemedyCondition     string
	MaxRemedies         int
	RemediesDelivered   bool
}

// RenderedResponse is the presentation layer's output for an intent. Text
// set means a fixed reply that must not depend on the generator (safety and
// escalation paths); otherwise Prompt is sent to the generator.
type RenderedResponse struct {
	Prompt string
	Text   string
}

// TurnResult is what one accepted dialogue turn produces. Alert is set only
// on the turn that raised an escalation, never on later turns of an already
// escalated session.
type TurnResult struct {
	SessionID string               `json:"session_id"`
	Stage     Stage                `json:"stage"`
	Intent    IntentKind           `json:"intent"`
	Reply     string               `json:"reply"`
	Outcome   *DifferentialOutcome `json:"outcome,omitempty"`
	Safety    *SafetyAssessment    `json:"safety,omitempty"`
	Sources   []RetrievalCandidate `json:"sources,omitempty"`
	Alert     *EscalationAlert     `json:"alert,omitempty"`
	Degraded  bool                 `json:"degraded,omitempty"`
}
