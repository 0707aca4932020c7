package domain

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PatientProfile holds the demographics extracted from the conversation.
// Zero values mean unknown; refinement only ever overwrites with valid data.
type PatientProfile struct {
	Age    int    `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

func (p PatientProfile) Known() bool {
	return p.Age > 0 || p.Gender != ""
}

func (p PatientProfile) Describe() string {
	parts := make([]string, 0, 2)
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("age=%d", p.Age))
	}
	if p.Gender != "" {
		parts = append(parts, "gender="+p.Gender)
	}
	return strings.Join(parts, ", ")
}

type Stage string

const (
	StageGathering         Stage = "gathering"
	StageAwaitingConsent   Stage = "awaiting_consent"
	StageAwaitingRiskInfo  Stage = "awaiting_risk_profile"
	StageDiagnosed         Stage = "diagnosed"
	StageEscalated         Stage = "escalated"
	StageComplete          Stage = "complete"
)

// Session is the per-conversation dialogue state. It is mutated only by the
// orchestrator, one turn at a time; callers serialize access per session.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Turns          []Turn   `json:"turns"`
	UserTurns      int      `json:"user_turns"`
	GatheringTurns int      `json:"gathering_turns"`
	AskedQuestions []string `json:"asked_questions,omitempty"`

	Profile PatientProfile `json:"profile"`

	RedFlagScanned    bool   `json:"red_flag_scanned"`
	DiagnosisComplete bool   `json:"diagnosis_complete"`
	AwaitingConsent   bool   `json:"awaiting_consent"`
	AwaitingRiskInfo  bool   `json:"awaiting_risk_info"`
	RiskInfoCollected bool   `json:"risk_info_collected"`
	RemediesDelivered bool   `json:"remedies_delivered"`
	Completed         bool   `json:"completed"`
	Escalated         bool   `json:"escalated"`
	EscalationReason  string `json:"escalation_reason,omitempty"`

	LastOutcome *DifferentialOutcome `json:"last_outcome,omitempty"`

	SafetyAlerts int `json:"safety_alerts"`
}

func (s *Session) Stage() Stage {
	switch {
	case s.Escalated:
		return StageEscalated
	case s.Completed:
		return StageComplete
	case s.AwaitingRiskInfo:
		return StageAwaitingRiskInfo
	case s.AwaitingConsent:
		return StageAwaitingConsent
	case s.DiagnosisComplete:
		return StageDiagnosed
	default:
		return StageGathering
	}
}

// Clone returns a deep copy used as the working state for one turn; the copy
// is committed back only after the full response is assembled.
func (s *Session) Clone() *Session {
	dup := *s
	dup.Turns = append([]Turn(nil), s.Turns...)
	dup.AskedQuestions = append([]string(nil), s.AskedQuestions...)
	if s.LastOutcome != nil {
		outcome := *s.LastOutcome
		outcome.Report.Candidates = append([]ConditionCandidate(nil), s.LastOutcome.Report.Candidates...)
		outcome.Report.RedFlags = append([]string(nil), s.LastOutcome.Report.RedFlags...)
		dup.LastOutcome = &outcome
	}
	return &dup
}
