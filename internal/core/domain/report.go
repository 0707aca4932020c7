package domain

import "time"

type SessionOutcome string

const (
	OutcomeDiagnosed SessionOutcome = "diagnosed"
	OutcomeUncertain SessionOutcome = "uncertain"
	OutcomeEscalated SessionOutcome = "escalated"
	OutcomeAbandoned SessionOutcome = "abandoned"
)

// SessionReport is the evaluation record written when a session ends.
type SessionReport struct {
	ID               string           `json:"id"`
	SessionID        string           `json:"session_id"`
	StartedAt        time.Time        `json:"started_at"`
	EndedAt          time.Time        `json:"ended_at"`
	Turns            int              `json:"turns"`
	GatheringTurns   int              `json:"gathering_turns"`
	Outcome          SessionOutcome   `json:"outcome"`
	FinalDiagnosis   string           `json:"final_diagnosis,omitempty"`
	Confidence       float64          `json:"confidence,omitempty"`
	Uncertainty      UncertaintyLevel `json:"uncertainty,omitempty"`
	RedFlags         []string         `json:"red_flags,omitempty"`
	SafetyAlerts     int              `json:"safety_alerts"`
	EscalationReason string           `json:"escalation_reason,omitempty"`
	Profile          PatientProfile   `json:"profile"`
}
