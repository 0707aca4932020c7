package domain

import "time"

type AlertSource string

const (
	AlertSourceSafetyGate   AlertSource = "safety_gate"
	AlertSourceRedFlagScan  AlertSource = "red_flag_scan"
	AlertSourceDifferential AlertSource = "differential"
	AlertSourceSelfCheck    AlertSource = "self_check"
)

// EscalationAlert is published whenever a session is steered to urgent care.
type EscalationAlert struct {
	SessionID string      `json:"session_id"`
	Source    AlertSource `json:"source"`
	Reason    string      `json:"reason"`
	Matches   []RiskMatch `json:"matches,omitempty"`
	At        time.Time   `json:"at"`
}
