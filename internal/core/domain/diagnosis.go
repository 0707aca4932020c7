package domain

type UncertaintyLevel string

const (
	UncertaintyLow      UncertaintyLevel = "low"
	UncertaintyModerate UncertaintyLevel = "moderate"
	UncertaintyHigh     UncertaintyLevel = "high"
)

type ConditionCandidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// DifferentialReport is the parsed, normalized differential diagnosis.
// Candidates always holds at least three entries after normalization and
// every confidence is clamped to [0,1].
type DifferentialReport struct {
	Candidates           []ConditionCandidate `json:"conditions"`
	MostLikely           string               `json:"most_likely"`
	MostLikelyConfidence float64              `json:"most_likely_confidence"`
	Uncertainty          UncertaintyLevel     `json:"uncertainty_level"`
	RedFlags             []string             `json:"red_flags,omitempty"`
	Reasoning            string               `json:"reasoning,omitempty"`
}

// SelfCheckReport is the audit of a differential report. ConfidenceCap is
// the ceiling the final confidence is lowered to; it never raises it.
type SelfCheckReport struct {
	Overconfident        bool    `json:"overconfident"`
	MissingDifferentials bool    `json:"missing_differentials"`
	RequiresEscalation   bool    `json:"requires_escalation"`
	TreatmentAllowed     bool    `json:"treatment_allowed"`
	ConfidenceCap        float64 `json:"confidence_cap"`
	Notes                string  `json:"notes,omitempty"`
}

// DifferentialOutcome is the composition of report and self-check. Degraded
// marks outcomes where a fallback was substituted for unparseable output.
type DifferentialOutcome struct {
	Report         DifferentialReport `json:"report"`
	SelfCheck      SelfCheckReport    `json:"self_check"`
	Degraded       bool               `json:"degraded,omitempty"`
	DegradedReason string             `json:"degraded_reason,omitempty"`
}

func (o *DifferentialOutcome) NeedsEscalation() bool {
	return len(o.Report.RedFlags) > 0 || o.SelfCheck.RequiresEscalation
}

// EscalationAdvisedFlag is appended to a report's red flags when only the
// self-check audit demanded escalation, so the trigger stays visible in the
// report itself.
const EscalationAdvisedFlag = "escalation advised by self-check"

// EscalationSource attributes an escalation to the differential's own red
// flags or, when every flag is the advisory marker, to the self-check audit.
func (o *DifferentialOutcome) EscalationSource() AlertSource {
	for _, flag := range o.Report.RedFlags {
		if flag != EscalationAdvisedFlag {
			return AlertSourceDifferential
		}
	}
	return AlertSourceSelfCheck
}
