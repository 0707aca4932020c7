package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

const (
	minDifferentialCandidates = 3

	degradedDifferentialUnparseable = "differential_unparseable"
	degradedSelfCheckUnparseable    = "selfcheck_unparseable"

	paddingCondition = "unspecified alternative diagnosis"
)

// DifferentialService produces a differential report and audits it with a
// second self-check pass. Unparseable model output is recovered locally via
// fixed fallbacks and surfaces as a Degraded outcome, never as an error;
// only an unavailable generator is a hard error.
type DifferentialService struct {
	generator ports.TextGenerator
}

func NewDifferentialService(generator ports.TextGenerator) *DifferentialService {
	return &DifferentialService{generator: generator}
}

func (s *DifferentialService) Run(ctx context.Context, history string, contextChunks []domain.RetrievalCandidate) (domain.DifferentialOutcome, error) {
	raw, err := s.generator.GenerateJSON(ctx, buildDifferentialPrompt(history, contextChunks))
	if err != nil {
		return domain.DifferentialOutcome{}, fmt.Errorf("generate differential: %w", err)
	}

	var outcome domain.DifferentialOutcome
	report, perr := parseDifferentialReport(raw)
	if perr != nil {
		outcome.Report = fallbackDifferentialReport()
		outcome.SelfCheck = domain.SelfCheckReport{TreatmentAllowed: false, ConfidenceCap: 0}
		outcome.Degraded = true
		outcome.DegradedReason = degradedDifferentialUnparseable
		return outcome, nil
	}
	outcome.Report = normalizeDifferentialReport(report)

	rawCheck, err := s.generator.GenerateJSON(ctx, buildSelfCheckPrompt(history, outcome.Report))
	if err != nil {
		return domain.DifferentialOutcome{}, fmt.Errorf("generate self-check: %w", err)
	}
	check, perr := parseSelfCheck(rawCheck)
	if perr != nil {
		check = conservativeSelfCheck(outcome.Report)
		outcome.Degraded = true
		outcome.DegradedReason = degradedSelfCheckUnparseable
	}
	outcome.SelfCheck = normalizeSelfCheck(check)

	composeOutcome(&outcome)
	return outcome, nil
}

// composeOutcome applies the self-check to the report: the cap can only
// lower the most-likely confidence, and a demanded escalation is made
// visible in the red flags.
func composeOutcome(o *domain.DifferentialOutcome) {
	if o.SelfCheck.ConfidenceCap < o.Report.MostLikelyConfidence {
		o.Report.MostLikelyConfidence = o.SelfCheck.ConfidenceCap
		for i := range o.Report.Candidates {
			if o.Report.Candidates[i].Name == o.Report.MostLikely &&
				o.Report.Candidates[i].Confidence > o.SelfCheck.ConfidenceCap {
				o.Report.Candidates[i].Confidence = o.SelfCheck.ConfidenceCap
			}
		}
	}
	if o.SelfCheck.RequiresEscalation && !mentionsEscalation(o.Report.RedFlags) {
		o.Report.RedFlags = append(o.Report.RedFlags, domain.EscalationAdvisedFlag)
	}
}

func mentionsEscalation(flags []string) bool {
	for _, f := range flags {
		if strings.Contains(strings.ToLower(f), "escalat") {
			return true
		}
	}
	return false
}

type differentialWire struct {
	Conditions []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"conditions"`
	MostLikely           string   `json:"most_likely"`
	MostLikelyConfidence float64  `json:"most_likely_confidence"`
	UncertaintyLevel     string   `json:"uncertainty_level"`
	RedFlags             []string `json:"red_flags"`
	Reasoning            string   `json:"reasoning"`
}

func parseDifferentialReport(raw string) (domain.DifferentialReport, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DifferentialReport{}, fmt.Errorf("empty differential response")
	}
	var wire differentialWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return domain.DifferentialReport{}, fmt.Errorf("unmarshal differential json: %w", err)
	}
	if len(wire.Conditions) == 0 && strings.TrimSpace(wire.MostLikely) == "" {
		return domain.DifferentialReport{}, fmt.Errorf("differential json carries no conditions")
	}

	report := domain.DifferentialReport{
		MostLikely:           strings.TrimSpace(wire.MostLikely),
		MostLikelyConfidence: wire.MostLikelyConfidence,
		Uncertainty:          domain.UncertaintyLevel(strings.ToLower(strings.TrimSpace(wire.UncertaintyLevel))),
		RedFlags:             wire.RedFlags,
		Reasoning:            strings.TrimSpace(wire.Reasoning),
	}
	for _, c := range wire.Conditions {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		report.Candidates = append(report.Candidates, domain.ConditionCandidate{Name: name, Confidence: c.Confidence})
	}
	return report, nil
}

func normalizeDifferentialReport(report domain.DifferentialReport) domain.DifferentialReport {
	for i := range report.Candidates {
		report.Candidates[i].Confidence = clamp01(report.Candidates[i].Confidence)
	}
	for len(report.Candidates) < minDifferentialCandidates {
		report.Candidates = append(report.Candidates, domain.ConditionCandidate{Name: paddingCondition, Confidence: 0})
	}
	if report.MostLikely == "" {
		report.MostLikely = report.Candidates[0].Name
		report.MostLikelyConfidence = report.Candidates[0].Confidence
	}
	report.MostLikelyConfidence = clamp01(report.MostLikelyConfidence)
	switch report.Uncertainty {
	case domain.UncertaintyLow, domain.UncertaintyModerate, domain.UncertaintyHigh:
	default:
		report.Uncertainty = domain.UncertaintyModerate
	}

	flags := report.RedFlags[:0]
	for _, f := range report.RedFlags {
		if strings.TrimSpace(f) != "" {
			flags = append(flags, strings.TrimSpace(f))
		}
	}
	report.RedFlags = flags
	return report
}

func fallbackDifferentialReport() domain.DifferentialReport {
	return domain.DifferentialReport{
		Candidates: []domain.ConditionCandidate{
			{Name: "undetermined condition (insufficient information)", Confidence: 0},
			{Name: "undetermined condition (requires clinical evaluation)", Confidence: 0},
			{Name: "undetermined condition (requires practitioner review)", Confidence: 0},
		},
		MostLikely:           "undetermined",
		MostLikelyConfidence: 0,
		Uncertainty:          domain.UncertaintyHigh,
		Reasoning:            "differential output could not be parsed",
	}
}

type selfCheckWire struct {
	Overconfident        bool     `json:"overconfident"`
	MissingDifferentials bool     `json:"missing_differentials"`
	RequiresEscalation   bool     `json:"requires_escalation"`
	TreatmentAllowed     bool     `json:"treatment_allowed"`
	ConfidenceCap        *float64 `json:"confidence_cap"`
	Notes                string   `json:"notes"`
}

func parseSelfCheck(raw string) (domain.SelfCheckReport, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.SelfCheckReport{}, fmt.Errorf("empty self-check response")
	}
	var wire selfCheckWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return domain.SelfCheckReport{}, fmt.Errorf("unmarshal self-check json: %w", err)
	}

	check := domain.SelfCheckReport{
		Overconfident:        wire.Overconfident,
		MissingDifferentials: wire.MissingDifferentials,
		RequiresEscalation:   wire.RequiresEscalation,
		TreatmentAllowed:     wire.TreatmentAllowed,
		Notes:                strings.TrimSpace(wire.Notes),
	}
	switch {
	case wire.ConfidenceCap != nil:
		check.ConfidenceCap = *wire.ConfidenceCap
	case wire.Overconfident:
		check.ConfidenceCap = 0.5
	default:
		check.ConfidenceCap = 1.0
	}
	return check, nil
}

// conservativeSelfCheck stands in when the audit itself is unreadable: the
// diagnosis keeps at most half confidence and no treatment is released.
func conservativeSelfCheck(report domain.DifferentialReport) domain.SelfCheckReport {
	ceiling := report.MostLikelyConfidence
	if ceiling > 0.5 {
		ceiling = 0.5
	}
	return domain.SelfCheckReport{
		Overconfident:    true,
		TreatmentAllowed: false,
		ConfidenceCap:    ceiling,
		Notes:            "self-check output could not be parsed",
	}
}

func normalizeSelfCheck(check domain.SelfCheckReport) domain.SelfCheckReport {
	check.ConfidenceCap = clamp01(check.ConfidenceCap)
	return check
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func buildDifferentialPrompt(history string, contextChunks []domain.RetrievalCandidate) string {
	contextLines := make([]string, 0, len(contextChunks))
	for _, c := range contextChunks {
		label := c.Chunk.Source
		if c.Chunk.Chapter != "" {
			label += " / " + c.Chunk.Chapter
		}
		contextLines = append(contextLines, fmt.Sprintf("[%s] %s", label, strings.TrimSpace(c.Chunk.Text)))
	}
	if len(contextLines) == 0 {
		contextLines = append(contextLines, "(no reference passages retrieved)")
	}

	return fmt.Sprintf(`You are an Ayurvedic clinical assistant producing a differential diagnosis.
Return ONLY a valid JSON object with this schema:
{"conditions":[{"name":"...","confidence":0.0}],"most_likely":"...","most_likely_confidence":0.0,"uncertainty_level":"low|moderate|high","red_flags":["..."],"reasoning":"..."}

Rules:
- list at least 3 candidate conditions with confidence in [0,1]
- red_flags lists findings that need urgent in-person care, empty if none
- base every condition on the conversation and the reference passages

Reference passages:
%s

Conversation:
%s
`, strings.Join(contextLines, "\n"), history)
}

func buildSelfCheckPrompt(history string, report domain.DifferentialReport) string {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		reportJSON = []byte("{}")
	}

	return fmt.Sprintf(`You are auditing a differential diagnosis for overconfidence and safety.
Return ONLY a valid JSON object with this schema:
{"overconfident":false,"missing_differentials":false,"requires_escalation":false,"treatment_allowed":true,"confidence_cap":1.0,"notes":"..."}

Rules:
- confidence_cap is the maximum defensible confidence for the most likely condition, in [0,1]
- requires_escalation is true when the findings need urgent in-person care
- treatment_allowed is false when suggesting remedies would be unsafe

Differential under audit:
%s

Conversation:
%s
`, reportJSON, history)
}
