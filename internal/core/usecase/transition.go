package usecase

import "github.com/ayurmitra/ayurmitra/internal/core/domain"

type turnAction int

const (
	actionRecordRiskAnswer turnAction = iota
	actionConsentReply
	actionFollowUp
	actionGather
	actionDifferential
	actionDifferentialFinal
)

// decideTurnAction is the dialogue transition rule. It is a pure function
// of the session snapshot and the thresholds, evaluated after the user turn
// has been appended, in fixed priority order: risk-profile answer, remedy
// consent, post-diagnosis follow-up, then the gathering thresholds. The
// pre-diagnosis red-flag scan is not decided here; it runs inside the first
// differential attempt.
func decideTurnAction(s *domain.Session, cfg DialogueConfig) turnAction {
	switch {
	case s.AwaitingRiskInfo:
		return actionRecordRiskAnswer
	case s.AwaitingConsent:
		return actionConsentReply
	case s.DiagnosisComplete || s.Completed:
		return actionFollowUp
	case s.UserTurns < cfg.MinGatheringTurns:
		return actionGather
	case s.UserTurns == cfg.MinGatheringTurns:
		return actionDifferential
	case s.UserTurns < cfg.ExtendedGatheringTurns:
		return actionGather
	default:
		return actionDifferentialFinal
	}
}
