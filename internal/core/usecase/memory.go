package usecase

import (
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

const defaultHistoryMaxTurns = 50

// appendTurn records a turn on the session, evicting the oldest entry once
// the window is full. User turns advance the gathering counter and refine
// the patient profile; eviction never touches the counter.
func appendTurn(s *domain.Session, role domain.Role, content string, maxTurns int) {
	if maxTurns <= 0 {
		maxTurns = defaultHistoryMaxTurns
	}
	if role == domain.RoleUser {
		s.UserTurns++
		refineProfile(&s.Profile, content)
	}
	s.Turns = append(s.Turns, domain.Turn{Role: role, Content: content})
	if len(s.Turns) > maxTurns {
		s.Turns = s.Turns[len(s.Turns)-maxTurns:]
	}
}

func formattedHistory(s *domain.Session) string {
	var b strings.Builder
	if s.Profile.Known() {
		b.WriteString("PATIENT PROFILE: ")
		b.WriteString(s.Profile.Describe())
		b.WriteByte('\n')
	}
	for _, turn := range s.Turns {
		b.WriteString(strings.ToUpper(string(turn.Role)))
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// symptomNarrative joins every user turn into one text used for red-flag
// scanning and retrieval query construction.
func symptomNarrative(s *domain.Session) string {
	parts := make([]string, 0, len(s.Turns))
	for _, turn := range s.Turns {
		if turn.Role == domain.RoleUser {
			parts = append(parts, turn.Content)
		}
	}
	return strings.Join(parts, " ")
}
