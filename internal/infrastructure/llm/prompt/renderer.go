// Package prompt renders dialogue response intents into generator prompts
// or fixed patient-facing replies. Keeping the wording here means the core
// state machine never changes when the voice of the assistant does.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

const consultantPersona = "You are an experienced Ayurvedic wellness consultant. You speak with patients in warm, plain language, you never overstate certainty, and you recommend in-person care for anything serious."

const remedyDisclaimer = "Please consult a qualified Ayurvedic practitioner or physician before starting any remedy, especially alongside other medication."

const farewellText = "I understand, no remedies then. Please take care of yourself, and do see an Ayurvedic practitioner or physician in person if the symptoms persist or worsen. You are welcome back any time."

const safetyDegradedText = "I'm unable to verify right now whether your situation is safe to handle in an online consultation, so I have to stop here. Please speak to a doctor, and call your local emergency number if you feel your symptoms are severe."

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

var _ ports.IntentRenderer = (*Renderer)(nil)

func (r *Renderer) Render(intent domain.ResponseIntent) (domain.RenderedResponse, error) {
	switch intent.Kind {
	case domain.IntentGathering:
		return domain.RenderedResponse{Prompt: questionPrompt(intent, false)}, nil
	case domain.IntentUncertain:
		return domain.RenderedResponse{Prompt: questionPrompt(intent, true)}, nil
	case domain.IntentDiagnosis:
		return domain.RenderedResponse{Prompt: diagnosisPrompt(intent)}, nil
	case domain.IntentUncertainFinal:
		return domain.RenderedResponse{Prompt: uncertainFinalPrompt(intent)}, nil
	case domain.IntentRemedies:
		return domain.RenderedResponse{Prompt: remediesPrompt(intent)}, nil
	case domain.IntentFollowUp:
		return domain.RenderedResponse{Prompt: followUpPrompt(intent)}, nil
	case domain.IntentRemedyConsent:
		return domain.RenderedResponse{Text: "Would you like me to suggest some gentle Ayurvedic remedies and lifestyle adjustments for this?"}, nil
	case domain.IntentRiskProfileQuestion:
		return domain.RenderedResponse{Text: intent.RiskProfileQuestion}, nil
	case domain.IntentEscalation:
		return domain.RenderedResponse{Text: escalationText(intent.EscalationReason)}, nil
	case domain.IntentSafetyAlert:
		return domain.RenderedResponse{Text: safetyAlertText(intent)}, nil
	case domain.IntentFarewell:
		return domain.RenderedResponse{Text: farewellText}, nil
	case domain.IntentNoInformation:
		return domain.RenderedResponse{Text: noInformationText(intent.RemedyCondition)}, nil
	default:
		return domain.RenderedResponse{}, fmt.Errorf("no rendering for intent %q", intent.Kind)
	}
}

func escalationText(reason string) string {
	var b strings.Builder
	b.WriteString("What you've described may need prompt, in-person medical attention, and an online consultation is not the safe place for it. Please contact a doctor or your local emergency services now.")
	if reason != "" {
		b.WriteString("\n\nWhat concerned me: ")
		b.WriteString(reason)
	}
	b.WriteString("\n\nYou can start a new session later for anything less urgent.")
	return b.String()
}

func safetyAlertText(intent domain.ResponseIntent) string {
	if intent.SafetyDegraded {
		return safetyDegradedText
	}
	names := make([]string, 0, len(intent.SafetyMatches))
	for _, match := range intent.SafetyMatches {
		names = append(names, strings.ReplaceAll(match.Concept, "_", " "))
	}
	return fmt.Sprintf(
		"Some of what you mentioned can be linked to conditions that need urgent medical review (%s). I can't safely advise on this online. Please contact a medical professional now; if the symptoms are severe, call your local emergency number.",
		strings.Join(names, ", "),
	)
}

func noInformationText(condition string) string {
	if condition != "" {
		return fmt.Sprintf("I wasn't able to find reliable guidance in my references for %s, and I'd rather not improvise. Please consult an Ayurvedic practitioner in person for this.", condition)
	}
	return "I wasn't able to find reliable guidance in my references for what you've described, and I'd rather not improvise. Please consult an Ayurvedic practitioner in person for this."
}

func questionPrompt(intent domain.ResponseIntent, uncertain bool) string {
	var b strings.Builder
	b.WriteString(consultantPersona)
	b.WriteString("\n\nYou are in the symptom-gathering phase. Read the conversation and ask ONE focused follow-up question that would most help narrow down the cause. Ask about onset, pattern, triggers, severity, or related symptoms not yet covered.\n")

	if uncertain && intent.Outcome != nil {
		b.WriteString("\nThe assessment is still uncertain. Target the question at telling these possibilities apart:\n")
		writeOutcome(&b, intent.Outcome)
	}

	writeProfile(&b, intent.Profile)
	writeHistory(&b, intent.History)
	writeContext(&b, intent.Context, "Reference passages (background for choosing the question):")

	if len(intent.AvoidQuestions) > 0 {
		b.WriteString("\nQuestions already asked. Do NOT repeat or rephrase any of them:\n")
		for _, q := range intent.AvoidQuestions {
			b.WriteString("- ")
			b.WriteString(q)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nReply with only the question, one or two sentences, no preamble.")
	return b.String()
}

func diagnosisPrompt(intent domain.ResponseIntent) string {
	var b strings.Builder
	b.WriteString(consultantPersona)
	b.WriteString("\n\nThe assessment is complete. Explain it to the patient.\n")
	writeProfile(&b, intent.Profile)
	writeHistory(&b, intent.History)
	b.WriteString("\nAssessment:\n")
	writeOutcome(&b, intent.Outcome)
	writeContext(&b, intent.Context, "Reference passages:")
	b.WriteString("\nWrite the reply: explain in plain language what the most likely imbalance is and why, mention the other possibilities briefly, and remind them this is an Ayurvedic perspective and not a medical diagnosis. Do not list remedies and do not ask any question; a consent question is appended after your reply. Under 200 words.")
	return b.String()
}

func uncertainFinalPrompt(intent domain.ResponseIntent) string {
	var b strings.Builder
	b.WriteString(consultantPersona)
	b.WriteString("\n\nYou have gathered as much as is reasonable in this conversation and the picture is still uncertain. Close the assessment honestly.\n")
	writeProfile(&b, intent.Profile)
	writeHistory(&b, intent.History)
	b.WriteString("\nBest-effort assessment (uncertain):\n")
	writeOutcome(&b, intent.Outcome)
	writeContext(&b, intent.Context, "Reference passages:")
	b.WriteString("\nWrite the reply: present the possibilities with their uncertainty stated plainly and recommend an in-person examination by an Ayurvedic practitioner or physician. Do not list remedies and do not ask any question; a consent question is appended after your reply. Under 200 words.")
	return b.String()
}

func remediesPrompt(intent domain.ResponseIntent) string {
	var b strings.Builder
	b.WriteString(consultantPersona)
	b.WriteString("\n\nThe patient agreed to receive remedy suggestions for: ")
	b.WriteString(intent.RemedyCondition)
	b.WriteString(". Their answer about pregnancy, medication and allergies is in the conversation; respect it.\n")
	writeProfile(&b, intent.Profile)
	writeHistory(&b, intent.History)
	writeContext(&b, intent.Context, "Reference passages (the ONLY permitted source of remedies):")
	fmt.Fprintf(&b, "\nSuggest at most %d remedies or practices, each supported by the passages above: name it, say how to use it, and what it helps with. Prefer gentle options first (diet, routine, common herbs). Skip anything contraindicated by the patient's answers.\n", intent.MaxRemedies)
	fmt.Fprintf(&b, "End with this exact sentence: %q", remedyDisclaimer)
	return b.String()
}

func followUpPrompt(intent domain.ResponseIntent) string {
	var b strings.Builder
	b.WriteString(consultantPersona)
	b.WriteString("\n\nThe consultation already reached its conclusion; the patient has a follow-up. Answer in final mode: do not reopen symptom gathering and do not revise the assessment.\n")
	if intent.Outcome != nil {
		b.WriteString("\nAssessment recap:\n")
		writeOutcome(&b, intent.Outcome)
	}
	writeHistory(&b, intent.History)
	b.WriteString("\nPatient's follow-up: ")
	b.WriteString(intent.UserText)
	b.WriteString("\n\nAnswer briefly and helpfully.")
	if !intent.RemediesDelivered {
		b.WriteString(" If it fits naturally, mention they can still ask for remedy suggestions for the assessment above.")
	}
	return b.String()
}

func writeProfile(b *strings.Builder, profile domain.PatientProfile) {
	if !profile.Known() {
		return
	}
	b.WriteString("\nPatient: ")
	b.WriteString(profile.Describe())
	b.WriteString("\n")
}

func writeHistory(b *strings.Builder, history string) {
	if history == "" {
		return
	}
	b.WriteString("\nConversation so far:\n")
	b.WriteString(history)
	b.WriteString("\n")
}

func writeContext(b *strings.Builder, candidates []domain.RetrievalCandidate, header string) {
	if len(candidates) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(header)
	b.WriteString("\n")
	for i, candidate := range candidates {
		chunk := candidate.Chunk
		label := chunk.Source
		if chunk.Chapter != "" {
			label += " / " + chunk.Chapter
		}
		fmt.Fprintf(b, "[%d] %s\n%s\n\n", i+1, label, chunk.Text)
	}
}

func writeOutcome(b *strings.Builder, outcome *domain.DifferentialOutcome) {
	if outcome == nil {
		return
	}
	report := outcome.Report
	fmt.Fprintf(b, "Most likely: %s (confidence %.0f%%, uncertainty %s)\n",
		report.MostLikely, report.MostLikelyConfidence*100, report.Uncertainty)
	for _, candidate := range report.Candidates {
		if candidate.Name == report.MostLikely {
			continue
		}
		fmt.Fprintf(b, "Also considered: %s (%.0f%%)\n", candidate.Name, candidate.Confidence*100)
	}
	if report.Reasoning != "" {
		fmt.Fprintf(b, "Reasoning: %s\n", report.Reasoning)
	}
}
