package domain

// RiskConcept is one entry of the read-only risk catalogue the safety engine
// matches user text against. Description is the text that gets embedded.
type RiskConcept struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

type RiskMatch struct {
	Concept string  `json:"concept"`
	Score   float64 `json:"score"`
}

// SafetyAssessment is the result of the semantic risk scan. Degraded is set
// when the engine could not evaluate and failed closed.
type SafetyAssessment struct {
	RiskDetected bool        `json:"risk_detected"`
	Matches      []RiskMatch `json:"matches,omitempty"`
	Degraded     bool        `json:"degraded,omitempty"`
}

// DefaultRiskCatalogue returns the built-in risk concepts. Deployments can
// override the catalogue with a YAML file; the engine itself treats the
// catalogue as injected, immutable data.
func DefaultRiskCatalogue() []RiskConcept {
	return []RiskConcept{
		{Name: "vascular_infection", Description: "limb swelling with systemic infection"},
		{Name: "deep_vein_thrombosis", Description: "unilateral leg swelling with clot risk"},
		{Name: "cardiac_emergency", Description: "chest pain with possible cardiac cause"},
		{Name: "severe_infection", Description: "high persistent fever with systemic symptoms"},
		{Name: "pulmonary_embolism", Description: "sudden shortness of breath with chest discomfort and clot risk"},
		{Name: "respiratory_failure", Description: "severe breathing difficulty with low oxygen symptoms"},
		{Name: "pneumonia_sepsis", Description: "lung infection with systemic inflammatory response"},
		{Name: "acute_stroke", Description: "sudden neurological deficit with weakness or speech difficulty"},
		{Name: "intracranial_event", Description: "sudden severe headache with neurological symptoms"},
		{Name: "altered_mental_status", Description: "confusion or reduced consciousness with systemic cause"},
		{Name: "heart_failure_exacerbation", Description: "leg swelling with shortness of breath and fluid overload"},
		{Name: "aortic_dissection", Description: "sudden severe chest or back pain with vascular instability"},
		{Name: "arrhythmia_instability", Description: "palpitations with dizziness or fainting"},
		{Name: "acute_abdomen", Description: "severe abdominal pain with guarding or systemic symptoms"},
		{Name: "appendicitis_pattern", Description: "localized abdominal pain with fever and inflammation"},
		{Name: "bowel_obstruction", Description: "abdominal distension with vomiting and inability to pass stool"},
		{Name: "sepsis_pattern", Description: "systemic infection with fever and organ dysfunction symptoms"},
		{Name: "meningitis_pattern", Description: "fever with neck stiffness and altered mental status"},
		{Name: "diabetic_ketoacidosis", Description: "high blood sugar with dehydration and altered breathing"},
		{Name: "hypoglycemic_event", Description: "low blood sugar with confusion or loss of consciousness"},
		{Name: "acute_limb_ischemia", Description: "sudden limb pain with coldness and reduced circulation"},
		{Name: "compartment_syndrome", Description: "severe limb pain with swelling and neurovascular compromise"},
		{Name: "ectopic_pregnancy", Description: "early pregnancy with abdominal pain and internal bleeding risk"},
		{Name: "preeclampsia_pattern", Description: "pregnancy with high blood pressure and swelling"},
		{Name: "anaphylaxis", Description: "allergic reaction with breathing difficulty and swelling"},
		{Name: "angioedema_airway", Description: "facial or throat swelling threatening airway"},
		{Name: "internal_bleeding", Description: "unexplained weakness with signs of blood loss"},
		{Name: "gastrointestinal_bleeding", Description: "vomiting blood or black stools with weakness"},
		{Name: "shock_state", Description: "low blood pressure with dizziness and organ hypoperfusion"},
		{Name: "multi_organ_failure", Description: "systemic deterioration with multiple organ involvement"},
	}
}
