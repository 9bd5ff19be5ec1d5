package prompt

const (
	CoderSystem  = "coder.system"
	CoderExtract = "coder.extract"
	CoderReview  = "coder.review"
)

// Builtins returns a registry holding the default medical coding prompts.
func Builtins() *Registry {
	r := NewRegistry()
	for _, spec := range []Spec{
		{
			Name:        CoderSystem,
			Description: "Certified medical coder persona",
			Text: `You are a certified medical coder. Read the patient documentation and assign
ICD-10-CM diagnosis codes and, where procedures are documented, CPT codes.
Return JSON with the fields "diagnoses" and "procedures". Each entry has "code",
"description" and "rationale". Only code what the documentation supports.`,
			Tags: []string{"coding"},
		},
		{
			Name:        CoderExtract,
			Description: "First pass: initial code set. Vars: patient_id, documentation",
			Text: `Patient ID: {{patient_id}}

Patient documentation:
{{documentation}}

Produce the initial code set.`,
		},
		{
			Name:        CoderReview,
			Description: "Audit pass over the previous answer. Vars: pass, total",
			Text: `Review pass {{pass}} of {{total}}. Audit the code set above against the documentation.
Remove unsupported codes, add missing ones, correct specificity, and return the full revised JSON.`,
		},
	} {
		_ = r.Register(spec)
	}
	return r
}
