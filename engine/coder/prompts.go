package coder

import (
	"strconv"
	"strings"

	"github.com/PipeOpsHQ/medical-coder-api/prompt"
)

func (f *Factory) extractionPrompt(patientID, documentation string) (string, error) {
	return f.prompts.Execute(prompt.CoderExtract, map[string]string{
		"patient_id":    patientID,
		"documentation": strings.TrimSpace(documentation),
	})
}

func (f *Factory) reviewPrompt(pass, total int) (string, error) {
	return f.prompts.Execute(prompt.CoderReview, map[string]string{
		"pass":  strconv.Itoa(pass),
		"total": strconv.Itoa(total),
	})
}
