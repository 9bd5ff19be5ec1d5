package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type RunRecord struct {
	RunID     string         `json:"run_id"`
	PatientID string         `json:"patient_id"`
	Output    map[string]any `json:"output"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

// Validate checks the fields every backend requires before a write.
func (r RunRecord) Validate() error {
	if strings.TrimSpace(r.RunID) == "" {
		return fmt.Errorf("run_id is required")
	}
	if strings.TrimSpace(r.PatientID) == "" {
		return fmt.Errorf("patient_id is required")
	}
	return nil
}

// EncodeOutput renders the opaque output document as JSON. A nil output is
// stored as an empty object.
func EncodeOutput(output map[string]any) ([]byte, error) {
	if output == nil {
		output = map[string]any{}
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	return raw, nil
}

func DecodeOutput(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return out, nil
}
