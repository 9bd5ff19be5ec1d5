package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/PipeOpsHQ/medical-coder-api/state"
)

type wireRun struct {
	RunID     string          `json:"run_id"`
	PatientID string          `json:"patient_id"`
	Output    json.RawMessage `json:"output"`
	CreatedAt time.Time       `json:"created_at"`
}

func encodeRun(run state.RunRecord, output []byte) (string, error) {
	raw, err := json.Marshal(wireRun{
		RunID:     run.RunID,
		PatientID: run.PatientID,
		Output:    output,
		CreatedAt: run.CreatedAt.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal run: %w", err)
	}
	return string(raw), nil
}

func decodeRun(raw string) (state.RunRecord, error) {
	var w wireRun
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return state.RunRecord{}, fmt.Errorf("failed to decode run from redis: %w", err)
	}
	output, err := state.DecodeOutput(w.Output)
	if err != nil {
		return state.RunRecord{}, err
	}
	created := w.CreatedAt.UTC()
	return state.RunRecord{
		RunID:     w.RunID,
		PatientID: w.PatientID,
		Output:    output,
		CreatedAt: &created,
	}, nil
}
