package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
)

var errInvalidBody = errors.New("invalid request body")

// caseRequest is the wire shape of a patient case.
type caseRequest struct {
	PatientID     string `json:"patient_id" jsonschema:"minLength=1,description=Unique identifier for the patient."`
	Documentation string `json:"patient_documentation" jsonschema:"minLength=1,description=Detailed patient documentation."`
	MaxLoops      *int   `json:"max_loops,omitempty" jsonschema:"minimum=1,description=Maximum number of review loops."`
}

func (c caseRequest) toCase() orchestrator.Case {
	out := orchestrator.Case{PatientID: c.PatientID, Documentation: c.Documentation}
	if c.MaxLoops != nil {
		out.MaxLoops = *c.MaxLoops
	}
	return out
}

type caseValidator struct {
	schema *gojsonschema.Schema
}

func newCaseValidator() (*caseValidator, error) {
	r := &jsonschema.Reflector{DoNotReference: true, AllowAdditionalProperties: true, Anonymous: true}
	s := r.Reflect(&caseRequest{})
	s.Version = ""
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal case schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile case schema: %w", err)
	}
	return &caseValidator{schema: schema}, nil
}

// decodeCase validates raw against the case schema and decodes it.
func (v *caseValidator) decodeCase(raw []byte) (orchestrator.Case, error) {
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return orchestrator.Case{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return orchestrator.Case{}, fmt.Errorf("%w: %s", errInvalidBody, strings.Join(msgs, "; "))
	}
	var req caseRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return orchestrator.Case{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	c := req.toCase()
	if err := c.Validate(); err != nil {
		return orchestrator.Case{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return c, nil
}

// decodeCases validates a JSON array of cases. The whole batch is rejected
// when any element is invalid.
func (v *caseValidator) decodeCases(raw []byte) ([]orchestrator.Case, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of cases", errInvalidBody)
	}
	cases := make([]orchestrator.Case, 0, len(items))
	for i, item := range items {
		c, err := v.decodeCase(item)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}
