package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PipeOpsHQ/medical-coder-api/history"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/batch"
	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
	"github.com/PipeOpsHQ/medical-coder-api/state"
)

const (
	detailEngine       = "An error occurred while processing the task."
	detailInternal     = "Internal server error."
	detailRunNotFound  = "Run ID not found."
	detailNoPatientRun = "No runs found for the given patient ID."
	detailNeedFilter   = "At least one query parameter (run_id or patient_id) must be provided."
)

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.validator.decodeCase(body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info().Str("patient_id", c.PatientID).Msg("starting medical coding task")
	res, err := s.cfg.Runs.SubmitRun(r.Context(), c)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.logger.Info().Str("run_id", res.RunID).Str("patient_id", c.PatientID).Msg("task completed")
	writeJSON(w, http.StatusOK, res)
}

// handleRunBatch acknowledges the batch as soon as it is scheduled. The body
// is the result collector as it stood at that moment, which is normally an
// empty array.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	cases, err := s.validator.decodeCases(body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	ack, err := s.cfg.Batches.SubmitBatch(r.Context(), cases)
	if err != nil {
		if errors.Is(err, batch.ErrClosed) {
			writeDetail(w, http.StatusServiceUnavailable, "Service is shutting down.")
			return
		}
		s.logger.Error().Err(err).Int("size", len(cases)).Msg("batch submission failed")
		writeDetail(w, http.StatusInternalServerError, detailInternal)
		return
	}
	results := ack.Results
	if results == nil {
		results = []orchestrator.Result{}
	}
	w.Header().Set("X-Batch-ID", ack.BatchID)
	w.Header().Set("X-Batch-Size", strconv.Itoa(ack.Size))
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	reporter, ok := s.cfg.Batches.(batch.StatusReporter)
	if !ok {
		writeDetail(w, http.StatusNotImplemented, "Batch status is not tracked by this dispatcher.")
		return
	}
	status, ok := reporter.Status(r.PathValue("batchID"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Batch ID not found.")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := history.Query{
		RunID:     r.URL.Query().Get("run_id"),
		PatientID: r.URL.Query().Get("patient_id"),
	}.Normalize()
	if q.RunID == "" && q.PatientID == "" {
		body, err := readBody(w, r)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &q); err != nil {
				writeDetail(w, http.StatusBadRequest, fmt.Sprintf("%v: %v", errInvalidBody, err))
				return
			}
			q = q.Normalize()
		}
	}

	records, err := s.cfg.History.QueryHistory(r.Context(), q)
	switch {
	case err == nil:
	case errors.Is(err, history.ErrBadRequest):
		writeDetail(w, http.StatusBadRequest, detailNeedFilter)
		return
	case errors.Is(err, state.ErrNotFound) && q.RunID != "":
		writeDetail(w, http.StatusNotFound, detailRunNotFound)
		return
	case errors.Is(err, state.ErrNotFound):
		writeDetail(w, http.StatusNotFound, detailNoPatientRun)
		return
	default:
		s.logger.Error().Err(err).Msg("history query failed")
		writeDetail(w, http.StatusInternalServerError, detailInternal)
		return
	}
	if q.RunID != "" {
		writeJSON(w, http.StatusOK, records[0])
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.cfg.History.ListAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list runs failed")
		writeDetail(w, http.StatusInternalServerError, detailInternal)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	var engineErr *orchestrator.EngineError
	switch {
	case errors.As(err, &engineErr):
		s.logger.Error().
			Err(engineErr.Err).
			Str("run_id", engineErr.RunID).
			Str("patient_id", engineErr.PatientID).
			Str("stage", engineErr.Stage).
			Msg("error occurred while running the task")
		writeDetail(w, http.StatusInternalServerError, detailEngine)
	case errors.Is(err, orchestrator.ErrInvalidCase):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, state.ErrConflict):
		s.logger.Error().Err(err).Msg("run id conflict, id generation is broken")
		writeDetail(w, http.StatusInternalServerError, detailEngine)
	default:
		s.logger.Error().Err(err).Msg("run failed")
		writeDetail(w, http.StatusInternalServerError, detailEngine)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
