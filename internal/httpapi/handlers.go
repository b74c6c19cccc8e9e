package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/blueberrycongee/agentgate/internal/observability"
	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
	"github.com/blueberrycongee/agentgate/pkg/types"
)

type errorResponse struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	RetryAfterS *int64 `json:"retry_after,omitempty"`
}

// writeError maps a gwerrors.Error onto the HTTP status and body shape
// named in spec §6: the error kind, a short message, and — for
// rate_limited only — a retry_after hint in seconds.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, gerr *gwerrors.Error) {
	resp := errorResponse{Error: string(gerr.Kind), Message: gerr.Message}
	if gerr.Kind == gwerrors.KindRateLimited {
		secs := int64(gerr.RetryAfter.Seconds())
		resp.RetryAfterS = &secs
	}

	if gerr.Kind == gwerrors.KindInternal {
		s.loggerFor(r.Context()).Error().Str("kind", string(gerr.Kind)).Msg(gerr.Message)
	}

	writeJSON(w, gerr.HTTPStatus(), resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			s.writeError(w, r, gwerrors.Validation("request body is required"))
			return false
		}
		s.writeError(w, r, gwerrors.Validation("invalid JSON: %v", err))
		return false
	}
	return true
}

// handleGenerate serves POST /generate (spec §6).
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerationRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	identity, _ := identityFromContext(r.Context())
	req.APIKey = identity.QuotaIdentity
	if req.RequestID == "" {
		req.RequestID = observability.RequestIDFromContext(r.Context())
	}

	if err := req.Validate(s.cfg.MaxTokensCeiling); err != nil {
		s.writeError(w, r, gwerrors.Validation("%v", err))
		return
	}

	result, gerr := s.pipeline.Execute(r.Context(), &req)
	if gerr != nil {
		s.writeError(w, r, gerr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Requests []*types.GenerationRequest `json:"requests"`
}

type batchOutcome struct {
	Response *types.GenerationResult `json:"response,omitempty"`
	Error    *errorResponse          `json:"error,omitempty"`
}

type batchResponse struct {
	Responses []batchOutcome `json:"responses"`
}

// handleBatchGenerate serves POST /batch/generate (spec §6, §4.H): every
// input element produces exactly one output element in the same order,
// whether it succeeded or failed.
func (s *Server) handleBatchGenerate(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if !s.decodeRequest(w, r, &body) {
		return
	}
	if len(body.Requests) == 0 {
		s.writeError(w, r, gwerrors.Validation("requests must be non-empty"))
		return
	}

	identity, _ := identityFromContext(r.Context())

	// Validation happens here, before dispatch, same as /generate: an
	// invalid element never reaches the pipeline or consumes a semaphore
	// slot, but it still occupies its slot in the response (spec §4.H, §5
	// invariant 8: no element is ever silently dropped).
	resp := batchResponse{Responses: make([]batchOutcome, len(body.Requests))}
	toDispatch := make([]*types.GenerationRequest, 0, len(body.Requests))
	dispatchSlot := make([]int, 0, len(body.Requests))

	for i, req := range body.Requests {
		req.APIKey = identity.QuotaIdentity
		if req.RequestID == "" {
			req.RequestID = observability.GenerateRequestID()
		}
		if err := req.Validate(s.cfg.MaxTokensCeiling); err != nil {
			resp.Responses[i] = batchOutcome{Error: &errorResponse{
				Error:   string(gwerrors.KindValidation),
				Message: err.Error(),
			}}
			continue
		}
		dispatchSlot = append(dispatchSlot, i)
		toDispatch = append(toDispatch, req)
	}

	outcomes := s.batch.Execute(r.Context(), toDispatch)
	for j, o := range outcomes {
		slot := dispatchSlot[j]
		if o.Err != nil {
			er := &errorResponse{Error: string(o.Err.Kind), Message: o.Err.Message}
			if o.Err.Kind == gwerrors.KindRateLimited {
				secs := int64(o.Err.RetryAfter.Seconds())
				er.RetryAfterS = &secs
			}
			resp.Responses[slot] = batchOutcome{Error: er}
			continue
		}
		resp.Responses[slot] = batchOutcome{Response: o.Result}
	}

	writeJSON(w, http.StatusOK, resp)
}

type modelsResponse struct {
	Models map[string]string `json:"models"`
}

// handleModels serves GET /models (spec §6).
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	snapshot := s.router.Models()
	out := make(map[string]string, len(snapshot))
	for name, health := range snapshot {
		out[name] = string(health)
	}
	writeJSON(w, http.StatusOK, modelsResponse{Models: out})
}

// handleHealth serves GET /health: liveness only (spec §4.I).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.health.Live() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady serves GET /ready: backend reachability plus at least one
// resolvable model (spec §4.I).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.health.Ready(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
