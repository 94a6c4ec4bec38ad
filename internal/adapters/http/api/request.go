package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
)

// RequestDependencies defines what POST /request needs from the session.
type RequestDependencies interface {
	EnterFloor(floor int) error
	RequestElevator(ctx context.Context) (model.DispatchOutcome, error)
}

// RequestHandler handles elevator requests.
type RequestHandler struct {
	deps RequestDependencies
	log  logger.Logger
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(deps RequestDependencies, log logger.Logger) *RequestHandler {
	return &RequestHandler{deps: deps, log: log}
}

type floorRequest struct {
	Floor *int `json:"floor"`
}

// HandleRequest handles POST /request requests.
func (h *RequestHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	const op = "api.request_elevator"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	var req floorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Floor == nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, errors.New("missing floor")))
		return
	}

	if err := h.deps.EnterFloor(*req.Floor); err != nil {
		writeSessionError(w, err)
		return
	}
	out, err := h.deps.RequestElevator(r.Context())
	if err != nil {
		h.log.Warn(r.Context(), "request failed", logger.Int("floor", *req.Floor), logger.Error(err))
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
