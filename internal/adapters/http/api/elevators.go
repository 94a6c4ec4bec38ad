package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
)

// ElevatorDependencies defines what the per-elevator routes need.
type ElevatorDependencies interface {
	Locate(ctx context.Context, id model.ElevatorID) (model.ElevatorSnapshot, error)
	Decommission(ctx context.Context, id model.ElevatorID) (string, error)
}

// ElevatorHandler handles single-elevator lookups and removals.
type ElevatorHandler struct {
	deps ElevatorDependencies
	log  logger.Logger
}

// NewElevatorHandler creates a new elevator handler.
func NewElevatorHandler(deps ElevatorDependencies, log logger.Logger) *ElevatorHandler {
	return &ElevatorHandler{deps: deps, log: log}
}

type decommissionResponse struct {
	Message string `json:"message"`
}

// HandleLocate handles GET /elevators/{id} requests.
func (h *ElevatorHandler) HandleLocate(w http.ResponseWriter, r *http.Request) {
	id, ok := elevatorID(w, r)
	if !ok {
		return
	}
	snap, err := h.deps.Locate(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleDecommission handles DELETE /elevators/{id} requests.
func (h *ElevatorHandler) HandleDecommission(w http.ResponseWriter, r *http.Request) {
	id, ok := elevatorID(w, r)
	if !ok {
		return
	}
	msg, err := h.deps.Decommission(r.Context(), id)
	if err != nil {
		h.log.Warn(r.Context(), "decommission failed", logger.String("id", id.String()), logger.Error(err))
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decommissionResponse{Message: msg})
}

func elevatorID(w http.ResponseWriter, r *http.Request) (model.ElevatorID, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind("api.elevator", ErrBadRequest, nil))
		return "", false
	}
	return model.ElevatorID(id), true
}
