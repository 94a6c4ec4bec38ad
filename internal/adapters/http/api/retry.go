package api

import (
	"net/http"

	service "github.com/okian/liftcall/internal/app"
	"github.com/okian/liftcall/internal/domain/model"
)

// RetryDependencies defines what POST /retry needs from the session.
type RetryDependencies interface {
	RetryDelivery()
	PendingRequests() []model.FloorRequest
	View() service.View
}

// RetryHandler re-triggers delivery of a stalled floor request.
type RetryHandler struct {
	deps RetryDependencies
}

// NewRetryHandler creates a new retry handler.
func NewRetryHandler(deps RetryDependencies) *RetryHandler {
	return &RetryHandler{deps: deps}
}

type retryResponse struct {
	QueueLine string               `json:"queue_line"`
	Pending   []model.FloorRequest `json:"pending"`
}

// HandleRetry handles POST /retry requests. Delivery runs in the background,
// so the reply only reports what was still pending when it was triggered.
func (h *RetryHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	pending := h.deps.PendingRequests()
	h.deps.RetryDelivery()
	if pending == nil {
		pending = []model.FloorRequest{}
	}
	writeJSON(w, http.StatusAccepted, retryResponse{
		QueueLine: h.deps.View().QueueLine,
		Pending:   pending,
	})
}
