package api

import (
	"net/http"

	service "github.com/okian/liftcall/internal/app"
)

// StatusProvider exposes the session's display state.
type StatusProvider interface {
	View() service.View
}

// StatusHandler handles status requests.
type StatusHandler struct {
	provider StatusProvider
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(provider StatusProvider) *StatusHandler {
	return &StatusHandler{provider: provider}
}

type statusResponse struct {
	service.View
	NeedsConfiguration bool `json:"needs_configuration"`
}

// HandleStatus handles GET /status requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	v := h.provider.View()
	writeJSON(w, http.StatusOK, statusResponse{View: v, NeedsConfiguration: v.NeedsConfiguration()})
}
