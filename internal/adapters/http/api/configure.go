package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/liftcall/internal/domain/fleet"
	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
)

// ConfigureDependencies defines what POST /configure needs from the session.
type ConfigureDependencies interface {
	BeginConfiguration() (*fleet.Form, error)
	CancelConfiguration() error
	SubmitConfiguration(ctx context.Context, form *fleet.Form) (model.ConfigureResult, error)
}

// ConfigureHandler handles fleet configuration requests.
type ConfigureHandler struct {
	deps ConfigureDependencies
	log  logger.Logger
}

// NewConfigureHandler creates a new configure handler.
func NewConfigureHandler(deps ConfigureDependencies, log logger.Logger) *ConfigureHandler {
	return &ConfigureHandler{deps: deps, log: log}
}

// formField accepts a JSON string, number or array of numbers and keeps the
// raw text, so the form's own parser reports bad input per field.
type formField string

func (f *formField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = formField(s)
	case data[0] == '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		texts := make([]string, len(parts))
		for i, p := range parts {
			texts[i] = strings.Trim(string(bytes.TrimSpace(p)), `"`)
		}
		*f = formField(strings.Join(texts, ","))
	default:
		*f = formField(data)
	}
	return nil
}

type configureEntry struct {
	ID             formField `json:"id"`
	CurrentFloor   formField `json:"current_floor"`
	FloorsServiced formField `json:"floors_serviced"`
}

// HandleConfigure handles POST /configure requests. The editor is opened and
// submitted in one step; a rejected submission closes it again so the
// previous configuration stays active.
func (h *ConfigureHandler) HandleConfigure(w http.ResponseWriter, r *http.Request) {
	const op = "api.configure"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	var entries []configureEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, errors.New("no elevators given")))
		return
	}

	if _, err := h.deps.BeginConfiguration(); err != nil {
		writeSessionError(w, err)
		return
	}
	drafts := make([]fleet.Draft, len(entries))
	for i, e := range entries {
		drafts[i] = fleet.Draft{
			ID:             string(e.ID),
			CurrentFloor:   string(e.CurrentFloor),
			FloorsServiced: string(e.FloorsServiced),
		}
	}

	res, err := h.deps.SubmitConfiguration(r.Context(), fleet.NewForm(drafts...))
	if err != nil {
		if cErr := h.deps.CancelConfiguration(); cErr != nil {
			h.log.Warn(r.Context(), "failed to leave configuration", logger.Error(cErr))
		}
		h.log.Warn(r.Context(), "configuration rejected", logger.Error(err))
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
