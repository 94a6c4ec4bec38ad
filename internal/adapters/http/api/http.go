// Package api serves the local status API of a running dispatch session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/liftcall/internal/adapters/http/remote"
	service "github.com/okian/liftcall/internal/app"
	"github.com/okian/liftcall/internal/domain/fleet"
	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the session implementation.
type Dependencies interface {
	View() service.View
	EnterFloor(floor int) error
	RequestElevator(ctx context.Context) (model.DispatchOutcome, error)
	BeginConfiguration() (*fleet.Form, error)
	CancelConfiguration() error
	SubmitConfiguration(ctx context.Context, form *fleet.Form) (model.ConfigureResult, error)
	Locate(ctx context.Context, id model.ElevatorID) (model.ElevatorSnapshot, error)
	Decommission(ctx context.Context, id model.ElevatorID) (string, error)
	RetryDelivery()
	PendingRequests() []model.FloorRequest
}

// Server wires HTTP routes for the status API.
type Server struct {
	healthHandler    *HealthHandler
	statusHandler    *StatusHandler
	requestHandler   *RequestHandler
	configureHandler *ConfigureHandler
	elevatorHandler  *ElevatorHandler
	retryHandler     *RetryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	log := logger.Get().Named("api")
	return &Server{
		healthHandler:    NewHealthHandler(),
		statusHandler:    NewStatusHandler(deps),
		requestHandler:   NewRequestHandler(deps, log),
		configureHandler: NewConfigureHandler(deps, log),
		elevatorHandler:  NewElevatorHandler(deps, log),
		retryHandler:     NewRetryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))
	mux.HandleFunc("/request", MetricsMiddleware(s.requestHandler.HandleRequest, "request"))
	mux.HandleFunc("/configure", MetricsMiddleware(s.configureHandler.HandleConfigure, "configure"))
	mux.HandleFunc("GET /elevators/{id}", MetricsMiddleware(s.elevatorHandler.HandleLocate, "elevator_locate"))
	mux.HandleFunc("DELETE /elevators/{id}", MetricsMiddleware(s.elevatorHandler.HandleDecommission, "elevator_decommission"))
	mux.HandleFunc("/retry", MetricsMiddleware(s.retryHandler.HandleRetry, "retry"))
}

type errorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []fieldErrorPayload `json:"fields,omitempty"`
}

type fieldErrorPayload struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeSessionError maps session and remote failures onto status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	var verrs fleet.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		resp := errorResponse{Code: "validation_failed", Message: verrs.Error()}
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, fieldErrorPayload{Index: fe.Index, Field: string(fe.Field), Message: fe.Message})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, remote.ErrElevatorNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusConflict, "not_configured", err)
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err)
	case errors.Is(err, service.ErrFloorNotServiced), errors.Is(err, service.ErrNoFloorSelected):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "closed", err)
	case errors.Is(err, remote.ErrNetwork), errors.Is(err, remote.ErrNotConfigured):
		writeError(w, http.StatusBadGateway, "remote_error", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
