// Package remote is a typed client for the remote elevator service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
	"github.com/okian/liftcall/pkg/metrics"
	"github.com/okian/liftcall/pkg/tracing"
)

// Call names, used in errors, spans and metric labels.
const (
	CallPositions          = "positions"
	CallPosition           = "position"
	CallRequestElevator    = "request_elevator"
	CallAssignedElevator   = "assigned_elevator"
	CallSubmitUserRequest  = "user_request"
	CallConfigureElevators = "configure_elevators"
	CallRemoveElevator     = "remove_elevator"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client talks JSON over HTTP to the elevator service. It is safe for
// concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     logger.Logger
}

// New returns a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: defaultTimeout,
		log:     logger.Get().Named("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.base.String() }

type floorBody struct {
	Floor int `json:"floor"`
}

type messageBody struct {
	Message string `json:"message"`
}

// Positions fetches every elevator's location.
func (c *Client) Positions(ctx context.Context) (model.Snapshots, error) {
	raw, err := c.do(ctx, CallPositions, http.MethodGet, "/elevator_locations", nil)
	if err != nil {
		return nil, err
	}
	if isObject(raw) {
		var msg messageBody
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, c.decodeErr(CallPositions, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, msg.Message)
	}
	var out model.Snapshots
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, c.decodeErr(CallPositions, err)
	}
	if out == nil {
		out = model.Snapshots{}
	}
	return out, nil
}

// Position fetches one elevator's location.
func (c *Client) Position(ctx context.Context, id model.ElevatorID) (model.ElevatorSnapshot, error) {
	raw, err := c.do(ctx, CallPosition, http.MethodGet, "/elevator_locations/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return model.ElevatorSnapshot{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.ElevatorSnapshot{}, c.decodeErr(CallPosition, err)
	}
	if _, ok := fields["current_floor"]; !ok {
		return model.ElevatorSnapshot{}, fmt.Errorf("%w: %s", ErrElevatorNotFound, id)
	}
	var snap model.ElevatorSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.ElevatorSnapshot{}, c.decodeErr(CallPosition, err)
	}
	return snap, nil
}

// RequestElevator asks the service to send a car to floor.
func (c *Client) RequestElevator(ctx context.Context, floor int) error {
	_, err := c.do(ctx, CallRequestElevator, http.MethodPost, "/request_elevator", floorBody{Floor: floor})
	return err
}

// AssignedElevator asks which car serves floor.
func (c *Client) AssignedElevator(ctx context.Context, floor int) (model.ElevatorID, error) {
	raw, err := c.do(ctx, CallAssignedElevator, http.MethodPost, "/assigned_elevator", floorBody{Floor: floor})
	if err != nil {
		return "", err
	}
	var id model.ElevatorID
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", c.decodeErr(CallAssignedElevator, err)
	}
	return id, nil
}

// SubmitUserRequest records a user's floor request.
func (c *Client) SubmitUserRequest(ctx context.Context, req model.FloorRequest) error {
	_, err := c.do(ctx, CallSubmitUserRequest, http.MethodPost, "/user_request", req)
	return err
}

// ConfigureElevators replaces the service's fleet.
func (c *Client) ConfigureElevators(ctx context.Context, fleet []model.FleetEntry) (model.ConfigureResult, error) {
	if fleet == nil {
		fleet = []model.FleetEntry{}
	}
	raw, err := c.do(ctx, CallConfigureElevators, http.MethodPost, "/configure_elevators", fleet)
	if err != nil {
		return model.ConfigureResult{}, err
	}
	var res model.ConfigureResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return model.ConfigureResult{}, c.decodeErr(CallConfigureElevators, err)
	}
	return res, nil
}

// RemoveElevator deletes one car from the service's fleet and returns the
// service message.
func (c *Client) RemoveElevator(ctx context.Context, id model.ElevatorID) (string, error) {
	raw, err := c.do(ctx, CallRemoveElevator, http.MethodDelete, "/delete_configure_elevators/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return "", err
	}
	var msg messageBody
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &msg); err != nil {
			return "", c.decodeErr(CallRemoveElevator, err)
		}
	}
	return msg.Message, nil
}

// do performs one call and returns the raw response body of a 2xx reply.
func (c *Client) do(ctx context.Context, call, method, path string, body any) (raw []byte, err error) {
	start := time.Now()
	target := c.base.JoinPath(path)

	ctx, span := tracing.StartSpan(ctx, "remote."+call, trace.SpanKindClient,
		attribute.String("http.method", method),
		attribute.String("http.url", target.String()),
	)
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
			metrics.RecordError("remote", call)
		}
		metrics.RecordRemoteCall(call, outcome, float64(time.Since(start).Milliseconds()))
		tracing.EndSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, mErr := json.Marshal(body)
		if mErr != nil {
			return nil, &CallError{Call: call, Err: fmt.Errorf("failed to marshal request body: %w", mErr)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, &CallError{Call: call, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug(ctx, "remote call failed", logger.String("call", call), logger.Error(err))
		return nil, &CallError{Call: call, Err: err}
	}
	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			c.log.Debug(ctx, "failed to close response body", logger.Error(cErr))
		}
	}()
	span.SetStatusFromHTTPCode(resp.StatusCode)

	raw, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &CallError{Call: call, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{Call: call, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(raw)))}
	}

	c.log.Debug(ctx, "remote call",
		logger.String("call", call),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", time.Since(start)))
	return raw, nil
}

func (c *Client) decodeErr(call string, err error) error {
	return &CallError{Call: call, StatusCode: http.StatusOK, Err: fmt.Errorf("failed to decode response: %w", err)}
}

func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
