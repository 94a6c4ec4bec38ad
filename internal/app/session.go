// Package service implements the dispatch session: fleet configuration,
// floor selection, elevator requests and the live position display.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/liftcall/internal/adapters/http/remote"
	"github.com/okian/liftcall/internal/adapters/mq/poller"
	"github.com/okian/liftcall/internal/adapters/mq/queue"
	"github.com/okian/liftcall/internal/domain/direction"
	"github.com/okian/liftcall/internal/domain/fleet"
	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
	"github.com/okian/liftcall/pkg/metrics"
)

// Remote is the elevator service as seen by the session.
type Remote interface {
	Positions(ctx context.Context) (model.Snapshots, error)
	Position(ctx context.Context, id model.ElevatorID) (model.ElevatorSnapshot, error)
	RequestElevator(ctx context.Context, floor int) error
	AssignedElevator(ctx context.Context, floor int) (model.ElevatorID, error)
	SubmitUserRequest(ctx context.Context, req model.FloorRequest) error
	ConfigureElevators(ctx context.Context, entries []model.FleetEntry) (model.ConfigureResult, error)
	RemoveElevator(ctx context.Context, id model.ElevatorID) (string, error)
}

// View is an immutable copy of the session's display state.
type View struct {
	State         State                  `json:"state"`
	SelectedFloor *int                   `json:"selected_floor"`
	Menu          []int                  `json:"serviceable_floors"`
	Elevators     model.Snapshots        `json:"elevators"`
	Outcome       *model.DispatchOutcome `json:"outcome"`
	Message       string                 `json:"message,omitempty"`
	Queue         queue.Status           `json:"queue"`
	QueueState    string                 `json:"queue_state"`
	QueueLine     string                 `json:"queue_line"`
}

// NeedsConfiguration reports whether the user must configure a fleet before
// requesting an elevator.
func (v View) NeedsConfiguration() bool {
	return v.State.needsConfiguration()
}

// Session owns the display state of one dispatch client. All methods are safe
// for concurrent use; remote calls are never made while holding the lock.
type Session struct {
	remote     Remote
	queue      *queue.Coordinator
	poller     *poller.Poller
	queueOpts  []queue.Option
	pollerOpts []poller.Option

	mu         sync.RWMutex
	state      State
	prevState  State // restored by CancelConfiguration
	selected   *int
	target     int // floor of the committed dispatch, valid in StateAssigned
	menu       []int
	elevators  model.Snapshots
	outcome    *model.DispatchOutcome
	message    string
	generation uint64
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc

	logger logger.Logger
}

// New constructs a session talking to r. Floor requests are delivered
// through r.SubmitUserRequest by a single-flight coordinator.
func New(r Remote, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		remote: r,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Get().Named("session"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.queue = queue.New(queue.DelivererFunc(r.SubmitUserRequest),
		append([]queue.Option{queue.WithLogger(s.logger.Named("queue"))}, s.queueOpts...)...)
	s.poller = poller.New(r, nil,
		append([]poller.Option{
			poller.WithLogger(s.logger.Named("poller")),
			poller.WithGate(s.pollGate),
		}, s.pollerOpts...)...)

	metrics.UpdateSessionState(int(StateUnconfigured))
	return s
}

// BeginConfiguration enters the configuration editor and returns a form with
// one blank entry.
func (s *Session) BeginConfiguration() (*fleet.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return nil, ErrClosed
	case s.state == StateConfiguring:
		return nil, fmt.Errorf("%w: already configuring", ErrInvalidTransition)
	case s.state == StateDispatching:
		return nil, fmt.Errorf("%w: dispatch in progress", ErrInvalidTransition)
	}
	s.prevState = s.state
	s.setStateLocked(StateConfiguring)
	return fleet.NewForm(fleet.Draft{}), nil
}

// CancelConfiguration leaves the editor without changes.
func (s *Session) CancelConfiguration() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StateConfiguring {
		return fmt.Errorf("%w: not configuring", ErrInvalidTransition)
	}
	s.setStateLocked(s.prevState)
	return nil
}

// SubmitConfiguration validates form and configures the fleet. Any invalid
// field returns fleet.ValidationErrors and the editor stays open.
func (s *Session) SubmitConfiguration(ctx context.Context, form *fleet.Form) (model.ConfigureResult, error) {
	s.mu.RLock()
	closed, state := s.closed, s.state
	s.mu.RUnlock()
	if closed {
		return model.ConfigureResult{}, ErrClosed
	}
	if state != StateConfiguring {
		return model.ConfigureResult{}, fmt.Errorf("%w: not configuring", ErrInvalidTransition)
	}

	entries, errs := form.Validate()
	if len(errs) > 0 {
		metrics.RecordError("session", "validation")
		return model.ConfigureResult{}, errs
	}
	return s.Configure(ctx, entries)
}

// Configure replaces the remote fleet with entries. On success the returned
// floors become the menu and position polling starts.
func (s *Session) Configure(ctx context.Context, entries []model.FleetEntry) (model.ConfigureResult, error) {
	if s.isClosed() {
		return model.ConfigureResult{}, ErrClosed
	}
	if errs := fleet.ValidateEntries(entries); len(errs) > 0 {
		metrics.RecordError("session", "validation")
		return model.ConfigureResult{}, errs
	}

	res, err := s.remote.ConfigureElevators(ctx, entries)
	if err != nil {
		metrics.RecordError("session", "configure_failed")
		s.logger.Error(ctx, "configuration failed", logger.Error(err))
		return model.ConfigureResult{}, fmt.Errorf("configure elevators: %w", err)
	}

	snaps, perr := s.remote.Positions(ctx)
	if perr != nil {
		s.logger.Warn(ctx, "positions unavailable after configuration", logger.Error(perr))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.ConfigureResult{}, ErrClosed
	}
	s.menu = slices.Clone(res.FloorsServiced)
	s.message = res.Message
	if perr == nil {
		s.elevators = snaps
	}
	s.selected = nil
	s.outcome = nil
	s.generation++ // in-flight dispatches belong to the old fleet
	s.setStateLocked(StateConfigured)
	s.mu.Unlock()

	s.logger.Info(ctx, "elevators configured",
		logger.Int("elevators", len(entries)),
		logger.String("floors", model.FormatFloors(res.FloorsServiced)))
	s.poller.Start(s.ctx)
	return res, nil
}

// Attach adopts a fleet that is already configured on the remote service.
func (s *Session) Attach(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}

	snaps, err := s.remote.Positions(ctx)
	switch {
	case errors.Is(err, remote.ErrNotConfigured):
		return fmt.Errorf("%w: %w", ErrNotConfigured, err)
	case err != nil:
		s.logger.Error(ctx, "attach failed", logger.Error(err))
		return fmt.Errorf("fetch positions: %w", err)
	case len(snaps) == 0:
		return ErrNotConfigured
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.elevators = snaps
	if s.state.needsConfiguration() {
		s.setStateLocked(StateConfigured)
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "attached to configured fleet", logger.Int("elevators", len(snaps)))
	s.poller.Start(s.ctx)
	return nil
}

// SelectFloor picks floor from the serviceable floor menu.
func (s *Session) SelectFloor(floor int) error {
	return s.chooseFloor(floor, true)
}

// EnterFloor sets an arbitrary floor, overriding any menu choice.
func (s *Session) EnterFloor(floor int) error {
	return s.chooseFloor(floor, false)
}

func (s *Session) chooseFloor(floor int, fromMenu bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return ErrClosed
	case s.state.needsConfiguration():
		return ErrNotConfigured
	case fromMenu && !slices.Contains(s.menu, floor):
		return fmt.Errorf("%w: %d", ErrFloorNotServiced, floor)
	}
	s.selected = &floor
	s.setStateLocked(StateAwaitingFloorChoice)
	return nil
}

// RequestElevator runs one dispatch cycle for the selected floor: the request
// is queued for delivery, then the elevator request, the assignment lookup
// and a position refresh run concurrently. Only the most recently started
// cycle updates the display; earlier cycles still return their own outcome.
func (s *Session) RequestElevator(ctx context.Context) (model.DispatchOutcome, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return model.DispatchOutcome{}, ErrClosed
	case s.state.needsConfiguration():
		s.mu.Unlock()
		return model.DispatchOutcome{}, ErrNotConfigured
	case s.selected == nil:
		s.mu.Unlock()
		return model.DispatchOutcome{}, ErrNoFloorSelected
	}
	floor := *s.selected
	prior := s.state
	s.generation++
	gen := s.generation
	menu := slices.Clone(s.menu)
	s.setStateLocked(StateDispatching)
	s.mu.Unlock()

	start := time.Now()
	outcome, snaps, err := s.dispatch(ctx, floor, menu)
	latency := float64(time.Since(start).Milliseconds())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.RecordDispatchCycle(metrics.OutcomeStale, latency)
		return model.DispatchOutcome{}, ErrClosed
	}
	latest := gen == s.generation
	if err != nil {
		if latest && s.state == StateDispatching {
			s.setStateLocked(prior)
		}
		s.mu.Unlock()
		metrics.RecordDispatchCycle(metrics.OutcomeFailure, latency)
		metrics.RecordError("session", "dispatch_failed")
		s.logger.Error(ctx, "elevator request failed", logger.Int("floor", floor), logger.Error(err))
		return model.DispatchOutcome{}, fmt.Errorf("request elevator to floor %d: %w", floor, err)
	}
	if latest {
		s.elevators = direction.ResolveAll(snaps, floor)
		s.outcome = &outcome
		s.target = floor
		s.setStateLocked(StateAssigned)
	}
	s.mu.Unlock()

	if latest {
		metrics.RecordDispatchCycle(metrics.OutcomeSuccess, latency)
	} else {
		metrics.RecordDispatchCycle(metrics.OutcomeStale, latency)
		s.logger.Debug(ctx, "superseded dispatch not displayed", logger.Int("floor", floor))
	}
	s.logger.Info(ctx, "elevator assigned",
		logger.Int("floor", floor),
		logger.String("elevator", outcome.AssignedElevator.String()))
	s.poller.Start(s.ctx)
	return outcome, nil
}

func (s *Session) dispatch(ctx context.Context, floor int, menu []int) (model.DispatchOutcome, model.Snapshots, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := s.queue.Enqueue(ctx, model.NewFloorRequest(floor)); err != nil {
		return model.DispatchOutcome{}, nil, fmt.Errorf("enqueue request: %w", err)
	}

	var (
		wg                        sync.WaitGroup
		reqErr, assignErr, posErr error
		assigned                  model.ElevatorID
		snaps                     model.Snapshots
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		reqErr = s.remote.RequestElevator(ctx, floor)
	}()
	go func() {
		defer wg.Done()
		assigned, assignErr = s.remote.AssignedElevator(ctx, floor)
	}()
	go func() {
		defer wg.Done()
		snaps, posErr = s.remote.Positions(ctx)
	}()
	wg.Wait()

	if err := errors.Join(reqErr, assignErr, posErr); err != nil {
		return model.DispatchOutcome{}, nil, err
	}
	return model.DispatchOutcome{AssignedElevator: assigned, ServiceableFloors: menu}, snaps, nil
}

// pollGate binds a poll to the current generation before its fetch starts.
// Polling is skipped while there is no fleet to show.
func (s *Session) pollGate() (poller.Sink, bool) {
	s.mu.RLock()
	gen, skip := s.generation, s.closed || s.state.needsConfiguration()
	s.mu.RUnlock()
	if skip {
		return nil, false
	}
	return func(ctx context.Context, snaps model.Snapshots) {
		s.applyPositions(ctx, gen, snaps)
	}, true
}

// applyPositions commits fetched positions unless the fleet changed since
// generation gen. While an assignment is displayed, directions are
// recomputed against its floor.
func (s *Session) applyPositions(ctx context.Context, gen uint64, snaps model.Snapshots) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation || s.state.needsConfiguration() {
		metrics.RecordPoll(metrics.OutcomeStale)
		s.logger.Debug(ctx, "stale positions discarded")
		return
	}
	if s.state == StateAssigned {
		snaps = direction.ResolveAll(snaps, s.target)
	}
	s.elevators = snaps
}

// Refresh fetches positions once outside the polling schedule.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	closed, unconfigured := s.closed, s.state.needsConfiguration()
	s.mu.RUnlock()
	switch {
	case closed:
		return ErrClosed
	case unconfigured:
		return ErrNotConfigured
	}
	return s.poller.PollOnce(ctx)
}

// Locate fetches a single elevator's position.
func (s *Session) Locate(ctx context.Context, id model.ElevatorID) (model.ElevatorSnapshot, error) {
	if s.isClosed() {
		return model.ElevatorSnapshot{}, ErrClosed
	}
	snap, err := s.remote.Position(ctx, id)
	if err != nil {
		return model.ElevatorSnapshot{}, fmt.Errorf("locate elevator %s: %w", id, err)
	}

	s.mu.RLock()
	if s.state == StateAssigned {
		snap.Direction = direction.Resolve(snap, s.target)
	}
	s.mu.RUnlock()
	return snap, nil
}

// Decommission removes one elevator from the remote fleet and refreshes the
// display. Removing the last elevator returns the session to unconfigured.
func (s *Session) Decommission(ctx context.Context, id model.ElevatorID) (string, error) {
	if s.isClosed() {
		return "", ErrClosed
	}
	msg, err := s.remote.RemoveElevator(ctx, id)
	if err != nil {
		metrics.RecordError("session", "decommission_failed")
		return "", fmt.Errorf("remove elevator %s: %w", id, err)
	}
	s.logger.Info(ctx, "elevator removed", logger.String("id", id.String()))

	// Polls fetched before the removal still list the removed car.
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	snaps, err := s.remote.Positions(ctx)
	switch {
	case errors.Is(err, remote.ErrNotConfigured):
		s.mu.Lock()
		if !s.closed {
			s.elevators = nil
			s.menu = nil
			s.selected = nil
			s.outcome = nil
			s.message = ""
			s.generation++
			s.setStateLocked(StateUnconfigured)
		}
		s.mu.Unlock()
	case err != nil:
		s.logger.Warn(ctx, "positions unavailable after removal", logger.Error(err))
	default:
		s.applyPositions(ctx, gen, snaps)
	}
	return msg, nil
}

// View returns a copy of the display state.
func (s *Session) View() View {
	st := s.queue.Status()

	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		State:      s.state,
		Menu:       slices.Clone(s.menu),
		Elevators:  s.elevators.Clone(),
		Message:    s.message,
		Queue:      st,
		QueueState: st.State.String(),
		QueueLine:  st.Line(),
	}
	if s.selected != nil {
		f := *s.selected
		v.SelectedFloor = &f
	}
	if s.outcome != nil {
		o := *s.outcome
		o.ServiceableFloors = slices.Clone(o.ServiceableFloors)
		v.Outcome = &o
	}
	return v
}

// WaitIdle blocks until every queued floor request was delivered or
// abandoned.
func (s *Session) WaitIdle(ctx context.Context) error {
	return s.queue.WaitIdle(ctx)
}

// RetryDelivery redelivers a stalled floor request.
func (s *Session) RetryDelivery() {
	s.queue.Retry()
}

// PendingRequests returns the undelivered floor requests, oldest first.
func (s *Session) PendingRequests() []model.FloorRequest {
	return s.queue.Pending()
}

// Close stops polling and delivery. Results that arrive afterwards are
// discarded and every mutating call returns ErrClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.logger.Info(ctx, "closing session")
	var errs []error
	if err := s.poller.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.queue.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	metrics.UpdateSessionState(int(st))
}
