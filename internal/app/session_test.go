package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/liftcall/internal/adapters/http/remote"
	"github.com/okian/liftcall/internal/adapters/mq/queue"
	service "github.com/okian/liftcall/internal/app"
	"github.com/okian/liftcall/internal/domain/fleet"
	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// fakeRemote is an in-memory elevator service.
type fakeRemote struct {
	mu          sync.Mutex
	fleet       model.Snapshots
	menu        []int
	assign      model.ElevatorID
	assignErr   error
	configErr   error
	requested   []int
	submitted   []model.FloorRequest
	block       map[int]chan struct{} // RequestElevator waits on these floors
	entered     chan int
	configured  []model.FleetEntry
	removeCalls []model.ElevatorID
	hold        *heldCall // the next Positions reply waits on it
}

// heldCall pauses one remote reply after its data was read.
type heldCall struct {
	entered chan struct{}
	release chan struct{}
}

func newHeldCall() *heldCall {
	return &heldCall{entered: make(chan struct{}), release: make(chan struct{})}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		assign:  "1",
		block:   map[int]chan struct{}{},
		entered: make(chan int, 16),
	}
}

func (f *fakeRemote) Positions(context.Context) (model.Snapshots, error) {
	f.mu.Lock()
	snaps, hold := f.fleet.Clone(), f.hold
	f.hold = nil
	f.mu.Unlock()

	if hold != nil {
		close(hold.entered)
		<-hold.release
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: No elevators configured", remote.ErrNotConfigured)
	}
	return snaps, nil
}

func (f *fakeRemote) Position(_ context.Context, id model.ElevatorID) (model.ElevatorSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap, ok := f.fleet.Find(id); ok {
		return snap, nil
	}
	return model.ElevatorSnapshot{}, remote.ErrElevatorNotFound
}

func (f *fakeRemote) RequestElevator(ctx context.Context, floor int) error {
	f.mu.Lock()
	f.requested = append(f.requested, floor)
	gate := f.block[floor]
	f.mu.Unlock()

	f.entered <- floor
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeRemote) AssignedElevator(context.Context, int) (model.ElevatorID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assign, f.assignErr
}

func (f *fakeRemote) SubmitUserRequest(_ context.Context, req model.FloorRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return nil
}

func (f *fakeRemote) ConfigureElevators(_ context.Context, entries []model.FleetEntry) (model.ConfigureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configErr != nil {
		return model.ConfigureResult{}, f.configErr
	}
	f.configured = entries
	f.fleet = nil
	seen := map[int]bool{}
	f.menu = nil
	for _, e := range entries {
		f.fleet = append(f.fleet, model.ElevatorSnapshot{ID: e.ID, CurrentFloor: e.CurrentFloor})
		for _, fl := range e.FloorsServiced {
			if !seen[fl] {
				seen[fl] = true
				f.menu = append(f.menu, fl)
			}
		}
	}
	return model.ConfigureResult{Message: "Elevator configuration updated", FloorsServiced: f.menu}, nil
}

func (f *fakeRemote) RemoveElevator(_ context.Context, id model.ElevatorID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, id)
	out := f.fleet[:0]
	for _, e := range f.fleet {
		if e.ID != id {
			out = append(out, e)
		}
	}
	f.fleet = out
	return fmt.Sprintf("Elevator %s removed", id), nil
}

func (f *fakeRemote) set(fn func(f *fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeRemote) requestedFloors() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.requested...)
}

func twoCarFleet() []model.FleetEntry {
	return []model.FleetEntry{
		{ID: "1", CurrentFloor: 0, FloorsServiced: []int{0, 1, 2, 3, 4, 5}},
		{ID: "2", CurrentFloor: 5, FloorsServiced: []int{0, 2, 3, 5, 7}},
	}
}

func newSession(r *fakeRemote) *service.Session {
	return service.New(r,
		service.WithPollInterval(time.Hour),
		service.WithQueueOptions(queue.WithMaxAttempts(0)),
	)
}

func directions(v service.View) map[model.ElevatorID]model.Direction {
	out := map[model.ElevatorID]model.Direction{}
	for _, e := range v.Elevators {
		out[e.ID] = e.Direction
	}
	return out
}

func TestSession_Unconfigured(t *testing.T) {
	Convey("Given a new session", t, func() {
		r := newFakeRemote()
		s := newSession(r)
		defer s.Close(context.Background())

		Convey("It should ask for configuration", func() {
			v := s.View()
			So(v.State, ShouldEqual, service.StateUnconfigured)
			So(v.NeedsConfiguration(), ShouldBeTrue)
			So(v.Outcome, ShouldBeNil)
			So(v.QueueLine, ShouldEqual, "Queue clear")
		})

		Convey("Requests and floor choices should be refused", func() {
			_, err := s.RequestElevator(context.Background())
			So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
			So(errors.Is(s.EnterFloor(3), service.ErrNotConfigured), ShouldBeTrue)
			So(r.requestedFloors(), ShouldBeEmpty)
		})

		Convey("Attach should fail while the remote has no fleet", func() {
			err := s.Attach(context.Background())
			So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
			So(s.View().State, ShouldEqual, service.StateUnconfigured)
		})
	})
}

func TestSession_Configuration(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session in the configuration editor", t, func() {
		r := newFakeRemote()
		s := newSession(r)
		defer s.Close(ctx)

		form, err := s.BeginConfiguration()
		So(err, ShouldBeNil)
		So(s.View().State, ShouldEqual, service.StateConfiguring)
		So(s.View().NeedsConfiguration(), ShouldBeTrue)

		Convey("A valid form should configure the fleet", func() {
			So(form.Set(0, fleet.FieldID, "1"), ShouldBeNil)
			So(form.Set(0, fleet.FieldCurrentFloor, "0"), ShouldBeNil)
			So(form.Set(0, fleet.FieldFloorsServiced, "0, 1, 2"), ShouldBeNil)
			i := form.Add()
			So(form.Set(i, fleet.FieldID, "2"), ShouldBeNil)
			So(form.Set(i, fleet.FieldCurrentFloor, "5"), ShouldBeNil)
			So(form.Set(i, fleet.FieldFloorsServiced, "2,5"), ShouldBeNil)

			res, err := s.SubmitConfiguration(ctx, form)
			So(err, ShouldBeNil)
			So(res.Message, ShouldEqual, "Elevator configuration updated")

			v := s.View()
			So(v.State, ShouldEqual, service.StateConfigured)
			So(v.NeedsConfiguration(), ShouldBeFalse)
			So(v.Menu, ShouldResemble, []int{0, 1, 2, 5})
			So(v.Message, ShouldEqual, "Elevator configuration updated")
			So(len(v.Elevators), ShouldEqual, 2)
		})

		Convey("An invalid form should stay in the editor", func() {
			So(form.Set(0, fleet.FieldID, "1"), ShouldBeNil)
			So(form.Set(0, fleet.FieldCurrentFloor, "0"), ShouldBeNil)
			So(form.Set(0, fleet.FieldFloorsServiced, "1,x"), ShouldBeNil)

			_, err := s.SubmitConfiguration(ctx, form)
			So(errors.Is(err, fleet.ErrValidation), ShouldBeTrue)
			So(errors.Is(err, fleet.ErrParse), ShouldBeTrue)
			So(s.View().State, ShouldEqual, service.StateConfiguring)
			So(r.configured, ShouldBeNil)
		})

		Convey("A remote failure should keep the prior state", func() {
			r.set(func(f *fakeRemote) {
				f.configErr = &remote.CallError{Call: remote.CallConfigureElevators, StatusCode: 500, Err: errors.New("boom")}
			})
			_, err := s.Configure(ctx, twoCarFleet())
			So(errors.Is(err, remote.ErrNetwork), ShouldBeTrue)
			So(s.View().State, ShouldEqual, service.StateConfiguring)
			So(s.View().Menu, ShouldBeEmpty)
		})

		Convey("An empty fleet should be refused without calling the remote", func() {
			So(form.Remove(0), ShouldBeNil)
			_, err := s.SubmitConfiguration(ctx, form)
			So(errors.Is(err, fleet.ErrValidation), ShouldBeTrue)

			_, err = s.Configure(ctx, nil)
			So(errors.Is(err, fleet.ErrValidation), ShouldBeTrue)
			So(r.configured, ShouldBeNil)

			v := s.View()
			So(v.State, ShouldEqual, service.StateConfiguring)
			So(v.NeedsConfiguration(), ShouldBeTrue)
		})

		Convey("Cancelling should return to the previous state", func() {
			So(s.CancelConfiguration(), ShouldBeNil)
			So(s.View().State, ShouldEqual, service.StateUnconfigured)
			So(errors.Is(s.CancelConfiguration(), service.ErrInvalidTransition), ShouldBeTrue)
		})

		Convey("Opening the editor twice should be refused", func() {
			_, err := s.BeginConfiguration()
			So(errors.Is(err, service.ErrInvalidTransition), ShouldBeTrue)
		})
	})
}

func TestSession_Dispatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a configured session with cars at floors 0 and 5", t, func() {
		r := newFakeRemote()
		s := newSession(r)
		defer s.Close(ctx)

		_, err := s.Configure(ctx, twoCarFleet())
		So(err, ShouldBeNil)

		Convey("Requesting floor 3 should show car 1 going up and car 2 going down", func() {
			So(s.SelectFloor(3), ShouldBeNil)
			So(s.View().State, ShouldEqual, service.StateAwaitingFloorChoice)

			out, err := s.RequestElevator(ctx)
			So(err, ShouldBeNil)
			So(out.AssignedElevator, ShouldEqual, model.ElevatorID("1"))
			So(out.ServiceableFloors, ShouldResemble, []int{0, 1, 2, 3, 4, 5, 7})

			v := s.View()
			So(v.State, ShouldEqual, service.StateAssigned)
			So(v.Outcome, ShouldNotBeNil)
			So(v.Outcome.AssignedElevator, ShouldEqual, model.ElevatorID("1"))
			So(directions(v), ShouldResemble, map[model.ElevatorID]model.Direction{
				"1": model.DirectionUp,
				"2": model.DirectionDown,
			})

			Convey("and the floor request should be delivered", func() {
				wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()
				So(s.WaitIdle(wctx), ShouldBeNil)
				r.mu.Lock()
				defer r.mu.Unlock()
				So(len(r.submitted), ShouldEqual, 1)
				So(r.submitted[0].Floor, ShouldEqual, 3)
			})
		})

		Convey("Manual entry should overwrite the menu choice", func() {
			So(s.SelectFloor(2), ShouldBeNil)
			So(s.EnterFloor(7), ShouldBeNil)
			So(*s.View().SelectedFloor, ShouldEqual, 7)

			_, err := s.RequestElevator(ctx)
			So(err, ShouldBeNil)
			So(r.requestedFloors(), ShouldResemble, []int{7})
		})

		Convey("A floor outside the menu should be refused", func() {
			So(errors.Is(s.SelectFloor(9), service.ErrFloorNotServiced), ShouldBeTrue)
			So(s.EnterFloor(-2), ShouldBeNil)
		})

		Convey("Requesting without a floor should be refused", func() {
			_, err := s.RequestElevator(ctx)
			So(errors.Is(err, service.ErrNoFloorSelected), ShouldBeTrue)
		})

		Convey("A failed cycle should leave the display untouched", func() {
			So(s.SelectFloor(3), ShouldBeNil)
			_, err := s.RequestElevator(ctx)
			So(err, ShouldBeNil)
			before := s.View()

			r.set(func(f *fakeRemote) {
				f.assignErr = &remote.CallError{Call: remote.CallAssignedElevator, Err: errors.New("timeout")}
			})
			So(s.SelectFloor(5), ShouldBeNil)
			_, err = s.RequestElevator(ctx)
			So(errors.Is(err, remote.ErrNetwork), ShouldBeTrue)

			after := s.View()
			So(after.State, ShouldEqual, service.StateAwaitingFloorChoice)
			So(after.Outcome, ShouldResemble, before.Outcome)
			So(after.Elevators, ShouldResemble, before.Elevators)
		})

		Convey("Polling should replace positions and keep directions relative to the target", func() {
			So(s.SelectFloor(3), ShouldBeNil)
			_, err := s.RequestElevator(ctx)
			So(err, ShouldBeNil)

			r.set(func(f *fakeRemote) { f.fleet[1].CurrentFloor = 3 })
			So(s.Refresh(ctx), ShouldBeNil)
			first := s.View().Elevators
			So(s.Refresh(ctx), ShouldBeNil)
			second := s.View().Elevators

			So(first.Equal(second), ShouldBeTrue)
			So(directions(s.View()), ShouldResemble, map[model.ElevatorID]model.Direction{
				"1": model.DirectionUp,
				"2": model.DirectionNone,
			})
		})

		Convey("Only the latest of overlapping cycles should update the display", func() {
			gate := make(chan struct{})
			r.set(func(f *fakeRemote) { f.block[5] = gate })

			So(s.EnterFloor(5), ShouldBeNil)
			first := make(chan error, 1)
			go func() {
				_, err := s.RequestElevator(ctx)
				first <- err
			}()
			So(<-r.entered, ShouldEqual, 5)

			So(s.EnterFloor(1), ShouldBeNil)
			_, err := s.RequestElevator(ctx)
			So(err, ShouldBeNil)
			So(<-r.entered, ShouldEqual, 1)

			close(gate)
			So(<-first, ShouldBeNil)

			v := s.View()
			So(v.State, ShouldEqual, service.StateAssigned)
			So(directions(v), ShouldResemble, map[model.ElevatorID]model.Direction{
				"1": model.DirectionUp,
				"2": model.DirectionDown,
			})
		})
	})
}

func TestSession_Close(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session with a dispatch in flight", t, func() {
		r := newFakeRemote()
		s := newSession(r)
		_, err := s.Configure(ctx, twoCarFleet())
		So(err, ShouldBeNil)

		r.set(func(f *fakeRemote) { f.block[3] = make(chan struct{}) })
		So(s.EnterFloor(3), ShouldBeNil)
		result := make(chan error, 1)
		go func() {
			_, err := s.RequestElevator(ctx)
			result <- err
		}()
		So(<-r.entered, ShouldEqual, 3)

		Convey("Closing should discard the late result", func() {
			So(s.Close(ctx), ShouldBeNil)
			So(errors.Is(<-result, service.ErrClosed), ShouldBeTrue)

			v := s.View()
			So(v.State, ShouldEqual, service.StateDispatching)
			So(v.Outcome, ShouldBeNil)

			So(errors.Is(s.EnterFloor(2), service.ErrClosed), ShouldBeTrue)
			_, err := s.Configure(ctx, twoCarFleet())
			So(errors.Is(err, service.ErrClosed), ShouldBeTrue)
			So(errors.Is(s.Refresh(ctx), service.ErrClosed), ShouldBeTrue)
			So(s.Close(ctx), ShouldBeNil)
		})
	})
}

func TestSession_FleetManagement(t *testing.T) {
	ctx := context.Background()

	Convey("Given a remote that already has a fleet", t, func() {
		r := newFakeRemote()
		_, _ = r.ConfigureElevators(ctx, twoCarFleet())
		s := newSession(r)
		defer s.Close(ctx)

		Convey("Attach should adopt it without a menu", func() {
			So(s.Attach(ctx), ShouldBeNil)
			v := s.View()
			So(v.State, ShouldEqual, service.StateConfigured)
			So(v.Menu, ShouldBeEmpty)
			So(len(v.Elevators), ShouldEqual, 2)
		})

		Convey("Locate should return one car", func() {
			snap, err := s.Locate(ctx, "2")
			So(err, ShouldBeNil)
			So(snap.CurrentFloor, ShouldEqual, 5)

			_, err = s.Locate(ctx, "9")
			So(errors.Is(err, remote.ErrElevatorNotFound), ShouldBeTrue)
		})

		Convey("Decommission should refresh and unconfigure when the fleet empties", func() {
			So(s.Attach(ctx), ShouldBeNil)

			msg, err := s.Decommission(ctx, "1")
			So(err, ShouldBeNil)
			So(msg, ShouldEqual, "Elevator 1 removed")
			So(len(s.View().Elevators), ShouldEqual, 1)

			_, err = s.Decommission(ctx, "2")
			So(err, ShouldBeNil)
			v := s.View()
			So(v.State, ShouldEqual, service.StateUnconfigured)
			So(v.Elevators, ShouldBeEmpty)
		})
	})
}

func TestSession_StalePolls(t *testing.T) {
	ctx := context.Background()

	Convey("Given a configured session with a poll in flight", t, func() {
		r := newFakeRemote()
		s := newSession(r)
		defer s.Close(ctx)
		_, err := s.Configure(ctx, twoCarFleet())
		So(err, ShouldBeNil)

		hold := newHeldCall()
		r.set(func(f *fakeRemote) { f.hold = hold })
		polled := make(chan error, 1)
		go func() { polled <- s.Refresh(ctx) }()
		<-hold.entered

		Convey("Reconfiguring should win over the old fleet's positions", func() {
			_, err := s.Configure(ctx, []model.FleetEntry{{ID: "9", CurrentFloor: 4, FloorsServiced: []int{4}}})
			So(err, ShouldBeNil)
			So(s.View().Elevators, ShouldResemble, model.Snapshots{{ID: "9", CurrentFloor: 4}})

			close(hold.release)
			So(<-polled, ShouldBeNil)

			v := s.View()
			So(v.State, ShouldEqual, service.StateConfigured)
			So(v.Elevators, ShouldResemble, model.Snapshots{{ID: "9", CurrentFloor: 4}})
		})

		Convey("Emptying the fleet should not be undone by the late poll", func() {
			_, err := s.Decommission(ctx, "1")
			So(err, ShouldBeNil)
			_, err = s.Decommission(ctx, "2")
			So(err, ShouldBeNil)

			close(hold.release)
			So(<-polled, ShouldBeNil)

			v := s.View()
			So(v.State, ShouldEqual, service.StateUnconfigured)
			So(v.Elevators, ShouldBeEmpty)
			So(errors.Is(s.Refresh(ctx), service.ErrNotConfigured), ShouldBeTrue)
		})
	})
}
