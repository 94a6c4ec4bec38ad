// Package model contains the domain types shared by the dispatch client:
// floor requests, elevator snapshots and fleet configuration.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// ElevatorID identifies an elevator car. The remote service reports ids as
// JSON strings in some responses and JSON numbers in others.
type ElevatorID string

// UnmarshalJSON accepts both string and numeric ids.
func (id *ElevatorID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ElevatorID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("elevator id: %w", err)
	}
	*id = ElevatorID(n.String())
	return nil
}

// String returns the id.
func (id ElevatorID) String() string { return string(id) }

// FloorRequest is one occupant's request for a car at a floor.
type FloorRequest struct {
	UserID uuid.UUID
	Floor  int
}

// NewFloorRequest returns a request with a fresh random user id.
func NewFloorRequest(floor int) FloorRequest {
	return FloorRequest{UserID: uuid.New(), Floor: floor}
}

type floorRequestWire struct {
	UserID       uuid.UUID `json:"user_id"`
	FloorRequest struct {
		Floor int `json:"floor"`
	} `json:"floor_request"`
}

// MarshalJSON renders the request in the shape POST /user_request expects.
func (r FloorRequest) MarshalJSON() ([]byte, error) {
	var w floorRequestWire
	w.UserID = r.UserID
	w.FloorRequest.Floor = r.Floor
	return json.Marshal(w)
}

// UnmarshalJSON parses the POST /user_request shape.
func (r *FloorRequest) UnmarshalJSON(data []byte) error {
	var w floorRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.UserID = w.UserID
	r.Floor = w.FloorRequest.Floor
	return nil
}

// ElevatorSnapshot is one car's position and travel direction at an instant.
type ElevatorSnapshot struct {
	ID           ElevatorID `json:"id"`
	CurrentFloor int        `json:"current_floor"`
	Direction    Direction  `json:"direction"`
}

// Snapshots is a full collection of elevator snapshots, one per car.
type Snapshots []ElevatorSnapshot

// Clone returns a copy that shares no backing array with s.
func (s Snapshots) Clone() Snapshots {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// Equal reports whether both collections hold the same values in the same order.
func (s Snapshots) Equal(other Snapshots) bool {
	return slices.Equal(s, other)
}

// Find returns the snapshot for id.
func (s Snapshots) Find(id ElevatorID) (ElevatorSnapshot, bool) {
	for _, e := range s {
		if e.ID == id {
			return e, true
		}
	}
	return ElevatorSnapshot{}, false
}

// FleetEntry configures one car.
type FleetEntry struct {
	ID             ElevatorID `json:"id" yaml:"id" koanf:"id"`
	CurrentFloor   int        `json:"current_floor" yaml:"current_floor" koanf:"current_floor"`
	FloorsServiced []int      `json:"floors_serviced" yaml:"floors_serviced" koanf:"floors_serviced"`
}

// ConfigureResult is the remote service's answer to a fleet configuration.
type ConfigureResult struct {
	Message        string `json:"message"`
	FloorsServiced []int  `json:"floors_serviced"`
}

// DispatchOutcome is the result of one dispatch cycle. It is superseded by
// the next cycle.
type DispatchOutcome struct {
	AssignedElevator  ElevatorID `json:"assigned_elevator"`
	ServiceableFloors []int      `json:"serviceable_floors"`
}

// FormatFloors renders floors as "1, 2, 3".
func FormatFloors(floors []int) string {
	var b bytes.Buffer
	for i, f := range floors {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(f))
	}
	return b.String()
}
