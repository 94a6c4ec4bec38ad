// Package direction derives each car's travel direction relative to the
// floor an occupant is waiting on.
package direction

import "github.com/okian/liftcall/internal/domain/model"

// Resolve returns the direction a car must travel to reach target.
func Resolve(snapshot model.ElevatorSnapshot, target int) model.Direction {
	switch {
	case snapshot.CurrentFloor == target:
		return model.DirectionNone
	case snapshot.CurrentFloor < target:
		return model.DirectionUp
	default:
		return model.DirectionDown
	}
}

// ResolveAll returns a copy of snapshots with every direction recomputed
// against target. The input is not modified.
func ResolveAll(snapshots model.Snapshots, target int) model.Snapshots {
	if snapshots == nil {
		return nil
	}
	out := make(model.Snapshots, len(snapshots))
	for i, s := range snapshots {
		s.Direction = Resolve(s, target)
		out[i] = s
	}
	return out
}
