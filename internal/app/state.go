package service

// State is the session's position in the dispatch workflow.
type State int

const (
	StateUnconfigured State = iota
	StateConfiguring
	StateConfigured
	StateAwaitingFloorChoice
	StateDispatching
	StateAssigned
)

var stateNames = [...]string{
	StateUnconfigured:        "unconfigured",
	StateConfiguring:         "configuring",
	StateConfigured:          "configured",
	StateAwaitingFloorChoice: "awaiting_floor_choice",
	StateDispatching:         "dispatching",
	StateAssigned:            "assigned",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// needsConfiguration reports whether the fleet has not been set up yet.
func (s State) needsConfiguration() bool {
	return s == StateUnconfigured || s == StateConfiguring
}
