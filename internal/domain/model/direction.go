package model

import (
	"encoding/json"
	"strings"
)

// Direction is a car's travel direction.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionNone
	DirectionUp
	DirectionDown
)

var directionNames = [...]string{
	DirectionUnknown: "unknown",
	DirectionNone:    "none",
	DirectionUp:      "up",
	DirectionDown:    "down",
}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return directionNames[DirectionUnknown]
	}
	return directionNames[d]
}

// Arrow returns a one-character indicator for terminal output.
func (d Direction) Arrow() string {
	switch d {
	case DirectionUp:
		return "↑"
	case DirectionDown:
		return "↓"
	default:
		return "-"
	}
}

// ParseDirection maps a wire value onto a Direction; anything unrecognised is unknown.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return DirectionUp
	case "down":
		return DirectionDown
	case "none":
		return DirectionNone
	default:
		return DirectionUnknown
	}
}

// MarshalJSON encodes unknown as null, matching the remote service.
func (d Direction) MarshalJSON() ([]byte, error) {
	if d == DirectionUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes null and unrecognised strings as unknown.
func (d *Direction) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DirectionUnknown
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = DirectionUnknown
		return nil //nolint:nilerr // a malformed direction never invalidates a position report
	}
	*d = ParseDirection(s)
	return nil
}
