package models

import (
	"encoding/json"
	"fmt"
)

// ConnectivityState tells the caller whether replies come from the AI session.
type ConnectivityState int

const (
	// StateUninitialized is the state before Initialize has run.
	StateUninitialized ConnectivityState = iota
	// StateActive means a remote AI session is established and healthy.
	StateActive
	// StateFallback means the rule table answers for the rest of the session.
	StateFallback
)

// String returns the wire name of the state.
func (s ConnectivityState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateFallback:
		return "fallback"
	default:
		return fmt.Sprintf("ConnectivityState(%d)", int(s))
	}
}

// ParseConnectivityState converts a wire name back into a state.
func ParseConnectivityState(s string) (ConnectivityState, error) {
	switch s {
	case "uninitialized":
		return StateUninitialized, nil
	case "active":
		return StateActive, nil
	case "fallback":
		return StateFallback, nil
	default:
		return StateUninitialized, fmt.Errorf("unknown connectivity state %q", s)
	}
}

// MarshalJSON encodes the state as its wire name.
func (s ConnectivityState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name.
func (s *ConnectivityState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseConnectivityState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
