package voicecall

import "encoding/json"

// State is the connection state of a call.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "connecting":
		*s = StateConnecting
	case "connected":
		*s = StateConnected
	default:
		*s = StateDisconnected
	}
	return nil
}

// canTransition reports whether the lifecycle allows moving from s to next.
// connecting -> connecting is a retry.
func (s State) canTransition(next State) bool {
	switch s {
	case StateDisconnected:
		return next == StateConnecting
	case StateConnecting:
		return next == StateConnecting || next == StateConnected || next == StateDisconnected
	case StateConnected:
		return next == StateDisconnected
	}
	return false
}
