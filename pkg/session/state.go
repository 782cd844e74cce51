package session

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// session's current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// State is a session lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePending
	StateStreaming
	StateFinalizing
	StateRendered
	StateRenderFailed
	StateNoPayload
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StatePending:      "pending",
	StateStreaming:    "streaming",
	StateFinalizing:   "finalizing",
	StateRendered:     "rendered",
	StateRenderFailed: "render_failed",
	StateNoPayload:    "no_payload",
	StateFailed:       "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return StateIdle, fmt.Errorf("unknown session state %q", name)
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateRendered, StateRenderFailed, StateNoPayload, StateFailed:
		return true
	default:
		return false
	}
}

var transitions = map[State][]State{
	StateIdle:       {StatePending},
	StatePending:    {StateStreaming, StateFinalizing, StateFailed},
	StateStreaming:  {StateFinalizing, StateFailed},
	StateFinalizing: {StateRendered, StateRenderFailed, StateNoPayload},
}

func canTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
