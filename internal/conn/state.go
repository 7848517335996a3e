package conn

import "fmt"

// State represents the lifecycle state of a WebSocket connection handle.
//
// States only move forward: Idle -> Connecting -> Open -> Closing -> Closed,
// with the shortcut edges allowed by the transition table below (for example
// a transport failure jumps straight to Closed). A handle never re-enters an
// earlier state.
type State uint8

const (
	// StateIdle is the initial state, before Connect has been called.
	StateIdle State = iota

	// StateConnecting is in effect while the accept handshake runs.
	StateConnecting

	// StateOpen is the only state in which Send and Receive are valid.
	StateOpen

	// StateClosing is entered when a close is initiated locally or observed
	// from the peer, before the handshake completes.
	StateClosing

	// StateClosed is terminal. The transport has been released.
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// transitions is the set of legal state edges. Every mutation of Conn.state
// goes through Conn.transition, which consults this table, so an illegal
// edge is caught immediately instead of corrupting the handle.
var transitions = map[State][]State{
	StateIdle:       {StateConnecting, StateClosed},
	StateConnecting: {StateOpen, StateClosing, StateClosed},
	StateOpen:       {StateClosing, StateClosed},
	StateClosing:    {StateClosed},
	StateClosed:     {},
}

// CanTransition reports whether the edge from -> to is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
