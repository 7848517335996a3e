package conn

import "fmt"

// StateError is returned when an operation is invalid for the handle's
// current state. It signals a programming error in the caller: the operation
// is never retried and the handle's state is left unchanged.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("websocket: %s invalid in state %q", e.Op, e.State)
}

// AlreadyConnectedError is returned by Connect when the handle has already
// begun or completed its handshake. It unwraps to a StateError so callers
// checking for the broader class still match.
//
// Connect is deliberately not idempotent: a second Connect is an error,
// unlike Close, which is safe to call twice.
type AlreadyConnectedError struct {
	State State
}

func (e *AlreadyConnectedError) Error() string {
	return fmt.Sprintf("websocket: already connected (state %q)", e.State)
}

func (e *AlreadyConnectedError) Unwrap() error {
	return &StateError{Op: "connect", State: e.State}
}

// ClosedError is returned by Receive when the peer initiates the closing
// handshake. It carries the peer's close code and reason and is an expected
// outcome, not a failure of the handle.
type ClosedError struct {
	Code   StatusCode
	Reason string
}

func (e *ClosedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket: closed by peer (code %d)", e.Code)
	}
	return fmt.Sprintf("websocket: closed by peer (code %d): %s", e.Code, e.Reason)
}

// IOError is returned when the transport fails (peer reset, network error).
// The handle is forced to Closed and the transport released before the error
// is surfaced; no retry is attempted at this layer.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("websocket: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
