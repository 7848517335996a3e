// Package conn implements the stateful WebSocket connection handle.
//
// A Conn adapts a Transport (the wire-level socket) into an explicit
// connect/receive/send/close surface with a validated state machine on top.
// Send and Receive are only valid while the handle is Open; everything else
// is a StateError. Close is idempotent, Connect is deliberately not.
package conn

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Conn is one server-side WebSocket connection handle.
//
// A Conn is exclusively owned by the goroutine handling its request; it holds
// no locks and must not be shared across goroutines. Connect, Receive, Send
// and Close are the only blocking points.
type Conn struct {
	id        string
	transport Transport

	state       State
	closeCode   StatusCode
	closeReason string
	released    bool

	received int64
	sent     int64
}

// New wraps transport in an Idle handle. The handle takes exclusive ownership
// of the transport and releases it exactly once, when Closed is reached.
func New(transport Transport) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		transport: transport,
		state:     StateIdle,
	}
}

// ID returns the unique identifier assigned to this connection.
func (c *Conn) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Conn) State() State { return c.state }

// CloseStatus returns the close code and reason recorded when the connection
// began closing. Meaningful only once the state is Closing or Closed.
func (c *Conn) CloseStatus() (StatusCode, string) {
	return c.closeCode, c.closeReason
}

// Stats returns the number of messages received and sent on this handle.
func (c *Conn) Stats() (received, sent int64) {
	return c.received, c.sent
}

// Connect performs the accept handshake. It is valid only from Idle; a second
// call fails with *AlreadyConnectedError rather than silently succeeding.
func (c *Conn) Connect(ctx context.Context) error {
	switch c.state {
	case StateConnecting, StateOpen:
		return &AlreadyConnectedError{State: c.state}
	case StateClosing, StateClosed:
		return &StateError{Op: "connect", State: c.state}
	}

	if err := c.transition(StateConnecting); err != nil {
		return err
	}
	if err := c.transport.Accept(ctx); err != nil {
		c.fail()
		return &IOError{Op: "connect", Err: err}
	}
	return c.transition(StateOpen)
}

// Receive blocks until a data message arrives, the peer closes, or ctx is
// done. A peer-initiated close moves the handle to Closing and returns
// *ClosedError with the peer's code and reason. Cancellation forces the
// handle to Closed and releases the transport so no half-open socket is left
// behind.
func (c *Conn) Receive(ctx context.Context) (Message, error) {
	if c.state != StateOpen {
		return Message{}, &StateError{Op: "receive", State: c.state}
	}

	msg, err := c.transport.ReadMessage(ctx)
	if err != nil {
		var closed *ClosedError
		if errors.As(err, &closed) {
			if terr := c.transition(StateClosing); terr != nil {
				return Message{}, terr
			}
			c.closeCode = closed.Code
			c.closeReason = closed.Reason
			return Message{}, closed
		}
		if ctx.Err() != nil {
			c.fail()
			return Message{}, ctx.Err()
		}
		c.fail()
		return Message{}, &IOError{Op: "receive", Err: err}
	}

	c.received++
	return msg, nil
}

// Send writes one data message. It fails fast with *StateError unless the
// handle is Open; no partial write is left pending.
func (c *Conn) Send(ctx context.Context, msg Message) error {
	if c.state != StateOpen {
		return &StateError{Op: "send", State: c.state}
	}

	if err := c.transport.WriteMessage(ctx, msg); err != nil {
		c.fail()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &IOError{Op: "send", Err: err}
	}

	c.sent++
	return nil
}

// Close performs the closing handshake. From Open or Connecting it runs the
// handshake and releases the transport. Once the handle is Closing or Closed
// it is a no-op success, so Close is always safe to call from both the
// normal-completion and error-recovery paths. From Idle it is a StateError:
// there is nothing to close.
func (c *Conn) Close(ctx context.Context, code StatusCode, reason string) error {
	switch c.state {
	case StateClosed:
		return nil
	case StateClosing:
		// Peer already initiated the handshake (observed in Receive); the
		// transport's close handler has responded. Just finish tearing down.
		if err := c.transition(StateClosed); err != nil {
			return err
		}
		c.release()
		return nil
	case StateIdle:
		return &StateError{Op: "close", State: c.state}
	}

	c.closeCode = code
	c.closeReason = reason
	if err := c.transition(StateClosing); err != nil {
		return err
	}
	if err := c.transport.CloseHandshake(ctx, code, reason); err != nil {
		c.fail()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &IOError{Op: "close", Err: err}
	}
	if err := c.transition(StateClosed); err != nil {
		return err
	}
	c.release()
	return nil
}

// transition moves the state machine along one edge, rejecting anything not
// in the transition table.
func (c *Conn) transition(to State) error {
	if !CanTransition(c.state, to) {
		return &StateError{Op: "transition to " + to.String(), State: c.state}
	}
	c.state = to
	return nil
}

// fail forces the handle to Closed after a transport failure or cancellation
// and releases the transport. Every state has an edge to Closed, so this
// cannot violate the table.
func (c *Conn) fail() {
	c.state = StateClosed
	c.release()
}

// release tears down the transport exactly once.
func (c *Conn) release() {
	if c.released {
		return
	}
	c.released = true
	// A release failure is unactionable; the socket is gone either way.
	_ = c.transport.Release()
}
