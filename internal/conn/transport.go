package conn

import "context"

// Transport is the wire-level collaborator the handle adapts. Implementations
// own frame encoding, control frames and the handshakes; the handle owns the
// state machine on top.
//
// ReadMessage reports a peer-initiated close by returning *ClosedError. Any
// other error is treated as a transport failure.
type Transport interface {
	// Accept performs the server-side accept handshake.
	Accept(ctx context.Context) error

	// ReadMessage blocks until a data message arrives, the peer closes, or
	// ctx is done.
	ReadMessage(ctx context.Context) (Message, error)

	// WriteMessage writes one data message.
	WriteMessage(ctx context.Context, msg Message) error

	// CloseHandshake performs the closing handshake with the given status.
	CloseHandshake(ctx context.Context, code StatusCode, reason string) error

	// Release tears down the underlying socket. It must be safe to call more
	// than once.
	Release() error
}
