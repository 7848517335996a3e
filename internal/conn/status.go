package conn

// StatusCode is an RFC 6455 close status code.
//
// https://www.rfc-editor.org/rfc/rfc6455.html#section-7.4.1
type StatusCode int

const (
	// StatusNormalClosure indicates a normal closure, meaning that the
	// purpose for which the connection was established has been fulfilled.
	StatusNormalClosure StatusCode = 1000

	// StatusGoingAway indicates that an endpoint is "going away", such as a
	// server going down or a browser having navigated away from a page.
	StatusGoingAway StatusCode = 1001

	// StatusProtocolError indicates that an endpoint is terminating the
	// connection due to a protocol error.
	StatusProtocolError StatusCode = 1002

	// StatusUnsupportedData indicates that an endpoint is terminating the
	// connection because it has received a type of data it cannot accept.
	StatusUnsupportedData StatusCode = 1003

	// StatusNoStatusReceived is reserved and must not be sent on the wire.
	// It indicates that no status code was present in the close frame.
	StatusNoStatusReceived StatusCode = 1005

	// StatusAbnormalClosure is reserved and must not be sent on the wire.
	// It indicates the connection closed without a close frame.
	StatusAbnormalClosure StatusCode = 1006

	// StatusInvalidPayload indicates that an endpoint received data within a
	// message that was not consistent with the type of the message.
	StatusInvalidPayload StatusCode = 1007

	// StatusPolicyViolation indicates that an endpoint received a message
	// that violates its policy.
	StatusPolicyViolation StatusCode = 1008

	// StatusMessageTooBig indicates that an endpoint received a message that
	// is too big for it to process.
	StatusMessageTooBig StatusCode = 1009

	// StatusMandatoryExtension indicates that a client expected the server
	// to negotiate one or more extensions and it did not.
	StatusMandatoryExtension StatusCode = 1010

	// StatusInternalError indicates that an endpoint encountered an
	// unexpected condition that prevented it from fulfilling the request.
	StatusInternalError StatusCode = 1011
)
