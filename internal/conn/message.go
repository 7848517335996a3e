package conn

// MessageType distinguishes the two data frame kinds the handle carries.
// Control frames (ping, pong, close) are handled by the transport and never
// surface as messages.
type MessageType int

const (
	// TextMessage denotes a UTF-8 text message.
	TextMessage MessageType = 1

	// BinaryMessage denotes a binary message.
	BinaryMessage MessageType = 2
)

// Message is one WebSocket data message.
type Message struct {
	Type MessageType
	Data []byte
}

// Text builds a text message from s.
func Text(s string) Message {
	return Message{Type: TextMessage, Data: []byte(s)}
}

// Binary builds a binary message from data.
func Binary(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
