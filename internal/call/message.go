package call

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Data channel message types.
const (
	MessageTypeHello = "hello"
	MessageTypeReply = "reply"
)

// Message is the envelope for everything sent on the call's data channel.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// HelloPayload is the caller's greeting once the channel opens.
type HelloPayload struct {
	Text   string `msgpack:"text"`
	SentAt int64  `msgpack:"sentAt"`
}

// ReplyPayload answers a hello. EchoedAt copies the hello's SentAt so the
// caller can measure a round trip.
type ReplyPayload struct {
	Text     string `msgpack:"text"`
	EchoedAt int64  `msgpack:"echoedAt"`
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// Encode returns the wire form of m.
func (m Message) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodeMessage parses a data channel frame.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode data channel message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decode data channel message: missing type")
	}
	return m, nil
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}
