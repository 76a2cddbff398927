package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PeerID is the opaque identifier the transport assigns to a connection.
type PeerID string

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// peer is the connection that sent the message.
	// It's used internally by the Router and not sent over JSON.
	peer Peer
}

// Message type constants.
const (
	// Client to server
	MessageTypeCallUser   = "call-user"
	MessageTypeMakeAnswer = "make-answer"
	MessageTypeRejectCall = "reject-call"

	// Server to client
	MessageTypeUpdateUserList = "update-user-list"
	MessageTypeCallMade       = "call-made"
	MessageTypeAnswerMade     = "answer-made"
	MessageTypeCallRejected   = "call-rejected"
	MessageTypeRemoveUser     = "remove-user"
)

var (
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// UserListPayload is sent privately to a new peer (Me set) and broadcast
// to everyone else when a peer joins (Me empty).
type UserListPayload struct {
	Me    PeerID   `json:"me,omitempty"`
	Users []PeerID `json:"users"`
}

// CallUserPayload is sent by a caller to offer a call to another peer.
type CallUserPayload struct {
	To    PeerID          `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

// CallMadePayload is what the callee receives.
// Socket duplicates From for older clients.
type CallMadePayload struct {
	From   PeerID          `json:"from"`
	To     PeerID          `json:"to"`
	Offer  json.RawMessage `json:"offer"`
	Socket PeerID          `json:"socket"`
}

// MakeAnswerPayload is sent by the callee back to the caller.
type MakeAnswerPayload struct {
	To     PeerID          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

// AnswerMadePayload is what the caller receives.
type AnswerMadePayload struct {
	From   PeerID          `json:"from"`
	To     PeerID          `json:"to"`
	Socket PeerID          `json:"socket"`
	Answer json.RawMessage `json:"answer"`
}

// RejectCallPayload is sent by the callee to decline a call.
// From names the original caller, which is where the rejection is delivered.
type RejectCallPayload struct {
	From PeerID `json:"from"`
}

// CallRejectedPayload is what the caller receives when the callee declines.
type CallRejectedPayload struct {
	From   PeerID `json:"from"`
	To     PeerID `json:"to"`
	Socket PeerID `json:"socket"`
}

// RemoveUserPayload is broadcast when a peer disconnects.
type RemoveUserPayload struct {
	SocketID PeerID `json:"socketId"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(t string, payload any) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return &Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: %w: empty payload", m.Type, ErrMalformedPayload)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: %w: %v", m.Type, ErrMalformedPayload, err)
	}
	return nil
}

// Validate reports whether a decoded inbound payload carries the fields
// required to route it.
func (p *CallUserPayload) Validate() error {
	if p.To == "" {
		return fmt.Errorf("%w: missing to", ErrMalformedPayload)
	}
	if isEmptyBlob(p.Offer) {
		return fmt.Errorf("%w: missing offer", ErrMalformedPayload)
	}
	return nil
}

func (p *MakeAnswerPayload) Validate() error {
	if p.To == "" {
		return fmt.Errorf("%w: missing to", ErrMalformedPayload)
	}
	if isEmptyBlob(p.Answer) {
		return fmt.Errorf("%w: missing answer", ErrMalformedPayload)
	}
	return nil
}

func (p *RejectCallPayload) Validate() error {
	if p.From == "" {
		return fmt.Errorf("%w: missing from", ErrMalformedPayload)
	}
	return nil
}

func isEmptyBlob(b json.RawMessage) bool {
	return len(b) == 0 || string(b) == "null"
}
