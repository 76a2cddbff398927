package client

import (
	"log/slog"

	"github.com/BioHazard786/warpcall/internal/signaling"
)

// PresenceKind says what changed in a PresenceEvent.
type PresenceKind int

const (
	// PresenceSnapshot is the private list received right after connecting.
	PresenceSnapshot PresenceKind = iota
	PresenceJoined
	PresenceLeft
)

// PresenceEvent reports a change to the roster.
type PresenceEvent struct {
	Kind  PresenceKind
	Me    signaling.PeerID
	Peers []signaling.PeerID
}

// Handler routes incoming signaling messages to appropriate channels.
// Channels are buffered and never closed; consumers select on Done.
// An event nobody drains once a buffer is full is dropped.
type Handler struct {
	client *Client
	log    *slog.Logger

	Roster *Roster

	Ready        chan signaling.PeerID
	Presence     chan PresenceEvent
	CallMade     chan *signaling.CallMadePayload
	AnswerMade   chan *signaling.AnswerMadePayload
	CallRejected chan *signaling.CallRejectedPayload
	UserRemoved  chan signaling.PeerID
	Done         chan struct{}
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		log:          client.log,
		Roster:       NewRoster(),
		Ready:        make(chan signaling.PeerID, 1),
		Presence:     make(chan PresenceEvent, 64),
		CallMade:     make(chan *signaling.CallMadePayload, 8),
		AnswerMade:   make(chan *signaling.AnswerMadePayload, 8),
		CallRejected: make(chan *signaling.CallRejectedPayload, 8),
		UserRemoved:  make(chan signaling.PeerID, 8),
		Done:         make(chan struct{}),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the connection closes.
func (h *Handler) Start() {
	defer close(h.Done)

	for msg := range h.client.Incoming() {
		if err := h.handle(msg); err != nil {
			h.log.Debug("ignoring signaling message", "type", msg.Type, "err", err)
		}
	}
}

func (h *Handler) handle(msg *signaling.Message) error {
	switch msg.Type {
	case signaling.MessageTypeUpdateUserList:
		var p signaling.UserListPayload
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		h.handleUserList(&p)

	case signaling.MessageTypeRemoveUser:
		var p signaling.RemoveUserPayload
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		if h.Roster.Remove(p.SocketID) {
			emit(h, h.Presence, PresenceEvent{Kind: PresenceLeft, Peers: []signaling.PeerID{p.SocketID}})
		}
		emit(h, h.UserRemoved, p.SocketID)

	case signaling.MessageTypeCallMade:
		var p signaling.CallMadePayload
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		emit(h, h.CallMade, &p)

	case signaling.MessageTypeAnswerMade:
		var p signaling.AnswerMadePayload
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		emit(h, h.AnswerMade, &p)

	case signaling.MessageTypeCallRejected:
		var p signaling.CallRejectedPayload
		if err := msg.DecodePayload(&p); err != nil {
			return err
		}
		emit(h, h.CallRejected, &p)

	default:
		return ErrUnexpectedMessage
	}
	return nil
}

func (h *Handler) handleUserList(p *signaling.UserListPayload) {
	h.Roster.Apply(p)

	if p.Me != "" {
		emit(h, h.Ready, p.Me)
		emit(h, h.Presence, PresenceEvent{Kind: PresenceSnapshot, Me: p.Me, Peers: h.Roster.Peers()})
		return
	}
	emit(h, h.Presence, PresenceEvent{Kind: PresenceJoined, Me: h.Roster.Me(), Peers: p.Users})
}

func emit[T any](h *Handler, ch chan T, v T) {
	select {
	case ch <- v:
	default:
		h.log.Debug("signaling event dropped, consumer not keeping up")
	}
}
