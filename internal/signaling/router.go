package signaling

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"

	"github.com/BioHazard786/warpcall/internal/metrics"
)

// Router is the central brain of the signaling server.
// It owns the peer registry and decides who receives what.
type Router struct {
	registry *Registry
	metrics  *metrics.Metrics
	log      *slog.Logger

	// register, unregister and inbound feed the Run loop. They are unbuffered
	// so that events from one connection are handled in the order it sent them.
	register   chan Peer
	unregister chan Peer
	inbound    chan *Message

	// done is closed when Run returns.
	done chan struct{}
}

// NewRouter creates a Router around registry. A nil registry gets a fresh one;
// m and logger may be nil.
func NewRouter(registry *Registry, m *metrics.Metrics, logger *slog.Logger) *Router {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry:   registry,
		metrics:    m,
		log:        logger,
		register:   make(chan Peer),
		unregister: make(chan Peer),
		inbound:    make(chan *Message),
		done:       make(chan struct{}),
	}
}

// Registry returns the registry the router owns.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Connect hands a newly accepted peer to the Run loop.
// It returns false if the router has stopped.
func (r *Router) Connect(p Peer) bool {
	select {
	case r.register <- p:
		return true
	case <-r.done:
		return false
	}
}

// Disconnect tells the Run loop that p's connection is gone.
func (r *Router) Disconnect(p Peer) bool {
	select {
	case r.unregister <- p:
		return true
	case <-r.done:
		return false
	}
}

// Dispatch passes a message read from p to the Run loop.
func (r *Router) Dispatch(p Peer, msg *Message) bool {
	msg.peer = p
	select {
	case r.inbound <- msg:
		return true
	case <-r.done:
		return false
	}
}

// Run starts the router's main processing loop.
// This is the single goroutine that sequences every connect, relay and
// disconnect, so each of them is handled as one unit. It returns when ctx is done.
func (r *Router) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return

		case p := <-r.register:
			r.guard("connect", p, func() { r.HandleConnect(p) })

		case p := <-r.unregister:
			r.guard("disconnect", p, func() { r.HandleDisconnect(p) })

		case msg := <-r.inbound:
			r.guard(msg.Type, msg.peer, func() { r.HandleMessage(msg) })
		}
	}
}

// guard keeps a panic while handling one connection's event from taking
// the loop (and every other connection) down with it.
func (r *Router) guard(event string, p Peer, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.Inc(metrics.HandlerPanic)
			var id PeerID
			if p != nil {
				id = p.ID()
			}
			r.log.Error("panic in signaling handler",
				"event", event,
				"peer", id,
				"recover", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}

// HandleConnect registers p and announces it.
// The new peer gets its own id plus everyone else; everyone else learns about
// the new peer. A peer already in the registry is ignored.
func (r *Router) HandleConnect(p Peer) {
	id := p.ID()

	if r.registry.Contains(id) {
		r.metrics.Inc(metrics.DuplicateConnect)
		r.log.Warn("duplicate connect ignored", "peer", id)
		return
	}

	r.registry.Add(p)
	r.metrics.Inc(metrics.PeerConnected)

	others := r.registry.ListOthers(id)
	r.log.Info("peer connected", "peer", id, "others", len(others))

	self, err := NewMessage(MessageTypeUpdateUserList, UserListPayload{Me: id, Users: others})
	if err != nil {
		r.log.Error("failed to build user list", "peer", id, "err", err)
		return
	}
	r.deliver(p, self)

	joined, err := NewMessage(MessageTypeUpdateUserList, UserListPayload{Users: []PeerID{id}})
	if err != nil {
		r.log.Error("failed to build join notice", "peer", id, "err", err)
		return
	}
	r.broadcastExcept(id, joined)
}

// HandleDisconnect removes p and tells the remaining peers.
func (r *Router) HandleDisconnect(p Peer) {
	id := p.ID()
	defer p.Close()

	if _, ok := r.registry.Remove(id); ok {
		r.metrics.Inc(metrics.PeerDisconnected)
	}
	r.log.Info("peer disconnected", "peer", id, "remaining", r.registry.Len())

	removed, err := NewMessage(MessageTypeRemoveUser, RemoveUserPayload{SocketID: id})
	if err != nil {
		r.log.Error("failed to build removal notice", "peer", id, "err", err)
		return
	}
	r.broadcastExcept(id, removed)
}

// HandleMessage routes one relay request. The sender is always taken from
// the connection the message arrived on, never from its payload.
func (r *Router) HandleMessage(msg *Message) {
	if msg.peer == nil {
		r.log.Error("message without sender dropped", "type", msg.Type)
		return
	}
	sender := msg.peer.ID()

	var err error
	switch msg.Type {
	case MessageTypeCallUser:
		err = r.relayCall(sender, msg)
	case MessageTypeMakeAnswer:
		err = r.relayAnswer(sender, msg)
	case MessageTypeRejectCall:
		err = r.relayReject(sender, msg)
	default:
		err = ErrUnknownMessageType
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownMessageType):
		r.metrics.Inc(metrics.UnknownMessage)
		r.log.Warn("unknown message type", "peer", sender, "type", msg.Type)
	case errors.Is(err, ErrMalformedPayload):
		r.metrics.Inc(metrics.MalformedMessage)
		r.log.Warn("malformed relay request discarded", "peer", sender, "type", msg.Type, "err", err)
	default:
		r.log.Error("relay failed", "peer", sender, "type", msg.Type, "err", err)
	}
}

func (r *Router) relayCall(sender PeerID, msg *Message) error {
	var req CallUserPayload
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	out, err := NewMessage(MessageTypeCallMade, CallMadePayload{
		From:   sender,
		To:     req.To,
		Offer:  req.Offer,
		Socket: sender,
	})
	if err != nil {
		return err
	}

	r.metrics.Inc(metrics.RelayCall)
	r.sendTo(sender, req.To, out)
	return nil
}

func (r *Router) relayAnswer(sender PeerID, msg *Message) error {
	var req MakeAnswerPayload
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	out, err := NewMessage(MessageTypeAnswerMade, AnswerMadePayload{
		From:   sender,
		To:     req.To,
		Socket: sender,
		Answer: req.Answer,
	})
	if err != nil {
		return err
	}

	r.metrics.Inc(metrics.RelayAnswer)
	r.sendTo(sender, req.To, out)
	return nil
}

// relayReject delivers a rejection to the peer the request's From field
// names (the original caller). From here is a destination, not the sender.
func (r *Router) relayReject(sender PeerID, msg *Message) error {
	var req RejectCallPayload
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	out, err := NewMessage(MessageTypeCallRejected, CallRejectedPayload{
		From:   sender,
		To:     req.From,
		Socket: sender,
	})
	if err != nil {
		return err
	}

	r.metrics.Inc(metrics.RelayReject)
	r.sendTo(sender, req.From, out)
	return nil
}

// sendTo delivers msg to id. A target that is not connected, or that is
// the sender itself, is skipped silently; the sender is never told.
func (r *Router) sendTo(sender, id PeerID, msg *Message) {
	if id == sender {
		r.log.Debug("relay addressed to sender dropped", "peer", sender, "type", msg.Type)
		return
	}
	p, ok := r.registry.Get(id)
	if !ok {
		r.log.Debug("relay target not connected", "to", id, "type", msg.Type)
		return
	}
	r.deliver(p, msg)
}

func (r *Router) deliver(p Peer, msg *Message) {
	if !p.Deliver(msg) {
		r.metrics.Inc(metrics.SendDropped)
		r.log.Warn("send queue full, message dropped", "peer", p.ID(), "type", msg.Type)
	}
}

func (r *Router) broadcastExcept(id PeerID, msg *Message) {
	if dropped := r.registry.BroadcastExcept(id, msg); dropped > 0 {
		r.metrics.Add(metrics.SendDropped, uint64(dropped))
		r.log.Warn("broadcast partially dropped", "type", msg.Type, "dropped", dropped)
	}
}
