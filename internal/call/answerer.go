package call

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/warpcall/internal/client"
	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

// replyGrace is how long the callee keeps the connection up after replying
// so the reply can drain before teardown.
const replyGrace = 5 * time.Second

// AnswerOptions controls how an incoming call is handled.
type AnswerOptions struct {
	// Reject declines every call.
	Reject bool
	// Accept, when set, is asked about each caller. Returning false rejects.
	Accept func(from signaling.PeerID) bool
	// Reply is sent back in response to the caller's hello.
	Reply string
}

// Answer waits for the next incoming call and handles it per opts.
func Answer(ctx context.Context, sig Signal, cfg *config.Client, opts AnswerOptions, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var made *signaling.CallMadePayload
	select {
	case made = <-sig.Handler.CallMade:
	case <-sig.Handler.Done:
		return nil, client.NewError("wait for call", client.ErrConnectionClosed)
	case <-ctx.Done():
		return nil, client.WrapError("wait for call", client.ErrTimeout, ctx.Err().Error())
	}

	from := made.Socket
	if from == "" {
		from = made.From
	}
	log := logger.With("peer", from)

	if opts.Reject || (opts.Accept != nil && !opts.Accept(from)) {
		if err := sig.Client.RejectCall(from); err != nil {
			return nil, err
		}
		log.Debug("call rejected")
		return &Result{Peer: from, Rejected: true}, nil
	}

	offer, err := ParseDescription(made.Offer, webrtc.SDPTypeOffer)
	if err != nil {
		return nil, err
	}

	pc, err := NewPeerConnection(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer pc.Close()

	failed := make(chan struct{}, 1)
	watchState(pc, failed)

	hellos := make(chan HelloPayload, 1)
	closed := make(chan struct{})
	var closeOnce sync.Once
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Debug("data channel received", "label", dc.Label())
		dc.OnClose(func() { closeOnce.Do(func() { close(closed) }) })
		dc.OnMessage(func(m webrtc.DataChannelMessage) {
			msg, err := DecodeMessage(m.Data)
			if err != nil || msg.Type != MessageTypeHello {
				log.Debug("ignoring data channel message", "err", err)
				return
			}
			var hello HelloPayload
			if err := msg.DecodePayload(&hello); err != nil {
				log.Debug("bad hello payload", "err", err)
				return
			}
			if err := send(dc, MessageTypeReply, ReplyPayload{Text: opts.Reply, EchoedAt: hello.SentAt}); err != nil {
				log.Warn("failed to send reply", "err", err)
			}
			select {
			case hellos <- hello:
			default:
			}
		})
	})

	answer, err := CreateAnswer(ctx, pc, offer)
	if err != nil {
		return nil, err
	}
	if err := sig.Client.MakeAnswer(from, answer); err != nil {
		return nil, err
	}
	log.Debug("answer sent")

	var hello HelloPayload
	for done := false; !done; {
		select {
		case hello = <-hellos:
			done = true
		case id := <-sig.Handler.UserRemoved:
			if id == from {
				return nil, client.NewPeerError("wait for hello", from, client.ErrPeerLeft)
			}
		case <-failed:
			return nil, client.NewPeerError("wait for hello", from, ErrConnectionFailed)
		case <-sig.Handler.Done:
			return nil, client.NewPeerError("wait for hello", from, client.ErrConnectionClosed)
		case <-ctx.Done():
			return nil, client.WrapError("wait for hello", client.ErrTimeout, ctx.Err().Error())
		}
	}

	// The caller hangs up once it has the reply.
	select {
	case <-closed:
	case <-failed:
	case <-ctx.Done():
	case <-time.After(replyGrace):
	}

	return &Result{Peer: from, Text: hello.Text}, nil
}
