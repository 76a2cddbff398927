package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/warpcall/internal/client"
	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

// Result describes a finished call.
type Result struct {
	Peer     signaling.PeerID
	Rejected bool
	// Text is the message received from the peer.
	Text string
	// RTT is the hello round trip, measured by the caller only.
	RTT time.Duration
}

// Signal is the signaling side of a call: a connected client and the
// handler routing its messages.
type Signal struct {
	Client  *client.Client
	Handler *client.Handler
}

// Dial calls peer to, sends text over a fresh data channel once it opens
// and waits for the peer's reply. ctx bounds the whole exchange. A declined
// call returns an error wrapping client.ErrCallRejected.
func Dial(ctx context.Context, sig Signal, cfg *config.Client, to signaling.PeerID, text string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("peer", to)

	pc, err := NewPeerConnection(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer pc.Close()

	failed := make(chan struct{}, 1)
	watchState(pc, failed)

	ordered := true
	dc, err := pc.CreateDataChannel(DataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, client.NewError("create data channel", err)
	}

	replies := make(chan ReplyPayload, 1)
	dc.OnOpen(func() {
		log.Debug("data channel open")
		if err := send(dc, MessageTypeHello, HelloPayload{Text: text, SentAt: time.Now().UnixNano()}); err != nil {
			log.Warn("failed to send hello", "err", err)
		}
	})
	dc.OnMessage(func(m webrtc.DataChannelMessage) {
		msg, err := DecodeMessage(m.Data)
		if err != nil || msg.Type != MessageTypeReply {
			log.Debug("ignoring data channel message", "err", err)
			return
		}
		var reply ReplyPayload
		if err := msg.DecodePayload(&reply); err != nil {
			log.Debug("bad reply payload", "err", err)
			return
		}
		select {
		case replies <- reply:
		default:
		}
	})

	offer, err := CreateOffer(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := sig.Client.CallUser(to, offer); err != nil {
		return nil, err
	}
	log.Debug("offer sent")

	answer, err := awaitAnswer(ctx, sig.Handler, to)
	if err != nil {
		return nil, err
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return nil, client.NewPeerError("set remote description", to, err)
	}

	for {
		select {
		case reply := <-replies:
			return &Result{
				Peer: to,
				Text: reply.Text,
				RTT:  time.Since(time.Unix(0, reply.EchoedAt)),
			}, nil
		case id := <-sig.Handler.UserRemoved:
			if id == to {
				return nil, client.NewPeerError("wait for reply", to, client.ErrPeerLeft)
			}
		case <-failed:
			return nil, client.NewPeerError("wait for reply", to, ErrConnectionFailed)
		case <-sig.Handler.Done:
			return nil, client.NewPeerError("wait for reply", to, client.ErrConnectionClosed)
		case <-ctx.Done():
			return nil, client.WrapError("wait for reply", client.ErrTimeout, ctx.Err().Error())
		}
	}
}

// awaitAnswer waits for to's answer or rejection. Messages about other
// peers are skipped.
func awaitAnswer(ctx context.Context, h *client.Handler, to signaling.PeerID) (webrtc.SessionDescription, error) {
	for {
		select {
		case made := <-h.AnswerMade:
			if made.From != to {
				continue
			}
			return ParseDescription(made.Answer, webrtc.SDPTypeAnswer)
		case rejected := <-h.CallRejected:
			if rejected.From != to {
				continue
			}
			return webrtc.SessionDescription{}, client.NewPeerError("call", to, client.ErrCallRejected)
		case id := <-h.UserRemoved:
			if id == to {
				return webrtc.SessionDescription{}, client.NewPeerError("call", to, client.ErrPeerLeft)
			}
		case <-h.Done:
			return webrtc.SessionDescription{}, client.NewPeerError("call", to, client.ErrConnectionClosed)
		case <-ctx.Done():
			return webrtc.SessionDescription{}, client.WrapError("wait for answer", client.ErrTimeout, ctx.Err().Error())
		}
	}
}
