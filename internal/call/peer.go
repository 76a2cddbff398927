package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/warpcall/internal/client"
	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/logging"
)

// DataChannelLabel names the channel the caller opens.
const DataChannelLabel = "warpcall"

var (
	ErrInvalidDescription = errors.New("invalid session description")
	ErrConnectionFailed   = errors.New("peer connection failed")
)

// ICEServers builds the ICE server list from the client configuration.
func ICEServers(cfg *config.Client) []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}
	if turn := cfg.GetTURNServers(); turn != nil {
		username, password := cfg.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}
	return servers
}

// Configuration returns the pion configuration for cfg. Relay-only policy
// needs a TURN server and is chosen when asked for or when the host looks
// tunneled.
func Configuration(cfg *config.Client) webrtc.Configuration {
	policy := webrtc.ICETransportPolicyAll
	if cfg.GetTURNServers() != nil && (cfg.ForceRelay || relayRecommended()) {
		policy = webrtc.ICETransportPolicyRelay
	}
	return webrtc.Configuration{
		ICEServers:         ICEServers(cfg),
		ICETransportPolicy: policy,
	}
}

// NewPeerConnection creates a peer connection whose pion logs follow the
// level enabled on logger.
func NewPeerConnection(cfg *config.Client, logger *slog.Logger) (*webrtc.PeerConnection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	se := webrtc.SettingEngine{LoggerFactory: logging.PionLoggerFactory(os.Stderr, logger)}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(Configuration(cfg))
	if err != nil {
		return nil, client.NewError("create peer connection", err)
	}
	return pc, nil
}

// CreateOffer sets a local offer and waits for ICE gathering to finish.
// Signaling carries no trickled candidates, so the returned description
// must already hold all of them.
func CreateOffer(ctx context.Context, pc *webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, client.NewError("create offer", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, client.NewError("set local description", err)
	}
	if err := waitGathering(ctx, gathered); err != nil {
		return nil, err
	}
	return pc.LocalDescription(), nil
}

// CreateAnswer applies the remote offer and returns a complete answer.
func CreateAnswer(ctx context.Context, pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, client.NewError("set remote description", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, client.NewError("create answer", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, client.NewError("set local description", err)
	}
	if err := waitGathering(ctx, gathered); err != nil {
		return nil, err
	}
	return pc.LocalDescription(), nil
}

func waitGathering(ctx context.Context, gathered <-chan struct{}) error {
	select {
	case <-gathered:
		return nil
	case <-ctx.Done():
		return client.WrapError("gather ICE candidates", client.ErrTimeout, ctx.Err().Error())
	}
}

// ParseDescription decodes an offer or answer relayed by the server and
// checks it is of the wanted type.
func ParseDescription(raw json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, client.WrapError("parse description", ErrInvalidDescription, err.Error())
	}
	if desc.Type != want {
		return desc, client.WrapError("parse description", ErrInvalidDescription,
			fmt.Sprintf("got %s, want %s", desc.Type, want))
	}
	if desc.SDP == "" {
		return desc, client.WrapError("parse description", ErrInvalidDescription, "empty sdp")
	}
	return desc, nil
}

// watchState signals failed once the connection can no longer succeed.
func watchState(pc *webrtc.PeerConnection, failed chan<- struct{}) {
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			select {
			case failed <- struct{}{}:
			default:
			}
		}
	})
}

// send encodes and writes one message on dc.
func send(dc *webrtc.DataChannel, t string, payload any) error {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return err
	}
	b, err := msg.Encode()
	if err != nil {
		return err
	}
	return dc.Send(b)
}
