package client

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/warpcall/internal/signaling"
)

// Open connects to serverURL, starts routing incoming messages and waits
// until the server has assigned this client an id.
func Open(ctx context.Context, serverURL string, dialer *websocket.Dialer, logger *slog.Logger) (*Client, *Handler, error) {
	c := NewClient(serverURL, dialer, logger)
	if err := c.Connect(ctx); err != nil {
		return nil, nil, err
	}

	h := NewHandler(c)
	go h.Start()

	if _, err := h.WaitReady(ctx); err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, h, nil
}

// WaitReady blocks until the private user list arrives and returns the
// id it carries.
func (h *Handler) WaitReady(ctx context.Context) (signaling.PeerID, error) {
	select {
	case id := <-h.Ready:
		return id, nil
	case <-h.Done:
		return "", NewError("wait for registration", ErrConnectionClosed)
	case <-ctx.Done():
		return "", WrapError("wait for registration", ErrTimeout, ctx.Err().Error())
	}
}
