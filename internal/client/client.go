package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/warpcall/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	dialer    *websocket.Dialer
	log       *slog.Logger

	incoming chan *signaling.Message
	outgoing chan *signaling.Message
	done     chan struct{}

	closeOnce sync.Once
}

// NewClient creates a new signaling client. A nil dialer uses
// websocket.DefaultDialer.
func NewClient(serverURL string, dialer *websocket.Dialer, logger *slog.Logger) *Client {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		serverURL: serverURL,
		dialer:    dialer,
		log:       logger,
		incoming:  make(chan *signaling.Message, 16),
		outgoing:  make(chan *signaling.Message, 16),
		done:      make(chan struct{}),
	}
}

// Connect establishes WebSocket connection to the server.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return NewError("parse server url", fmt.Errorf("invalid server URL: %w", err))
	}

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return NewError("connect to server", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
// The server pings; any frame, pong or message, extends the deadline.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(data string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("signaling read ended", "err", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Debug("signaling write failed", "type", message.Type, "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes payload and queues it for the server.
func (c *Client) Send(typ string, payload any) error {
	msg, err := signaling.NewMessage(typ, payload)
	if err != nil {
		return NewError("encode "+typ, err)
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return NewError("send "+typ, ErrConnectionClosed)
	}
}

// CallUser offers a call to peer to.
func (c *Client) CallUser(to signaling.PeerID, offer any) error {
	raw, err := json.Marshal(offer)
	if err != nil {
		return NewPeerError("encode offer", to, err)
	}
	return c.Send(signaling.MessageTypeCallUser, signaling.CallUserPayload{To: to, Offer: raw})
}

// MakeAnswer answers a call placed by peer to.
func (c *Client) MakeAnswer(to signaling.PeerID, answer any) error {
	raw, err := json.Marshal(answer)
	if err != nil {
		return NewPeerError("encode answer", to, err)
	}
	return c.Send(signaling.MessageTypeMakeAnswer, signaling.MakeAnswerPayload{To: to, Answer: raw})
}

// RejectCall declines a call placed by caller.
func (c *Client) RejectCall(caller signaling.PeerID) error {
	return c.Send(signaling.MessageTypeRejectCall, signaling.RejectCallPayload{From: caller})
}

// Incoming returns the channel for receiving messages. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan *signaling.Message {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
