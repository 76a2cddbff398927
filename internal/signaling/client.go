package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages

	// Outbound messages queued per peer before new ones are dropped.
	sendQueueSize = 256
)

// Client is a wrapper for a single websocket connection (a peer).
type Client struct {
	id       PeerID
	endpoint string

	router *Router
	conn   *websocket.Conn
	log    *slog.Logger

	// send is a buffered channel for all outbound messages.
	// The router writes to it, and WritePump reads from it and writes
	// to the websocket.
	send chan *Message

	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn for the router. endpoint names the listener the
// connection arrived on and is only used for logging.
func NewClient(id PeerID, endpoint string, router *Router, conn *websocket.Conn) *Client {
	return &Client{
		id:       id,
		endpoint: endpoint,
		router:   router,
		conn:     conn,
		log:      router.log.With("peer", id, "endpoint", endpoint),
		send:     make(chan *Message, sendQueueSize),
	}
}

func (c *Client) ID() PeerID { return c.id }

func (c *Client) Endpoint() string { return c.endpoint }

// Deliver queues msg without blocking. It reports false if the queue is full
// or the client has already been closed.
func (c *Client) Deliver(msg *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close closes the send queue, which makes WritePump send a close frame
// and exit. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Serve registers the client with the router and runs both pumps.
// It returns once the connection has been read to completion.
func (c *Client) Serve() {
	if !c.router.Connect(c) {
		c.conn.Close()
		return
	}
	go c.WritePump()
	c.ReadPump()
}

// ReadPump pumps messages from the websocket connection to the router.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	// When this function exits (e.g., connection closes), unregister the client
	defer func() {
		if !c.router.Disconnect(c) {
			c.Close()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", "err", err)
			}
			return
		}

		if !c.router.Dispatch(c, &msg) {
			return
		}
	}
}

// WritePump pumps messages from the router to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The router closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Warn("write failed", "type", message.Type, "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
