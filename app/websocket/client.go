package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/clickwars/clickwars/utils"
	ws "github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

// Conn is the transport surface the registry needs from a connection.
// *websocket.Conn satisfies it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client represents one live real-time connection. It is owned exclusively
// by the Registry for its lifetime; a new transport session always produces
// a new Client with a fresh id.
type Client struct {
	ID            string
	RemoteAddress string
	UserAgent     string
	ConnectedAt   time.Time

	conn Conn
	send chan Envelope
	quit chan struct{}

	mu         sync.Mutex
	subscribed bool
	isAlive    bool
	closed     bool
	lastSeenAt time.Time
}

func newClient(conn Conn, remoteAddress, userAgent string, sendBuffer int) *Client {
	if sendBuffer < 1 {
		sendBuffer = 32
	}
	now := utils.UTCNow()
	return &Client{
		ID:            uuid.NewString(),
		RemoteAddress: remoteAddress,
		UserAgent:     userAgent,
		ConnectedAt:   now,
		conn:          conn,
		send:          make(chan Envelope, sendBuffer),
		quit:          make(chan struct{}),
		subscribed:    true,
		isAlive:       true,
		lastSeenAt:    now,
	}
}

// enqueue hands a message to the write pump without blocking. A full buffer
// means the client is too slow; the message is dropped and the caller
// decides whether that matters.
func (c *Client) enqueue(env Envelope) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	select {
	case c.send <- env:
		return true
	default:
		sendDropsTotal.Inc()
		return false
	}
}

// writePump is the single writer for this connection. Serializing all sends
// through one goroutine keeps concurrent broadcast, dispatch replies, and
// shutdown notices from interleaving frames.
func (c *Client) writePump(writeTimeout time.Duration) {
	for {
		select {
		case env := <-c.send:
			data, err := json.Marshal(env)
			if err != nil {
				log.Printf("WebSocket client %s: failed to marshal %s message: %v", c.ID, env.Type, err)
				continue
			}
			if writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(utils.UTCNow().Add(writeTimeout))
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				// The read loop observes the broken transport and
				// deregisters the client; just stop writing.
				return
			}
			messagesSentTotal.WithLabelValues(env.Type).Inc()
		case <-c.quit:
			return
		}
	}
}

// shutdown stops the write pump and closes the transport. Idempotent.
func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.quit)
	_ = c.conn.Close()
}

// Subscribed reports whether the client currently receives broadcasts
func (c *Client) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

func (c *Client) setSubscribed(subscribed bool) {
	c.mu.Lock()
	c.subscribed = subscribed
	c.mu.Unlock()
}

// Alive reports whether the client acknowledged the most recent liveness probe
func (c *Client) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAlive
}

func (c *Client) setAlive(alive bool) {
	c.mu.Lock()
	c.isAlive = alive
	c.mu.Unlock()
}

// LastSeenAt returns the time of the last inbound frame or pong
func (c *Client) LastSeenAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeenAt
}

func (c *Client) markSeen() {
	c.mu.Lock()
	c.lastSeenAt = utils.UTCNow()
	c.mu.Unlock()
}
