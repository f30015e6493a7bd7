package notifications

import (
	"context"
	"time"

	"murmur/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames, so inbound messages stay small.
	maxMessageSize = 4096

	sendBuffer = 256
)

// Client is one websocket connection of a user.
type Client struct {
	hub *Hub

	// ConnectionID is unique per connection, even for the same user.
	ConnectionID string
	UserID       uint

	// Conn is nil in tests that only observe Send.
	Conn *websocket.Conn

	// Send is the buffered queue of outbound frames.
	Send chan []byte

	// writerDone is closed when WritePump returns.
	writerDone chan struct{}

	connectedAt time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:          hub,
		ConnectionID: uuid.NewString(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan []byte, sendBuffer),
		writerDone:   make(chan struct{}),
		connectedAt:  time.Now(),
	}
}

// Run serves the connection until it closes. It returns only after both
// pumps have exited, so the connection is never written to afterwards.
func (c *Client) Run() {
	go c.WritePump()
	c.ReadPump()
	<-c.writerDone
}

// ReadPump drains the connection until it fails and then unregisters the
// client. Inbound payloads are ignored.
func (c *Client) ReadPump() {
	reason := "closed"
	defer func() {
		c.hub.Unregister(c, reason)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.hub.touch(context.Background(), c.UserID)
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				reason = "error"
				c.hub.log.LogError(context.Background(), c.UserID, err, "read")
			}
			return
		}
	}
}

// WritePump pumps queued frames to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. A full or closed queue drops it.
func (c *Client) TrySend(message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
		return true
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
		return false
	}
}
