// Package notifications provides real-time delivery of events to websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"murmur/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

// EventOnlineUsers carries the ascending list of online user ids.
const EventOnlineUsers = "getOnlineUsers"

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000

	publishTimeout = 2 * time.Second
)

var (
	ErrServerFull    = errors.New("server connection limit reached")
	ErrUserConnLimit = errors.New("user connection limit reached")
	ErrHubClosed     = errors.New("hub is shutting down")
)

// Frame is the JSON envelope of every realtime event.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub is the registry of live connections, keyed by user id. With Redis
// configured, publishes go through pub/sub so every instance delivers to
// its own connections, and presence is shared.
type Hub struct {
	mu     sync.RWMutex
	conns  map[uint][]*Client
	total  int
	closed bool

	notifier       *Notifier
	presence       *Presence
	reaperInterval time.Duration
	log            *observability.WSLogger
}

// NewHub creates a hub. rdb may be nil for single-instance delivery.
func NewHub(rdb *redis.Client) *Hub {
	h := &Hub{
		conns:          make(map[uint][]*Client),
		reaperInterval: defaultReaperInterval,
		log:            observability.NewWSLogger("realtime"),
	}
	if rdb != nil {
		h.notifier = NewNotifier(rdb)
		h.presence = NewPresence(rdb)
	}
	return h
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "realtime" }

// Register adds a connection for userID and broadcasts the new online set.
func (h *Hub) Register(ctx context.Context, userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	switch {
	case h.closed:
		h.mu.Unlock()
		return nil, ErrHubClosed
	case h.total >= maxTotalConns:
		h.mu.Unlock()
		return nil, ErrServerFull
	case len(h.conns[userID]) >= maxConnsPerUser:
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}

	client := newClient(h, conn, userID)
	h.conns[userID] = append(h.conns[userID], client)
	h.total++
	users := len(h.conns)
	h.mu.Unlock()

	observability.WebSocketConnections.Inc()
	observability.WebSocketOnlineUsers.Set(float64(users))
	if h.presence != nil {
		if err := h.presence.Connected(ctx, userID); err != nil {
			h.log.LogError(ctx, userID, err, "presence_connect")
		}
	}
	h.log.LogConnect(ctx, userID, client.ConnectionID)

	h.broadcastOnline(ctx)
	return client, nil
}

// Unregister removes a connection. When it was the user's last one the
// online set is broadcast again. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client, reason string) {
	h.mu.Lock()
	list := h.conns[c.UserID]
	idx := slices.Index(list, c)
	if idx < 0 {
		h.mu.Unlock()
		return
	}
	list = slices.Delete(list, idx, idx+1)
	lastGone := len(list) == 0
	if lastGone {
		delete(h.conns, c.UserID)
	} else {
		h.conns[c.UserID] = list
	}
	h.total--
	close(c.Send)
	users := len(h.conns)
	h.mu.Unlock()

	observability.WebSocketConnections.Dec()
	observability.WebSocketOnlineUsers.Set(float64(users))

	ctx := context.Background()
	wentOffline := lastGone
	if h.presence != nil {
		off, err := h.presence.Disconnected(ctx, c.UserID)
		if err != nil {
			h.log.LogError(ctx, c.UserID, err, "presence_disconnect")
		} else {
			wentOffline = off
		}
	}
	h.log.LogDisconnect(ctx, c.UserID, c.ConnectionID, reason)

	if wentOffline {
		h.broadcastOnline(ctx)
	}
}

// OnlineUsers returns the ids of connected users, ascending.
func (h *Hub) OnlineUsers(ctx context.Context) []uint {
	if h.presence != nil {
		ids, err := h.presence.Online(ctx)
		if err == nil {
			return ids
		}
		h.log.LogError(ctx, 0, err, "presence_online")
	}

	return h.localUsers()
}

func (h *Hub) localUsers() []uint {
	h.mu.RLock()
	ids := make([]uint, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// touch extends the presence lease of userID.
func (h *Hub) touch(ctx context.Context, userID uint) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Touch(ctx, userID); err != nil {
		h.log.LogError(ctx, userID, err, "presence_touch")
	}
}

// heartbeat refreshes the leases of local users, then drops users whose
// instance stopped refreshing them and broadcasts the new online set.
func (h *Hub) heartbeat(ctx context.Context) {
	for _, id := range h.localUsers() {
		h.touch(ctx, id)
	}
	removed, err := h.presence.Reap(ctx)
	if err != nil {
		h.log.LogError(ctx, 0, err, "presence_reap")
		return
	}
	if removed > 0 {
		h.log.LogLifecycle(ctx, "presence_reaped", map[string]any{"users": removed})
		h.broadcastOnline(ctx)
	}
}

func (h *Hub) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(h.reaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.heartbeat(ctx)
		}
	}
}

// IsOnline reports whether userID has a connection on this instance.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

func (h *Hub) broadcastOnline(ctx context.Context) {
	h.PublishToAll(EventOnlineUsers, h.OnlineUsers(ctx))
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(Frame{Type: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", event, err)
	}
	return data, nil
}

// PublishToUser delivers an event to every connection of userID. Offline
// users are skipped silently.
func (h *Hub) PublishToUser(userID uint, event string, payload any) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		h.log.LogError(context.Background(), userID, err, event)
		return
	}
	observability.WebSocketEventsSent.WithLabelValues(event).Inc()

	if h.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.notifier.PublishUser(ctx, userID, string(data)); err == nil {
			return
		}
		h.log.LogError(ctx, userID, err, event)
	}
	h.deliverToUser(userID, data)
}

// PublishToAll delivers an event to every connection.
func (h *Hub) PublishToAll(event string, payload any) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		h.log.LogError(context.Background(), 0, err, event)
		return
	}
	observability.WebSocketEventsSent.WithLabelValues(event).Inc()

	if h.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.notifier.PublishBroadcast(ctx, string(data)); err == nil {
			return
		}
		h.log.LogError(ctx, 0, err, event)
	}
	h.deliverToAll(data)
}

func (h *Hub) deliverToUser(userID uint, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns[userID] {
		c.TrySend(data)
	}
}

func (h *Hub) deliverToAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for _, c := range clients {
			c.TrySend(data)
		}
	}
}

// StartWiring subscribes to Redis and delivers frames published by any
// instance to local connections. It also starts the presence reaper, which
// stops with ctx. It is a no-op without Redis.
func (h *Hub) StartWiring(ctx context.Context) error {
	if h.notifier == nil {
		return nil
	}
	if h.presence != nil && h.reaperInterval > 0 {
		go h.reaperLoop(ctx)
	}
	return h.notifier.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == broadcastChannel {
			h.deliverToAll([]byte(payload))
			return
		}
		userID, ok := parseUserChannel(channel)
		if !ok {
			h.log.LogLifecycle(ctx, "invalid_channel", map[string]any{"channel": channel})
			return
		}
		h.deliverToUser(userID, []byte(payload))
	})
}

// Shutdown closes every client queue, which makes each writer send a close
// frame and exit. New registrations are refused afterwards.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*Client, 0, h.total)
	for _, list := range h.conns {
		clients = append(clients, list...)
	}
	h.conns = make(map[uint][]*Client)
	h.total = 0
	for _, c := range clients {
		close(c.Send)
	}
	h.mu.Unlock()

	observability.WebSocketConnections.Sub(float64(len(clients)))
	observability.WebSocketOnlineUsers.Set(0)

	var errs []error
	if h.presence != nil {
		for _, c := range clients {
			if _, err := h.presence.Disconnected(ctx, c.UserID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	h.log.LogLifecycle(ctx, "shutdown", map[string]any{"connections": len(clients)})
	return errors.Join(errs...)
}
