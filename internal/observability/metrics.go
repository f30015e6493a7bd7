package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// WebSocketConnections is the gauge of open realtime connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "murmur_websocket_connections",
		Help: "Number of open WebSocket connections",
	})

	// WebSocketOnlineUsers is the gauge of users with at least one connection on this instance.
	WebSocketOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "murmur_websocket_online_users",
		Help: "Number of users with an open WebSocket connection",
	})

	// WebSocketEventsSent counts realtime events queued for delivery by event type.
	WebSocketEventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_websocket_events_sent_total",
		Help: "Total realtime events queued for delivery",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// DomainEvents counts integration events published to the broker by routing key.
	DomainEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_domain_events_total",
		Help: "Total integration events by routing key and outcome",
	}, []string{"routing_key", "outcome"})
)
