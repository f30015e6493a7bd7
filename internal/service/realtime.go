// Package service holds the business rules that sit between HTTP handlers and repositories.
package service

import (
	"context"
	"log/slog"

	"murmur/internal/events"
	"murmur/internal/observability"
)

// Realtime event names pushed to websocket clients.
const (
	EventNewMessage   = "newMessage"
	EventNewPost      = "newPost"
	EventNotification = "notification"
)

// Realtime delivers events to connected clients. Delivery is fire-and-forget:
// an offline recipient is not an error.
type Realtime interface {
	PublishToUser(userID uint, event string, payload any)
	PublishToAll(event string, payload any)
}

type noopRealtime struct{}

func (noopRealtime) PublishToUser(uint, string, any) {}
func (noopRealtime) PublishToAll(string, any)        {}

func realtimeOrNoop(rt Realtime) Realtime {
	if rt == nil {
		return noopRealtime{}
	}
	return rt
}

func publisherOrNoop(p events.Publisher) events.Publisher {
	if p == nil {
		return events.Noop{}
	}
	return p
}

// emit publishes an integration event. Failures are logged and never fail the request.
func emit(ctx context.Context, p events.Publisher, routingKey string, payload any) {
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to publish event",
			slog.String("routing_key", routingKey),
			slog.String("error", err.Error()),
		)
	}
}
