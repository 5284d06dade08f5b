// Package eventbus provides event-driven communication between execution
// requesters and workers.
package eventbus

import (
	"context"

	"github.com/dukex/nodeflow/pkg/events"
)

// Event is any lifecycle event of the events package.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes lifecycle events. key is the execution id;
// transports that partition use it to keep the events of one execution in
// order.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler receives a decoded event as a pointer to its concrete type,
// for example *events.ExecutionRequested. A returned error redelivers the
// message.
type EventHandler func(ctx context.Context, event any) error

// EventSubscriber routes received events to one handler per event type.
// Handlers must be registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
