// Package events is the in-process event bus that lets modules react to lead
// lifecycle changes without importing each other.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName selects the subscribers.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the publication timestamp shared by all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

// Handler reacts to one published event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus delivers events to subscribers. Publish never reports handler failures
// to the publisher; a failed notification must not undo a committed claim.
type Bus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventName string, handler Handler)
}
