package fanout

import (
	"context"

	"leadmarket_backend/internal/events"

	"github.com/google/uuid"
)

type leadNewPayload struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	City  string    `json:"city,omitempty"`
}

type leadRefPayload struct {
	ID uuid.UUID `json:"id"`
}

// Subscribe wires lead lifecycle events on bus to hub publishes.
func Subscribe(bus events.Bus, hub *Hub) {
	bus.Subscribe(events.LeadCreated{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		evt, ok := e.(events.LeadCreated)
		if !ok {
			return nil
		}
		return hub.Publish(ctx, evt.SectorIDs, KindLeadNew, leadNewPayload{ID: evt.LeadID, Title: evt.Title, City: evt.City})
	}))

	bus.Subscribe(events.LeadReserved{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		evt, ok := e.(events.LeadReserved)
		if !ok {
			return nil
		}
		return hub.Publish(ctx, evt.SectorIDs, KindLeadReserved, leadRefPayload{ID: evt.LeadID})
	}))

	bus.Subscribe(events.LeadSold{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		evt, ok := e.(events.LeadSold)
		if !ok {
			return nil
		}
		return hub.Publish(ctx, evt.SectorIDs, KindLeadSold, leadRefPayload{ID: evt.LeadID})
	}))
}
