// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadmarket_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadCreated is published after a client's lead is persisted with status NEW.
type LeadCreated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	ClientID  uuid.UUID `json:"clientId"`
	Title     string    `json:"title"`
	City      string    `json:"city,omitempty"`
	SectorIDs []string  `json:"sectorIds"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadReserved is published after a NEW lead was exclusively reserved.
type LeadReserved struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	Title         string    `json:"title"`
	ArtisanID     uuid.UUID `json:"artisanId"`
	ArtisanUserID uuid.UUID `json:"artisanUserId"`
	ArtisanEmail  string    `json:"artisanEmail,omitempty"`
	SectorIDs     []string  `json:"sectorIds"`
}

func (e LeadReserved) EventName() string { return "leads.lead.reserved" }

// LeadSold is published after a lead was purchased and its transaction recorded.
type LeadSold struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	Title         string    `json:"title"`
	ArtisanID     uuid.UUID `json:"artisanId"`
	ArtisanUserID uuid.UUID `json:"artisanUserId"`
	ArtisanEmail  string    `json:"artisanEmail,omitempty"`
	TransactionID uuid.UUID `json:"transactionId"`
	AmountCents   int64     `json:"amountCents"`
	SectorIDs     []string  `json:"sectorIds"`
}

func (e LeadSold) EventName() string { return "leads.lead.sold" }
