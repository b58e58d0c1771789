// Package notification turns lead lifecycle events into queued emails.
// Domain modules publish events; this module owns who gets told and how.
package notification

import (
	"context"
	"errors"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/internal/scheduler"
	"leadmarket_backend/platform/logger"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	artisans ports.ArtisanDirectory
	emails   scheduler.EmailScheduler
	log      *logger.Logger
}

// New creates the notification module.
func New(artisans ports.ArtisanDirectory, emails scheduler.EmailScheduler, log *logger.Logger) *Module {
	return &Module{artisans: artisans, emails: emails, log: log}
}

// RegisterHandlers subscribes the module to lead events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	bus.Subscribe(events.LeadReserved{}.EventName(), m)
	bus.Subscribe(events.LeadSold{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		return m.handleLeadCreated(ctx, e)
	case events.LeadReserved:
		return m.handleLeadReserved(ctx, e)
	case events.LeadSold:
		return m.handleLeadSold(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// handleLeadCreated tells every active artisan in the lead's sectors.
func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	artisans, err := m.artisans.ArtisansInSectors(ctx, e.SectorIDs)
	if err != nil {
		return err
	}

	var errs []error
	queued := 0
	for _, a := range artisans {
		if a.Suspended || a.Email == "" {
			continue
		}
		err := m.emails.EnqueueNewLeadEmail(ctx, scheduler.NewLeadEmailPayload{
			ToEmail:   a.Email,
			LeadID:    e.LeadID.String(),
			LeadTitle: e.Title,
			City:      e.City,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		queued++
	}

	m.log.Debug("new lead emails queued", "lead_id", e.LeadID.String(), "count", queued)
	return errors.Join(errs...)
}

func (m *Module) handleLeadReserved(ctx context.Context, e events.LeadReserved) error {
	if e.ArtisanEmail == "" {
		return nil
	}
	return m.emails.EnqueueLeadReservedEmail(ctx, scheduler.LeadReservedEmailPayload{
		ToEmail:   e.ArtisanEmail,
		LeadID:    e.LeadID.String(),
		LeadTitle: e.Title,
	})
}

func (m *Module) handleLeadSold(ctx context.Context, e events.LeadSold) error {
	if e.ArtisanEmail == "" {
		return nil
	}
	return m.emails.EnqueueLeadPurchasedEmail(ctx, scheduler.LeadPurchasedEmailPayload{
		ToEmail:       e.ArtisanEmail,
		LeadID:        e.LeadID.String(),
		LeadTitle:     e.Title,
		TransactionID: e.TransactionID.String(),
		AmountCents:   e.AmountCents,
	})
}
