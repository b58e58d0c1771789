// Package reservation moves leads out of NEW. It is the only writer of
// claimants, access grants and purchase transactions.
package reservation

import (
	"context"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	msgNotAvailable = "Lead not available"
	msgAlreadySold  = "Lead already sold"

	// purchaseAttempts bounds the read-and-transition loop of Purchase.
	purchaseAttempts = 2
)

// Service orchestrates reserve and purchase.
type Service struct {
	leads    ports.LeadStore
	access   ports.AccessLedger
	txs      ports.TransactionLedger
	artisans ports.ArtisanDirectory
	bus      ports.EventPublisher
	log      *logger.Logger
}

// New creates a reservation service.
func New(leads ports.LeadStore, access ports.AccessLedger, txs ports.TransactionLedger, artisans ports.ArtisanDirectory, bus ports.EventPublisher, log *logger.Logger) *Service {
	return &Service{
		leads:    leads,
		access:   access,
		txs:      txs,
		artisans: artisans,
		bus:      bus,
		log:      log,
	}
}

// PurchaseInput is a purchase request by an authenticated artisan user.
type PurchaseInput struct {
	LeadID         uuid.UUID
	ArtisanUserID  uuid.UUID
	AmountCents    *int64
	IdempotencyKey string
}

// PurchaseResult describes the committed purchase. Replayed is set when the
// idempotency key matched an earlier purchase and nothing new was written.
type PurchaseResult struct {
	LeadID      uuid.UUID
	Transaction domain.Transaction
	Replayed    bool
}

// Reserve claims a NEW lead for the calling artisan.
func (s *Service) Reserve(ctx context.Context, leadID, artisanUserID uuid.UUID) (uuid.UUID, error) {
	artisan, err := s.resolveArtisan(ctx, artisanUserID)
	if err != nil {
		return uuid.Nil, err
	}

	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return uuid.Nil, err
	}

	ok, err := s.leads.CompareAndSetStatus(ctx, leadID, domain.StatusNew, domain.StatusReserved, &artisan.ID)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		s.log.ClaimRejected("reserve", leadID.String(), artisan.ID.String(), "status changed")
		return uuid.Nil, apperr.Conflict(msgNotAvailable)
	}

	if err := s.access.Grant(ctx, leadID, artisan.ID); err != nil {
		return uuid.Nil, err
	}

	s.log.LeadTransition(leadID.String(), string(domain.StatusNew), string(domain.StatusReserved), artisan.ID.String())
	s.bus.Publish(ctx, events.LeadReserved{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        leadID,
		Title:         lead.Title,
		ArtisanID:     artisan.ID,
		ArtisanUserID: artisan.UserID,
		ArtisanEmail:  artisan.Email,
		SectorIDs:     lead.SectorIDs,
	})

	return leadID, nil
}

// Purchase moves a NEW lead, or one reserved by the caller, to SOLD and
// records the payment.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	if in.AmountCents != nil && *in.AmountCents <= 0 {
		return PurchaseResult{}, apperr.Validation("amount must be positive")
	}

	artisan, err := s.resolveArtisan(ctx, in.ArtisanUserID)
	if err != nil {
		return PurchaseResult{}, err
	}

	if in.IdempotencyKey != "" {
		prior, err := s.txs.FindByIdempotencyKey(ctx, artisan.UserID, in.IdempotencyKey)
		switch {
		case err == nil && prior.LeadID == in.LeadID:
			return PurchaseResult{LeadID: in.LeadID, Transaction: prior, Replayed: true}, nil
		case err == nil:
			return PurchaseResult{}, apperr.Conflict("idempotency key already used for another lead")
		case !apperr.Is(err, apperr.KindNotFound):
			return PurchaseResult{}, err
		}
	}

	// A keyed retry may finish a purchase whose lead is already SOLD to the
	// caller but whose transaction was never recorded.
	lead, from, err := s.transitionToSold(ctx, in.LeadID, artisan.ID, in.IdempotencyKey != "")
	if err != nil {
		return PurchaseResult{}, err
	}

	if err := s.access.Grant(ctx, lead.ID, artisan.ID); err != nil {
		return PurchaseResult{}, err
	}

	amount := lead.EffectivePrice()
	if in.AmountCents != nil {
		amount = *in.AmountCents
	}

	tx, created, err := s.txs.Record(ctx, domain.NewPurchaseTransaction(artisan.UserID, lead.ID, amount, in.IdempotencyKey))
	if err != nil {
		return PurchaseResult{}, err
	}
	if !created {
		if tx.LeadID != lead.ID {
			return PurchaseResult{}, apperr.Conflict("idempotency key already used for another lead")
		}
		return PurchaseResult{LeadID: lead.ID, Transaction: tx, Replayed: true}, nil
	}

	s.log.LeadTransition(lead.ID.String(), string(from), string(domain.StatusSold), artisan.ID.String())
	s.bus.Publish(ctx, events.LeadSold{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        lead.ID,
		Title:         lead.Title,
		ArtisanID:     artisan.ID,
		ArtisanUserID: artisan.UserID,
		ArtisanEmail:  artisan.Email,
		TransactionID: tx.ID,
		AmountCents:   tx.AmountCents,
		SectorIDs:     lead.SectorIDs,
	})

	return PurchaseResult{LeadID: lead.ID, Transaction: tx}, nil
}

// transitionToSold reads the lead and applies current -> SOLD, re-reading once
// if another writer moved it in between. It returns the lead as read before
// the winning transition and the status it left. With resume set, a lead
// already SOLD to artisanID without any transaction is returned as is.
func (s *Service) transitionToSold(ctx context.Context, leadID, artisanID uuid.UUID, resume bool) (domain.Lead, domain.Status, error) {
	for attempt := 0; attempt < purchaseAttempts; attempt++ {
		lead, err := s.leads.Get(ctx, leadID)
		if err != nil {
			return domain.Lead{}, "", err
		}

		switch {
		case lead.Status == domain.StatusSold && resume && lead.ClaimedBy(artisanID):
			n, err := s.txs.CountForLead(ctx, leadID)
			if err != nil {
				return domain.Lead{}, "", err
			}
			if n == 0 {
				return lead, lead.Status, nil
			}
			s.log.ClaimRejected("purchase", leadID.String(), artisanID.String(), "already sold")
			return domain.Lead{}, "", apperr.Conflict(msgAlreadySold)
		case lead.Status == domain.StatusSold:
			s.log.ClaimRejected("purchase", leadID.String(), artisanID.String(), "already sold")
			return domain.Lead{}, "", apperr.Conflict(msgAlreadySold)
		case !lead.Status.Purchasable():
			s.log.ClaimRejected("purchase", leadID.String(), artisanID.String(), "status "+string(lead.Status))
			return domain.Lead{}, "", apperr.Conflict(msgNotAvailable)
		case lead.Status == domain.StatusReserved && !lead.ClaimedBy(artisanID):
			s.log.ClaimRejected("purchase", leadID.String(), artisanID.String(), "reserved by another artisan")
			return domain.Lead{}, "", apperr.Conflict(msgNotAvailable)
		}

		ok, err := s.leads.CompareAndSetStatus(ctx, leadID, lead.Status, domain.StatusSold, &artisanID)
		if err != nil {
			return domain.Lead{}, "", err
		}
		if ok {
			return lead, lead.Status, nil
		}
	}

	s.log.ClaimRejected("purchase", leadID.String(), artisanID.String(), "lost race")
	return domain.Lead{}, "", apperr.Conflict(msgNotAvailable)
}

func (s *Service) resolveArtisan(ctx context.Context, userID uuid.UUID) (ports.ArtisanProfile, error) {
	artisan, err := s.artisans.ArtisanByUserID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return ports.ArtisanProfile{}, apperr.Forbidden("artisan profile required")
		}
		return ports.ArtisanProfile{}, err
	}
	if artisan.Suspended {
		return ports.ArtisanProfile{}, apperr.Forbidden("artisan account suspended")
	}
	return artisan, nil
}
