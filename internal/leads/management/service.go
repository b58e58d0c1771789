// Package management handles lead creation and the administrative
// operations around the claim lifecycle: edits, deletion, statistics and
// the transaction ledger.
package management

import (
	"context"
	"strings"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service handles lead management operations.
type Service struct {
	leads    ports.LeadStore
	txs      ports.TransactionLedger
	artisans ports.ArtisanDirectory
	clients  ports.ClientDirectory
	users    ports.UserDirectory
	bus      ports.EventPublisher
	log      *logger.Logger
}

// Deps bundles the collaborators of the management service.
type Deps struct {
	Leads    ports.LeadStore
	Txs      ports.TransactionLedger
	Artisans ports.ArtisanDirectory
	Clients  ports.ClientDirectory
	Users    ports.UserDirectory
	Bus      ports.EventPublisher
	Log      *logger.Logger
}

// New creates a new lead management service.
func New(d Deps) *Service {
	return &Service{
		leads:    d.Leads,
		txs:      d.Txs,
		artisans: d.Artisans,
		clients:  d.Clients,
		users:    d.Users,
		bus:      d.Bus,
		log:      d.Log,
	}
}

// CreateInput is a client's new lead.
type CreateInput struct {
	Title       string
	Description string
	City        string
	SectorIDs   []string
	PriceCents  *int64
}

// Create persists a NEW lead for the calling client and announces it.
func (s *Service) Create(ctx context.Context, clientUserID uuid.UUID, in CreateInput) (domain.Lead, error) {
	client, err := s.clients.ClientByUserID(ctx, clientUserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return domain.Lead{}, apperr.Forbidden("client profile required")
		}
		return domain.Lead{}, err
	}

	lead, err := domain.NewLead(client.ID, in.Title, in.Description, in.City, in.SectorIDs, in.PriceCents)
	if err != nil {
		return domain.Lead{}, err
	}

	stored, err := s.leads.Create(ctx, lead)
	if err != nil {
		return domain.Lead{}, err
	}

	s.log.Info("lead created", "lead_id", stored.ID, "client_id", client.ID, "sectors", stored.SectorIDs)
	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    stored.ID,
		ClientID:  client.ID,
		Title:     stored.Title,
		City:      stored.City,
		SectorIDs: stored.SectorIDs,
	})
	return stored, nil
}

// Update applies an administrative status and/or price edit.
func (s *Service) Update(ctx context.Context, id uuid.UUID, update domain.AdminUpdate) (domain.Lead, error) {
	before, err := s.leads.Get(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	after, err := s.leads.AdminUpdate(ctx, id, update)
	if err != nil {
		return domain.Lead{}, err
	}
	if before.Status != after.Status {
		claimant := ""
		if after.ClaimantID != nil {
			claimant = after.ClaimantID.String()
		}
		s.log.LeadTransition(id.String(), string(before.Status), string(after.Status), claimant)
	}
	return after, nil
}

// Delete removes a lead. Its grants and transactions are kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.leads.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("lead deleted", "lead_id", id)
	return nil
}

// Stats aggregates the admin dashboard counters.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	var (
		stats   domain.Stats
		artisan int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.leads.Stats(gctx)
		stats = st
		return err
	})
	g.Go(func() error {
		n, err := s.artisans.CountActiveArtisans(gctx)
		artisan = n
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Stats{}, err
	}
	stats.ActiveArtisans = artisan
	return stats, nil
}

// ListTransactions pages through the ledger, joined with lead titles and
// payer emails. Missing titles or emails are left empty.
func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter, page domain.PageRequest) (domain.Page[domain.TransactionView], error) {
	page = page.Normalize()

	if email := strings.TrimSpace(filter.ArtisanEmail); email != "" {
		ids, err := s.users.UserIDsByEmail(ctx, email)
		if err != nil {
			return domain.Page[domain.TransactionView]{}, err
		}
		filter.UserIDs = ids
	}

	txs, total, err := s.txs.List(ctx, filter, page)
	if err != nil {
		return domain.Page[domain.TransactionView]{}, err
	}

	leadIDs := make([]uuid.UUID, 0, len(txs))
	userIDs := make([]uuid.UUID, 0, len(txs))
	for _, tx := range txs {
		leadIDs = append(leadIDs, tx.LeadID)
		userIDs = append(userIDs, tx.UserID)
	}

	var (
		leads  map[uuid.UUID]domain.Lead
		emails map[uuid.UUID]string
	)
	var g errgroup.Group
	g.Go(func() error {
		m, err := s.leads.GetMany(ctx, leadIDs)
		if err != nil {
			s.log.Warn("transaction lead titles unavailable", "error", err)
			return nil
		}
		leads = m
		return nil
	})
	g.Go(func() error {
		m, err := s.users.EmailsByUserIDs(ctx, userIDs)
		if err != nil {
			s.log.Warn("transaction payer emails unavailable", "error", err)
			return nil
		}
		emails = m
		return nil
	})
	_ = g.Wait()

	items := make([]domain.TransactionView, len(txs))
	for i, tx := range txs {
		items[i] = domain.TransactionView{
			Transaction: tx,
			LeadTitle:   leads[tx.LeadID].Title,
			PayerEmail:  emails[tx.UserID],
		}
	}

	return domain.Page[domain.TransactionView]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: total,
	}, nil
}

// Refund flips a SUCCEEDED transaction to REFUNDED.
func (s *Service) Refund(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	tx, err := s.txs.Refund(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.log.Info("transaction refunded", "transaction_id", id, "lead_id", tx.LeadID, "amount_cents", tx.AmountCents)
	return tx, nil
}
