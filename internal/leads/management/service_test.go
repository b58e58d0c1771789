package management

import (
	"context"
	"sync"
	"testing"

	"leadmarket_backend/internal/directory"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/memstore"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

type fixture struct {
	svc    *Service
	leads  *memstore.LeadStore
	txs    *memstore.TransactionLedger
	dir    *directory.Memory
	bus    *recordingBus
	client ports.ClientProfile
}

func newFixture() *fixture {
	f := &fixture{
		leads: memstore.NewLeadStore(),
		txs:   memstore.NewTransactionLedger(),
		dir:   directory.NewMemory(),
		bus:   &recordingBus{},
	}
	f.client = f.dir.AddClient(ports.ClientProfile{Email: "client@example.com", FirstName: "Ana"})
	f.svc = New(Deps{
		Leads:    f.leads,
		Txs:      f.txs,
		Artisans: f.dir,
		Clients:  f.dir,
		Users:    f.dir,
		Bus:      f.bus,
		Log:      logger.Nop(),
	})
	return f
}

func (f *fixture) create(t *testing.T, price *int64, sectors ...string) domain.Lead {
	t.Helper()
	lead, err := f.svc.Create(context.Background(), f.client.UserID, CreateInput{
		Title: "Repaint hallway", Description: "Two coats, white", City: "Nantes", SectorIDs: sectors, PriceCents: price,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return lead
}

func TestCreatePublishesLeadCreated(t *testing.T) {
	f := newFixture()
	lead := f.create(t, nil, "painting")

	if lead.Status != domain.StatusNew || lead.ClientID != f.client.ID {
		t.Fatalf("unexpected lead %+v", lead)
	}
	if len(f.bus.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.bus.events))
	}
	created, ok := f.bus.events[0].(events.LeadCreated)
	if !ok || created.LeadID != lead.ID || created.SectorIDs[0] != "painting" {
		t.Fatalf("unexpected event %+v", f.bus.events[0])
	}
}

func TestCreateRejectsNonClientsAndEmptySectors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, uuid.New(), CreateInput{Title: "abc", Description: "long enough", SectorIDs: []string{"x"}})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = f.svc.Create(ctx, f.client.UserID, CreateInput{Title: "abc", Description: "long enough"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.bus.events) != 0 {
		t.Fatal("failed creates must not publish")
	}
}

func TestUpdateClosesAndClearsClaimant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	lead := f.create(t, nil, "painting")
	artisan := uuid.New()
	if ok, _ := f.leads.CompareAndSetStatus(ctx, lead.ID, domain.StatusNew, domain.StatusReserved, &artisan); !ok {
		t.Fatal("reserve failed")
	}

	closed := domain.StatusClosed
	price := int64(900)
	got, err := f.svc.Update(ctx, lead.ID, domain.AdminUpdate{Status: &closed, PriceCents: &price})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != domain.StatusClosed || got.ClaimantID != nil || got.EffectivePrice() != 900 {
		t.Fatalf("unexpected lead %+v", got)
	}

	sold := domain.StatusSold
	if _, err := f.svc.Update(ctx, lead.ID, domain.AdminUpdate{Status: &sold}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unclaimed SOLD, got %v", err)
	}
	if _, err := f.svc.Update(ctx, uuid.New(), domain.AdminUpdate{Status: &closed}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteKeepsTransactions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	lead := f.create(t, nil, "painting")
	if _, _, err := f.txs.Record(ctx, domain.NewPurchaseTransaction(uuid.New(), lead.ID, 100, "")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := f.svc.Delete(ctx, lead.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.leads.Get(ctx, lead.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected lead gone, got %v", err)
	}
	if n, _ := f.txs.CountForLead(ctx, lead.ID); n != 1 {
		t.Fatalf("expected transaction kept, got %d", n)
	}
	if err := f.svc.Delete(ctx, lead.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestStatsSumsSoldPrices(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"painting"}})
	f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"painting"}, Suspended: true})

	p1, p2 := int64(1000), int64(2500)
	l1 := f.create(t, &p1, "painting")
	f.create(t, &p2, "painting")
	buyer := uuid.New()
	if ok, _ := f.leads.CompareAndSetStatus(ctx, l1.ID, domain.StatusNew, domain.StatusSold, &buyer); !ok {
		t.Fatal("sell failed")
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := domain.Stats{TotalLeads: 2, SoldLeads: 1, ActiveArtisans: 1, RevenueCents: 1000}
	if stats != want {
		t.Fatalf("Stats = %+v, want %+v", stats, want)
	}
}

func TestListTransactionsJoinsAndFiltersByEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.dir.AddArtisan(ports.ArtisanProfile{Email: "alice@plumbers.example"})
	bob := f.dir.AddArtisan(ports.ArtisanProfile{Email: "bob@sparks.example"})
	lead := f.create(t, nil, "painting")

	if _, _, err := f.txs.Record(ctx, domain.NewPurchaseTransaction(alice.UserID, lead.ID, 100, "")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	bobTx, _, err := f.txs.Record(ctx, domain.NewPurchaseTransaction(bob.UserID, lead.ID, 200, ""))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	page, err := f.svc.ListTransactions(ctx, domain.TransactionFilter{ArtisanEmail: "SPARKS"}, domain.PageRequest{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].ID != bobTx.ID {
		t.Fatalf("expected only bob's transaction, got %+v", page)
	}
	if page.Items[0].PayerEmail != "bob@sparks.example" || page.Items[0].LeadTitle != "Repaint hallway" {
		t.Fatalf("expected joined fields, got %+v", page.Items[0])
	}

	page, _ = f.svc.ListTransactions(ctx, domain.TransactionFilter{ArtisanEmail: "nobody"}, domain.PageRequest{})
	if page.TotalCount != 0 {
		t.Fatalf("expected no matches, got %d", page.TotalCount)
	}

	if _, err := f.svc.Refund(ctx, bobTx.ID); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	refunded := domain.TransactionRefunded
	page, _ = f.svc.ListTransactions(ctx, domain.TransactionFilter{Status: &refunded}, domain.PageRequest{})
	if page.TotalCount != 1 || page.Items[0].Status != domain.TransactionRefunded {
		t.Fatalf("expected one refunded transaction, got %+v", page)
	}
}
