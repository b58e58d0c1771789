package reservation

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

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

type fixture struct {
	svc    *Service
	leads  *memstore.LeadStore
	access *memstore.AccessLedger
	txs    *memstore.TransactionLedger
	dir    *directory.Memory
	bus    *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		leads:  memstore.NewLeadStore(),
		access: memstore.NewAccessLedger(),
		txs:    memstore.NewTransactionLedger(),
		dir:    directory.NewMemory(),
		bus:    &recordingBus{},
	}
	f.svc = New(f.leads, f.access, f.txs, f.dir, f.bus, logger.Nop())
	return f
}

func (f *fixture) artisan(sectors ...string) ports.ArtisanProfile {
	return f.dir.AddArtisan(ports.ArtisanProfile{Email: uuid.NewString() + "@example.com", SectorIDs: sectors})
}

func (f *fixture) lead(t *testing.T, price *int64, sectors ...string) domain.Lead {
	t.Helper()
	lead, err := domain.NewLead(uuid.New(), "Fix sink", "Kitchen sink is leaking", "Lyon", sectors, price)
	if err != nil {
		t.Fatalf("NewLead: %v", err)
	}
	stored, err := f.leads.Create(context.Background(), lead)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return stored
}

func TestReserveThenConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1, a2 := f.artisan("plumbing"), f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	id, err := f.svc.Reserve(ctx, lead.ID, a1.UserID)
	if err != nil || id != lead.ID {
		t.Fatalf("Reserve: id=%v err=%v", id, err)
	}

	got, _ := f.leads.Get(ctx, lead.ID)
	if got.Status != domain.StatusReserved || !got.ClaimedBy(a1.ID) {
		t.Fatalf("expected RESERVED by a1, got %+v", got)
	}
	if ok, _ := f.access.HasGrant(ctx, lead.ID, a1.ID); !ok {
		t.Fatal("expected grant for a1")
	}

	_, err = f.svc.Reserve(ctx, lead.ID, a2.UserID)
	if !apperr.Is(err, apperr.KindConflict) || err.Error() != "Lead not available" {
		t.Fatalf("expected Conflict 'Lead not available', got %v", err)
	}
	if ok, _ := f.access.HasGrant(ctx, lead.ID, a2.ID); ok {
		t.Fatal("loser must not receive a grant")
	}
	if names := f.bus.names(); len(names) != 1 || names[0] != (events.LeadReserved{}).EventName() {
		t.Fatalf("expected a single reserved event, got %v", names)
	}
}

func TestConcurrentReservesHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	lead := f.lead(t, nil, "plumbing")

	const n = 25
	artisans := make([]ports.ArtisanProfile, n)
	for i := range artisans {
		artisans[i] = f.artisan("plumbing")
	}

	var wg sync.WaitGroup
	results := make([]error, n)
	start := make(chan struct{})
	for i := range artisans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = f.svc.Reserve(context.Background(), lead.ID, artisans[i].UserID)
		}(i)
	}
	close(start)
	wg.Wait()

	winners, conflicts := 0, 0
	var winner ports.ArtisanProfile
	for i, err := range results {
		switch {
		case err == nil:
			winners++
			winner = artisans[i]
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", n-1, winners, conflicts)
	}
	if f.access.GrantCount(lead.ID) != 1 {
		t.Fatalf("expected exactly one grant, got %d", f.access.GrantCount(lead.ID))
	}
	got, _ := f.leads.Get(context.Background(), lead.ID)
	if !got.ClaimedBy(winner.ID) {
		t.Fatalf("claimant %v is not the winner %v", got.ClaimantID, winner.ID)
	}
}

func TestPurchaseAfterReserveUsesLeadPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1, a2 := f.artisan("plumbing"), f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	if _, err := f.svc.Reserve(ctx, lead.ID, a1.UserID); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	res, err := f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if res.Transaction.AmountCents != 0 || res.Transaction.Status != domain.TransactionSucceeded {
		t.Fatalf("expected SUCCEEDED transaction of 0, got %+v", res.Transaction)
	}
	if res.Transaction.UserID != a1.UserID {
		t.Fatalf("transaction payer should be the artisan user id")
	}
	got, _ := f.leads.Get(ctx, lead.ID)
	if got.Status != domain.StatusSold || !got.ClaimedBy(a1.ID) {
		t.Fatalf("expected SOLD by a1, got %+v", got)
	}

	_, err = f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a2.UserID})
	if !apperr.Is(err, apperr.KindConflict) || err.Error() != "Lead already sold" {
		t.Fatalf("expected Conflict 'Lead already sold', got %v", err)
	}
	if n, _ := f.txs.CountForLead(ctx, lead.ID); n != 1 {
		t.Fatalf("expected transaction count unchanged at 1, got %d", n)
	}
}

func TestPurchaseDirectFromNewWithExplicitAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	price := int64(4000)
	a1 := f.artisan("heating")
	lead := f.lead(t, &price, "heating")

	amount := int64(2500)
	res, err := f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID, AmountCents: &amount})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if res.Transaction.AmountCents != 2500 {
		t.Fatalf("expected explicit amount to win, got %d", res.Transaction.AmountCents)
	}

	lead2 := f.lead(t, &price, "heating")
	res, err = f.svc.Purchase(ctx, PurchaseInput{LeadID: lead2.ID, ArtisanUserID: a1.UserID})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if res.Transaction.AmountCents != 4000 {
		t.Fatalf("expected lead price, got %d", res.Transaction.AmountCents)
	}
}

func TestPurchaseRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	a1 := f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	for _, amount := range []int64{0, -10} {
		amount := amount
		_, err := f.svc.Purchase(context.Background(), PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID, AmountCents: &amount})
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("amount %d: expected validation error, got %v", amount, err)
		}
	}
}

func TestPurchaseOfForeignReservationConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1, a2 := f.artisan("plumbing"), f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	if _, err := f.svc.Reserve(ctx, lead.ID, a1.UserID); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	_, err := f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a2.UserID})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := f.leads.Get(ctx, lead.ID)
	if !got.ClaimedBy(a1.ID) || got.Status != domain.StatusReserved {
		t.Fatalf("reservation must be untouched, got %+v", got)
	}
}

func TestPurchaseOnClosedLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	closed := domain.StatusClosed
	if _, err := f.leads.AdminUpdate(ctx, lead.ID, domain.AdminUpdate{Status: &closed}); err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	_, err := f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID})
	if !apperr.Is(err, apperr.KindConflict) || err.Error() != "Lead not available" {
		t.Fatalf("expected Conflict 'Lead not available', got %v", err)
	}
}

func TestPurchaseIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")
	other := f.lead(t, nil, "plumbing")

	first, err := f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID, IdempotencyKey: "k-1"})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	replay, err := f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID, IdempotencyKey: "k-1"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replay.Replayed || replay.Transaction.ID != first.Transaction.ID {
		t.Fatalf("expected replay of %v, got %+v", first.Transaction.ID, replay)
	}
	if n, _ := f.txs.CountForLead(ctx, lead.ID); n != 1 {
		t.Fatalf("expected one transaction, got %d", n)
	}

	_, err = f.svc.Purchase(ctx, PurchaseInput{LeadID: other.ID, ArtisanUserID: a1.UserID, IdempotencyKey: "k-1"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for reused key, got %v", err)
	}
}

func TestDoublePurchaseKeepsSingleGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	if _, err := f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID}); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if _, err := f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on second purchase, got %v", err)
	}
	if n := f.access.GrantCount(lead.ID); n != 1 {
		t.Fatalf("expected one grant, got %d", n)
	}
}

func TestCallerMustBeArtisan(t *testing.T) {
	f := newFixture(t)
	lead := f.lead(t, nil, "plumbing")

	_, err := f.svc.Reserve(context.Background(), lead.ID, uuid.New())
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	a1 := f.artisan("plumbing")
	if _, err := f.svc.Reserve(context.Background(), uuid.New(), a1.UserID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
