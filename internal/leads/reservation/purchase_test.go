package reservation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/memstore"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// failingLedger fails the first Record call after the lead was already sold.
type failingLedger struct {
	*memstore.TransactionLedger
	failed atomic.Bool
}

func (l *failingLedger) Record(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	if l.failed.CompareAndSwap(false, true) {
		return domain.Transaction{}, false, apperr.Transient("transaction ledger unavailable", context.DeadlineExceeded)
	}
	return l.TransactionLedger.Record(ctx, tx)
}

// racingLeadStore lets another writer reserve the lead right before the first
// compare-and-set, so that attempt observes a stale status.
type racingLeadStore struct {
	*memstore.LeadStore
	rival      uuid.UUID
	calls      atomic.Int32
	alwaysLose bool
}

func (s *racingLeadStore) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next domain.Status, claimant *uuid.UUID) (bool, error) {
	if s.alwaysLose {
		s.calls.Add(1)
		return false, nil
	}
	if s.calls.Add(1) == 1 {
		if _, err := s.LeadStore.CompareAndSetStatus(ctx, id, domain.StatusNew, domain.StatusReserved, &s.rival); err != nil {
			return false, err
		}
	}
	return s.LeadStore.CompareAndSetStatus(ctx, id, expected, next, claimant)
}

func soldEvents(bus *recordingBus) int {
	n := 0
	for _, name := range bus.names() {
		if name == (events.LeadSold{}).EventName() {
			n++
		}
	}
	return n
}

func TestKeyedPurchaseResumesAfterLedgerFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txs := &failingLedger{TransactionLedger: f.txs}
	svc := New(f.leads, f.access, txs, f.dir, f.bus, logger.Nop())
	a1 := f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	_, err := svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID, IdempotencyKey: "k-1"})
	if !apperr.Is(err, apperr.KindTransient) {
		t.Fatalf("expected Transient from the ledger, got %v", err)
	}
	if got, _ := f.leads.Get(ctx, lead.ID); got.Status != domain.StatusSold {
		t.Fatalf("expected lead left SOLD, got %s", got.Status)
	}

	res, err := svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID, IdempotencyKey: "k-1"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Replayed || res.Transaction.LeadID != lead.ID {
		t.Fatalf("expected a fresh transaction for the lead, got %+v", res)
	}
	if n, _ := f.txs.CountForLead(ctx, lead.ID); n != 1 {
		t.Fatalf("expected one transaction, got %d", n)
	}
	if soldEvents(f.bus) != 1 {
		t.Fatalf("expected one sold event, got %v", f.bus.names())
	}

	replay, err := svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID, IdempotencyKey: "k-1"})
	if err != nil || !replay.Replayed || replay.Transaction.ID != res.Transaction.ID {
		t.Fatalf("expected replay of %s, got %+v err=%v", res.Transaction.ID, replay, err)
	}
}

func TestUnkeyedRetryOfSoldLeadConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txs := &failingLedger{TransactionLedger: f.txs}
	svc := New(f.leads, f.access, txs, f.dir, f.bus, logger.Nop())
	a1, a2 := f.artisan("plumbing"), f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	if _, err := svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID}); err == nil {
		t.Fatal("expected the first purchase to fail")
	}

	tests := []struct {
		name string
		in   PurchaseInput
	}{
		{"same artisan without key", PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID}},
		{"other artisan with key", PurchaseInput{LeadID: lead.ID, ArtisanUserID: a2.UserID, IdempotencyKey: "k-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Purchase(ctx, tt.in)
			if !apperr.Is(err, apperr.KindConflict) || err.Error() != msgAlreadySold {
				t.Fatalf("expected Conflict %q, got %v", msgAlreadySold, err)
			}
		})
	}
	if n, _ := f.txs.CountForLead(ctx, lead.ID); n != 0 {
		t.Fatalf("expected no transaction, got %d", n)
	}
}

func TestConcurrentPurchasesHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.lead(t, nil, "plumbing")

	const n = 8
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
			_, results[i] = f.svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: artisans[i].UserID})
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
		t.Fatalf("expected 1 winner and %d conflicts, got %d and %d", n-1, winners, conflicts)
	}
	if c, _ := f.txs.CountForLead(ctx, lead.ID); c != 1 {
		t.Fatalf("expected one transaction, got %d", c)
	}
	if c := f.access.GrantCount(lead.ID); c != 1 {
		t.Fatalf("expected one grant, got %d", c)
	}
	got, _ := f.leads.Get(ctx, lead.ID)
	if got.Status != domain.StatusSold || !got.ClaimedBy(winner.ID) {
		t.Fatalf("expected SOLD to the winner, got %+v", got)
	}
}

func TestPurchaseRetriesAfterStaleStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	leads := &racingLeadStore{LeadStore: f.leads, rival: a1.ID}
	svc := New(leads, f.access, f.txs, f.dir, f.bus, logger.Nop())

	res, err := svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if calls := leads.calls.Load(); calls != 2 {
		t.Fatalf("expected two compare-and-set attempts, got %d", calls)
	}
	if res.Transaction.LeadID != lead.ID {
		t.Fatalf("unexpected transaction %+v", res.Transaction)
	}
	got, _ := f.leads.Get(ctx, lead.ID)
	if got.Status != domain.StatusSold || !got.ClaimedBy(a1.ID) {
		t.Fatalf("expected SOLD to a1, got %+v", got)
	}
}

func TestPurchaseGivesUpAfterRepeatedLostRaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.artisan("plumbing")
	lead := f.lead(t, nil, "plumbing")

	leads := &racingLeadStore{LeadStore: f.leads, alwaysLose: true}
	svc := New(leads, f.access, f.txs, f.dir, f.bus, logger.Nop())

	_, err := svc.Purchase(ctx, PurchaseInput{LeadID: lead.ID, ArtisanUserID: a1.UserID})
	if !apperr.Is(err, apperr.KindConflict) || err.Error() != msgNotAvailable {
		t.Fatalf("expected Conflict %q, got %v", msgNotAvailable, err)
	}
	if calls := leads.calls.Load(); calls != purchaseAttempts {
		t.Fatalf("expected %d attempts, got %d", purchaseAttempts, calls)
	}
	if c, _ := f.txs.CountForLead(ctx, lead.ID); c != 0 {
		t.Fatalf("expected no transaction, got %d", c)
	}
}
