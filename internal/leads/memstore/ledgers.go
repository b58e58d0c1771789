package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

type grantKey struct {
	lead    uuid.UUID
	artisan uuid.UUID
}

// AccessLedger is an insert-only set of grants.
type AccessLedger struct {
	mu     sync.RWMutex
	grants map[grantKey]domain.AccessGrant
}

// NewAccessLedger creates an empty ledger.
func NewAccessLedger() *AccessLedger {
	return &AccessLedger{grants: make(map[grantKey]domain.AccessGrant)}
}

func (a *AccessLedger) Grant(ctx context.Context, leadID, artisanID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return apperr.Transient("access ledger unavailable", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := grantKey{lead: leadID, artisan: artisanID}
	if _, ok := a.grants[key]; !ok {
		a.grants[key] = domain.AccessGrant{LeadID: leadID, ArtisanID: artisanID, GrantedAt: time.Now().UTC()}
	}
	return nil
}

func (a *AccessLedger) ListLeadIDsForArtisan(ctx context.Context, artisanID uuid.UUID) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Transient("access ledger unavailable", err)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	grants := make([]domain.AccessGrant, 0)
	for key, g := range a.grants {
		if key.artisan == artisanID {
			grants = append(grants, g)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].GrantedAt.After(grants[j].GrantedAt) })
	ids := make([]uuid.UUID, len(grants))
	for i, g := range grants {
		ids[i] = g.LeadID
	}
	return ids, nil
}

func (a *AccessLedger) HasGrant(ctx context.Context, leadID, artisanID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperr.Transient("access ledger unavailable", err)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.grants[grantKey{lead: leadID, artisan: artisanID}]
	return ok, nil
}

// GrantCount returns how many grants exist for a lead.
func (a *AccessLedger) GrantCount(leadID uuid.UUID) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for key := range a.grants {
		if key.lead == leadID {
			n++
		}
	}
	return n
}

// TransactionLedger keeps transactions in insertion order.
type TransactionLedger struct {
	mu  sync.RWMutex
	txs []domain.Transaction
}

// NewTransactionLedger creates an empty ledger.
func NewTransactionLedger() *TransactionLedger {
	return &TransactionLedger{}
}

func (t *TransactionLedger) Record(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, false, apperr.Transient("transaction ledger unavailable", err)
	}
	if tx.AmountCents < 0 {
		return domain.Transaction{}, false, apperr.Validation("amount must not be negative")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if tx.IdempotencyKey != "" {
		for _, existing := range t.txs {
			if existing.UserID == tx.UserID && existing.IdempotencyKey == tx.IdempotencyKey {
				return existing, false, nil
			}
		}
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	t.txs = append(t.txs, tx)
	return tx, true, nil
}

func (t *TransactionLedger) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, apperr.Transient("transaction ledger unavailable", err)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, tx := range t.txs {
		if key != "" && tx.UserID == userID && tx.IdempotencyKey == key {
			return tx, nil
		}
	}
	return domain.Transaction{}, apperr.NotFound("transaction not found")
}

func (t *TransactionLedger) Refund(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, apperr.Transient("transaction ledger unavailable", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.txs {
		if t.txs[i].ID != id {
			continue
		}
		if t.txs[i].Status != domain.TransactionSucceeded {
			return domain.Transaction{}, apperr.Conflict("transaction already refunded")
		}
		t.txs[i].Status = domain.TransactionRefunded
		t.txs[i].UpdatedAt = time.Now().UTC()
		return t.txs[i], nil
	}
	return domain.Transaction{}, apperr.NotFound("transaction not found")
}

func (t *TransactionLedger) List(ctx context.Context, filter domain.TransactionFilter, page domain.PageRequest) ([]domain.Transaction, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, apperr.Transient("transaction ledger unavailable", err)
	}
	if filter.UserIDs != nil && len(filter.UserIDs) == 0 {
		return []domain.Transaction{}, 0, nil
	}
	t.mu.RLock()
	matches := make([]domain.Transaction, 0, len(t.txs))
	for _, tx := range t.txs {
		if filter.Status != nil && tx.Status != *filter.Status {
			continue
		}
		if filter.UserIDs != nil && !slices.Contains(filter.UserIDs, tx.UserID) {
			continue
		}
		matches = append(matches, tx)
	}
	t.mu.RUnlock()

	slices.Reverse(matches)
	page = page.Normalize()
	start := page.Offset()
	if start >= len(matches) {
		return []domain.Transaction{}, len(matches), nil
	}
	end := min(start+page.PageSize, len(matches))
	return matches[start:end], len(matches), nil
}

func (t *TransactionLedger) CountForLead(ctx context.Context, leadID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperr.Transient("transaction ledger unavailable", err)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, tx := range t.txs {
		if tx.LeadID == leadID {
			n++
		}
	}
	return n, nil
}
