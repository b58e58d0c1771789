// Package memstore keeps leads, grants and transactions in process memory.
// It backs STORAGE_DRIVER=memory and the service-level tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

type leadEntry struct {
	mu   sync.Mutex
	lead domain.Lead
}

// LeadStore serialises transitions on a lead with that lead's own mutex.
type LeadStore struct {
	mu    sync.RWMutex
	leads map[uuid.UUID]*leadEntry
}

// NewLeadStore creates an empty store.
func NewLeadStore() *LeadStore {
	return &LeadStore{leads: make(map[uuid.UUID]*leadEntry)}
}

func (s *LeadStore) entry(id uuid.UUID) (*leadEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.leads[id]
	return e, ok
}

func (s *LeadStore) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, apperr.Transient("lead store unavailable", err)
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if err := validateNewLead(lead); err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.StatusNew
	lead.ClaimantID = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leads[lead.ID]; exists {
		return domain.Lead{}, apperr.Conflict("lead already exists")
	}
	s.leads[lead.ID] = &leadEntry{lead: cloneLead(lead)}
	return cloneLead(lead), nil
}

func (s *LeadStore) Get(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, apperr.Transient("lead store unavailable", err)
	}
	e, ok := s.entry(id)
	if !ok {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneLead(e.lead), nil
}

func (s *LeadStore) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next domain.Status, claimant *uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperr.Transient("lead store unavailable", err)
	}
	if next.Claimed() && claimant == nil {
		return false, apperr.Validation("claimant required for " + string(next))
	}
	e, ok := s.entry(id)
	if !ok {
		return false, apperr.NotFound("lead not found")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lead.Status != expected {
		return false, nil
	}
	if claimant != nil && e.lead.ClaimantID != nil && *e.lead.ClaimantID != *claimant {
		return false, nil
	}

	e.lead.Status = next
	if next.Claimed() {
		c := *claimant
		e.lead.ClaimantID = &c
	} else {
		e.lead.ClaimantID = nil
	}
	e.lead.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *LeadStore) List(ctx context.Context, filter domain.LeadFilter, page domain.PageRequest) ([]domain.Lead, error) {
	matches, err := s.matching(ctx, filter)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	start := page.Offset()
	if start >= len(matches) {
		return []domain.Lead{}, nil
	}
	end := min(start+page.PageSize, len(matches))
	return matches[start:end], nil
}

func (s *LeadStore) Count(ctx context.Context, filter domain.LeadFilter) (int, error) {
	matches, err := s.matching(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

func (s *LeadStore) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Transient("lead store unavailable", err)
	}
	out := make(map[uuid.UUID]domain.Lead, len(ids))
	for _, id := range ids {
		if e, ok := s.entry(id); ok {
			e.mu.Lock()
			out[id] = cloneLead(e.lead)
			e.mu.Unlock()
		}
	}
	return out, nil
}

func (s *LeadStore) AdminUpdate(ctx context.Context, id uuid.UUID, update domain.AdminUpdate) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, apperr.Transient("lead store unavailable", err)
	}
	e, ok := s.entry(id)
	if !ok {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	updated, err := update.Apply(e.lead)
	if err != nil {
		return domain.Lead{}, err
	}
	e.lead = updated
	return cloneLead(updated), nil
}

func (s *LeadStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return apperr.Transient("lead store unavailable", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[id]; !ok {
		return apperr.NotFound("lead not found")
	}
	delete(s.leads, id)
	return nil
}

func (s *LeadStore) Stats(ctx context.Context) (domain.Stats, error) {
	all, err := s.matching(ctx, domain.LeadFilter{})
	if err != nil {
		return domain.Stats{}, err
	}
	stats := domain.Stats{TotalLeads: len(all)}
	for _, l := range all {
		if l.Status == domain.StatusSold {
			stats.SoldLeads++
			stats.RevenueCents += l.EffectivePrice()
		}
	}
	return stats, nil
}

// matching returns a snapshot of the leads matching filter, newest first.
func (s *LeadStore) matching(ctx context.Context, filter domain.LeadFilter) ([]domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Transient("lead store unavailable", err)
	}
	if filter.MatchesNothing() {
		return []domain.Lead{}, nil
	}

	s.mu.RLock()
	entries := make([]*leadEntry, 0, len(s.leads))
	for _, e := range s.leads {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	city := strings.ToLower(strings.TrimSpace(filter.City))
	out := make([]domain.Lead, 0)
	for _, e := range entries {
		e.mu.Lock()
		l := cloneLead(e.lead)
		e.mu.Unlock()

		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.ClientID != nil && l.ClientID != *filter.ClientID {
			continue
		}
		if city != "" && !strings.Contains(strings.ToLower(l.City), city) {
			continue
		}
		if len(filter.SectorIDs) > 0 && !overlaps(l.SectorIDs, filter.SectorIDs) {
			continue
		}
		if filter.IDs != nil && !slices.Contains(filter.IDs, l.ID) {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func validateNewLead(l domain.Lead) error {
	switch {
	case strings.TrimSpace(l.Title) == "":
		return apperr.Validation("title is required")
	case strings.TrimSpace(l.Description) == "":
		return apperr.Validation("description is required")
	case len(l.SectorIDs) == 0:
		return apperr.Validation("at least one sector is required")
	}
	return nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

func cloneLead(l domain.Lead) domain.Lead {
	l.SectorIDs = slices.Clone(l.SectorIDs)
	if l.PriceCents != nil {
		p := *l.PriceCents
		l.PriceCents = &p
	}
	if l.ClaimantID != nil {
		c := *l.ClaimantID
		l.ClaimantID = &c
	}
	return l
}
