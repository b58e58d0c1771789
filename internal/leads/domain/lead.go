// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"slices"
	"strings"
	"time"

	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

// Status is the position of a lead in its claim lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusReserved Status = "RESERVED"
	StatusSold     Status = "SOLD"
	StatusClosed   Status = "CLOSED"
)

// ParseStatus accepts the canonical upper-case status names.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusNew, StatusReserved, StatusSold, StatusClosed:
		return s, nil
	}
	return "", apperr.Validation("invalid lead status")
}

// Claimed reports whether a lead in this status must carry a claimant.
func (s Status) Claimed() bool {
	return s == StatusReserved || s == StatusSold
}

// Reservable reports whether reserve may start from this status.
func (s Status) Reservable() bool {
	return s == StatusNew
}

// Purchasable reports whether purchase may start from this status.
func (s Status) Purchasable() bool {
	return s == StatusNew || s == StatusReserved
}

// Lead is a client's work request routed to artisans by sector.
type Lead struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	Title       string
	Description string
	City        string
	SectorIDs   []string
	Status      Status
	PriceCents  *int64
	ClaimantID  *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLead builds a NEW, unclaimed lead after checking the required fields.
func NewLead(clientID uuid.UUID, title, description, city string, sectorIDs []string, priceCents *int64) (Lead, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return Lead{}, apperr.Validation("title is required")
	}
	if description == "" {
		return Lead{}, apperr.Validation("description is required")
	}
	sectors := NormalizeSectors(sectorIDs)
	if len(sectors) == 0 {
		return Lead{}, apperr.Validation("at least one sector is required")
	}
	if priceCents != nil && *priceCents < 0 {
		return Lead{}, apperr.Validation("price must not be negative")
	}
	now := time.Now().UTC()
	return Lead{
		ID:          uuid.New(),
		ClientID:    clientID,
		Title:       title,
		Description: description,
		City:        strings.TrimSpace(city),
		SectorIDs:   sectors,
		Status:      StatusNew,
		PriceCents:  priceCents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CheckInvariant verifies that a claimant is present iff the status is claimed.
func (l Lead) CheckInvariant() error {
	if l.Status.Claimed() != (l.ClaimantID != nil) {
		return apperr.Internal("lead claimant does not match status").WithOp(string(l.Status))
	}
	if len(l.SectorIDs) == 0 {
		return apperr.Internal("lead has no sectors")
	}
	return nil
}

// EffectivePrice returns the stored price or zero.
func (l Lead) EffectivePrice() int64 {
	if l.PriceCents == nil {
		return 0
	}
	return *l.PriceCents
}

// ClaimedBy reports whether artisanID holds the current claim.
func (l Lead) ClaimedBy(artisanID uuid.UUID) bool {
	return l.ClaimantID != nil && *l.ClaimantID == artisanID
}

// NormalizeSectors trims, drops blanks and de-duplicates sector ids, keeping order.
func NormalizeSectors(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// IntersectSectors keeps the requested ids that the artisan actually serves.
// An empty request means all of the artisan's sectors.
func IntersectSectors(artisanSectors, requested []string) []string {
	requested = NormalizeSectors(requested)
	if len(requested) == 0 {
		return NormalizeSectors(artisanSectors)
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if slices.Contains(artisanSectors, id) {
			out = append(out, id)
		}
	}
	return out
}

// AdminUpdate is an administrative status and/or price edit.
// A nil Status leaves the status untouched; ClearPrice removes the price.
type AdminUpdate struct {
	Status     *Status
	PriceCents *int64
	ClearPrice bool
}

// Apply returns the lead after the edit, keeping the claimant invariant:
// NEW and CLOSED drop the claimant, RESERVED and SOLD require one to exist.
func (u AdminUpdate) Apply(l Lead) (Lead, error) {
	if u.PriceCents != nil && *u.PriceCents < 0 {
		return Lead{}, apperr.Validation("price must not be negative")
	}
	if u.Status != nil {
		next := *u.Status
		switch {
		case next.Claimed() && l.ClaimantID == nil:
			return Lead{}, apperr.Validation("lead has no claimant; cannot set status " + string(next))
		case !next.Claimed():
			l.ClaimantID = nil
		}
		l.Status = next
	}
	switch {
	case u.ClearPrice:
		l.PriceCents = nil
	case u.PriceCents != nil:
		price := *u.PriceCents
		l.PriceCents = &price
	}
	l.UpdatedAt = time.Now().UTC()
	return l, nil
}

// Stats summarises the marketplace for the admin dashboard.
type Stats struct {
	TotalLeads     int
	SoldLeads      int
	ActiveArtisans int
	RevenueCents   int64
}
