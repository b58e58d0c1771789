package domain

import "github.com/google/uuid"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a 1-based page number and a page size.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize applies the defaults and clamps the size to [1, MaxPageSize].
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize <= 0:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalCount int
}

// EmptyPage returns a page with no items for req.
func EmptyPage[T any](req PageRequest) Page[T] {
	req = req.Normalize()
	return Page[T]{Items: []T{}, Page: req.Page, PageSize: req.PageSize}
}

// LeadFilter carries the optional criteria of every lead listing.
// Zero values mean "no restriction", except IDs: a non-nil empty slice matches nothing.
type LeadFilter struct {
	Status    *Status
	City      string
	SectorIDs []string
	ClientID  *uuid.UUID
	IDs       []uuid.UUID
}

// MatchesNothing reports whether the filter can be answered without a query.
func (f LeadFilter) MatchesNothing() bool {
	return f.IDs != nil && len(f.IDs) == 0
}

// TransactionFilter carries the optional criteria of the admin transaction listing.
// A non-nil empty UserIDs matches nothing.
type TransactionFilter struct {
	Status       *TransactionStatus
	ArtisanEmail string
	UserIDs      []uuid.UUID
}
