// Package ports defines consumer-driven interfaces for the leads domain:
// its own persistence and the collaborators it reads from.
package ports

import (
	"context"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadStore persists leads and is the only place status transitions are applied.
type LeadStore interface {
	Create(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	// Get returns NotFound when the lead does not exist.
	Get(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	// CompareAndSetStatus moves the lead from expected to next in one atomic
	// step. It returns false without error when the stored status (or a
	// different claimant) no longer matches, and NotFound when the lead is gone.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next domain.Status, claimant *uuid.UUID) (bool, error)
	List(ctx context.Context, filter domain.LeadFilter, page domain.PageRequest) ([]domain.Lead, error)
	Count(ctx context.Context, filter domain.LeadFilter) (int, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Lead, error)
	AdminUpdate(ctx context.Context, id uuid.UUID, update domain.AdminUpdate) (domain.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Stats fills every field except ActiveArtisans.
	Stats(ctx context.Context) (domain.Stats, error)
}

// AccessLedger holds append-only visibility grants.
type AccessLedger interface {
	// Grant is idempotent per (lead, artisan).
	Grant(ctx context.Context, leadID, artisanID uuid.UUID) error
	ListLeadIDsForArtisan(ctx context.Context, artisanID uuid.UUID) ([]uuid.UUID, error)
	HasGrant(ctx context.Context, leadID, artisanID uuid.UUID) (bool, error)
}

// TransactionLedger records lead purchase payments.
type TransactionLedger interface {
	// Record appends tx. When tx carries an idempotency key already used by the
	// same user, the stored transaction is returned with created=false.
	Record(ctx context.Context, tx domain.Transaction) (stored domain.Transaction, created bool, err error)
	// FindByIdempotencyKey returns NotFound when userID never used key.
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (domain.Transaction, error)
	Refund(ctx context.Context, id uuid.UUID) (domain.Transaction, error)
	List(ctx context.Context, filter domain.TransactionFilter, page domain.PageRequest) ([]domain.Transaction, int, error)
	CountForLead(ctx context.Context, leadID uuid.UUID) (int, error)
}

// EventPublisher publishes domain events without waiting for subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}
