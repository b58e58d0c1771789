// Package leads provides the lead reservation bounded context.
// This file defines the persistence bundle other packages hand to the module.
package leads

import (
	"time"

	"leadmarket_backend/internal/leads/memstore"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/internal/leads/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores groups the three stores the leads services depend on.
// Files is nil for the memory driver, which keeps no attachments.
type Stores struct {
	Leads        ports.LeadStore
	Access       ports.AccessLedger
	Transactions ports.TransactionLedger
	Files        ports.LeadFileIndex
}

// NewMemoryStores returns process-local stores for development and tests.
func NewMemoryStores() Stores {
	return Stores{
		Leads:        memstore.NewLeadStore(),
		Access:       memstore.NewAccessLedger(),
		Transactions: memstore.NewTransactionLedger(),
	}
}

// NewPostgresStores returns stores backed by the given pool.
func NewPostgresStores(pool *pgxpool.Pool, queryTimeout time.Duration) Stores {
	repo := repository.New(pool, queryTimeout)
	return Stores{
		Leads:        repo.Leads,
		Access:       repo.Access,
		Transactions: repo.Transactions,
		Files:        repo.Files,
	}
}
