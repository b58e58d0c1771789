// Package repository implements the leads stores on PostgreSQL.
package repository

import (
	"context"
	"time"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `id, client_id, title, description, COALESCE(city, ''), sector_ids, status, price_cents, claimant_id, created_at, updated_at`

// Repository groups the pgx-backed stores of the leads domain.
type Repository struct {
	Leads        *LeadRepository
	Access       *AccessRepository
	Transactions *TransactionRepository
	Files        *FileRepository
}

var (
	_ ports.LeadStore         = (*LeadRepository)(nil)
	_ ports.AccessLedger      = (*AccessRepository)(nil)
	_ ports.TransactionLedger = (*TransactionRepository)(nil)
	_ ports.LeadFileIndex     = (*FileRepository)(nil)
)

// base carries the pool and the per-statement deadline.
type base struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func (b base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// LeadRepository implements ports.LeadStore.
type LeadRepository struct{ base }

// AccessRepository implements ports.AccessLedger.
type AccessRepository struct{ base }

// TransactionRepository implements ports.TransactionLedger.
type TransactionRepository struct{ base }

// FileRepository implements ports.LeadFileIndex.
type FileRepository struct{ base }

// New creates the stores; every statement is bounded by queryTimeout.
func New(pool *pgxpool.Pool, queryTimeout time.Duration) *Repository {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	b := base{pool: pool, timeout: queryTimeout}
	return &Repository{
		Leads:        &LeadRepository{b},
		Access:       &AccessRepository{b},
		Transactions: &TransactionRepository{b},
		Files:        &FileRepository{b},
	}
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var status string
	err := row.Scan(&l.ID, &l.ClientID, &l.Title, &l.Description, &l.City, &l.SectorIDs,
		&status, &l.PriceCents, &l.ClaimantID, &l.CreatedAt, &l.UpdatedAt)
	l.Status = domain.Status(status)
	return l, err
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *LeadRepository) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	if len(lead.SectorIDs) == 0 {
		return domain.Lead{}, apperr.Validation("at least one sector is required")
	}
	if lead.Title == "" || lead.Description == "" {
		return domain.Lead{}, apperr.Validation("title and description are required")
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, client_id, title, description, city, sector_ids, status, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, 'NEW', $7)
		RETURNING `+leadColumns,
		lead.ID, lead.ClientID, lead.Title, lead.Description, nullableText(lead.City), lead.SectorIDs, lead.PriceCents,
	)
	stored, err := scanLead(row)
	if err != nil {
		return domain.Lead{}, translate("create lead", err)
	}
	return stored, nil
}

func (r *LeadRepository) Get(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return domain.Lead{}, translateMissing("get lead", "lead not found", err)
	}
	return lead, nil
}

// CompareAndSetStatus is a single conditional UPDATE. A RESERVED lead only
// matches the claimant that holds it.
func (r *LeadRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next domain.Status, claimant *uuid.UUID) (bool, error) {
	if next.Claimed() && claimant == nil {
		return false, apperr.Validation("claimant required for " + string(next))
	}
	if !next.Claimed() {
		claimant = nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $3, claimant_id = $4::uuid, updated_at = now()
		WHERE id = $1
		  AND status = $2
		  AND (claimant_id IS NULL OR $4::uuid IS NULL OR claimant_id = $4::uuid)
	`, id, string(expected), string(next), claimant)
	if err != nil {
		return false, translate("compare and set status", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, translate("compare and set status", err)
	}
	if !exists {
		return false, apperr.NotFound("lead not found")
	}
	return false, nil
}

func (r *LeadRepository) List(ctx context.Context, filter domain.LeadFilter, page domain.PageRequest) ([]domain.Lead, error) {
	if filter.MatchesNothing() {
		return []domain.Lead{}, nil
	}
	page = page.Normalize()
	where, args, argIdx := buildLeadListWhere(filter)
	query := `SELECT ` + leadColumns + ` FROM leads ` + where +
		` ORDER BY created_at DESC, id DESC` + limitOffset(argIdx)
	args = append(args, page.PageSize, page.Offset())

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate("list leads", err)
	}
	defer rows.Close()

	items := make([]domain.Lead, 0, page.PageSize)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, translate("scan lead", err)
		}
		items = append(items, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list leads", err)
	}
	return items, nil
}

func (r *LeadRepository) Count(ctx context.Context, filter domain.LeadFilter) (int, error) {
	if filter.MatchesNothing() {
		return 0, nil
	}
	where, args, _ := buildLeadListWhere(filter)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads `+where, args...).Scan(&total); err != nil {
		return 0, translate("count leads", err)
	}
	return total, nil
}

func (r *LeadRepository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Lead, error) {
	out := make(map[uuid.UUID]domain.Lead, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, translate("get leads", err)
	}
	defer rows.Close()
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, translate("scan lead", err)
		}
		out[lead.ID] = lead
	}
	if err := rows.Err(); err != nil {
		return nil, translate("get leads", err)
	}
	return out, nil
}

// AdminUpdate applies the edit inside a transaction holding the row lock so
// it cannot interleave with a reserve or purchase on the same lead.
func (r *LeadRepository) AdminUpdate(ctx context.Context, id uuid.UUID, update domain.AdminUpdate) (domain.Lead, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, translate("admin update lead", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Lead{}, translateMissing("admin update lead", "lead not found", err)
	}
	next, err := update.Apply(current)
	if err != nil {
		return domain.Lead{}, err
	}

	stored, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads
		SET status = $2, claimant_id = $3, price_cents = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, string(next.Status), next.ClaimantID, next.PriceCents,
	))
	if err != nil {
		return domain.Lead{}, translate("admin update lead", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, translate("admin update lead", err)
	}
	return stored, nil
}

func (r *LeadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return translate("delete lead", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

func (r *LeadRepository) Stats(ctx context.Context) (domain.Stats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var stats domain.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'SOLD'),
			COALESCE(SUM(price_cents) FILTER (WHERE status = 'SOLD'), 0)
		FROM leads
	`).Scan(&stats.TotalLeads, &stats.SoldLeads, &stats.RevenueCents)
	if err != nil {
		return domain.Stats{}, translate("lead stats", err)
	}
	return stats, nil
}
