package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, lead_id, amount_cents, type, status, COALESCE(idempotency_key, ''), created_at, updated_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var tx domain.Transaction
	var txType, status string
	err := row.Scan(&tx.ID, &tx.UserID, &tx.LeadID, &tx.AmountCents, &txType, &status,
		&tx.IdempotencyKey, &tx.CreatedAt, &tx.UpdatedAt)
	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.TransactionStatus(status)
	return tx, err
}

// Record inserts tx. A repeated idempotency key for the same user hits the
// partial unique index and the original row is returned instead.
func (r *TransactionRepository) Record(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	if tx.AmountCents < 0 {
		return domain.Transaction{}, false, apperr.Validation("amount must not be negative")
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	stored, err := scanTransaction(r.pool.QueryRow(ctx, `
		INSERT INTO lead_transactions (id, user_id, lead_id, amount_cents, type, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+transactionColumns,
		tx.ID, tx.UserID, tx.LeadID, tx.AmountCents, string(tx.Type), string(tx.Status), nullableText(tx.IdempotencyKey),
	))
	if err == nil {
		return stored, true, nil
	}
	if !isUniqueViolation(err) || tx.IdempotencyKey == "" {
		return domain.Transaction{}, false, translate("record transaction", err)
	}

	existing, err := r.FindByIdempotencyKey(ctx, tx.UserID, tx.IdempotencyKey)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	return existing, false, nil
}

func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (domain.Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := scanTransaction(r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM lead_transactions
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key))
	if err != nil {
		return domain.Transaction{}, translateMissing("find transaction", "transaction not found", err)
	}
	return tx, nil
}

func (r *TransactionRepository) Refund(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	refunded, err := scanTransaction(r.pool.QueryRow(ctx, `
		UPDATE lead_transactions
		SET status = 'REFUNDED', updated_at = now()
		WHERE id = $1 AND status = 'SUCCEEDED'
		RETURNING `+transactionColumns, id))
	if err == nil {
		return refunded, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, translate("refund transaction", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lead_transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return domain.Transaction{}, translate("refund transaction", err)
	}
	if !exists {
		return domain.Transaction{}, apperr.NotFound("transaction not found")
	}
	return domain.Transaction{}, apperr.Conflict("transaction already refunded")
}

func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter, page domain.PageRequest) ([]domain.Transaction, int, error) {
	if filter.UserIDs != nil && len(filter.UserIDs) == 0 {
		return []domain.Transaction{}, 0, nil
	}
	page = page.Normalize()

	clauses := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	argIdx := 1
	if filter.Status != nil {
		clauses = append(clauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*filter.Status))
		argIdx++
	}
	if filter.UserIDs != nil {
		clauses = append(clauses, fmt.Sprintf("user_id = ANY($%d)", argIdx))
		args = append(args, filter.UserIDs)
		argIdx++
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lead_transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, translate("count transactions", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM lead_transactions `+where+
		` ORDER BY created_at DESC, id DESC`+limitOffset(argIdx),
		append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, translate("list transactions", err)
	}
	defer rows.Close()

	items := make([]domain.Transaction, 0, page.PageSize)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, translate("scan transaction", err)
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate("list transactions", err)
	}
	return items, total, nil
}

func (r *TransactionRepository) CountForLead(ctx context.Context, leadID uuid.UUID) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lead_transactions WHERE lead_id = $1`, leadID).Scan(&n); err != nil {
		return 0, translate("count transactions", err)
	}
	return n, nil
}
