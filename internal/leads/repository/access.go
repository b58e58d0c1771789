package repository

import (
	"context"

	"github.com/google/uuid"
)

func (r *AccessRepository) Grant(ctx context.Context, leadID, artisanID uuid.UUID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_access_grants (lead_id, artisan_id)
		VALUES ($1, $2)
		ON CONFLICT (lead_id, artisan_id) DO NOTHING
	`, leadID, artisanID)
	return translate("grant access", err)
}

func (r *AccessRepository) ListLeadIDsForArtisan(ctx context.Context, artisanID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT lead_id FROM lead_access_grants
		WHERE artisan_id = $1
		ORDER BY granted_at DESC
	`, artisanID)
	if err != nil {
		return nil, translate("list grants", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, translate("scan grant", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list grants", err)
	}
	return ids, nil
}

func (r *AccessRepository) HasGrant(ctx context.Context, leadID, artisanID uuid.UUID) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM lead_access_grants WHERE lead_id = $1 AND artisan_id = $2)
	`, leadID, artisanID).Scan(&exists)
	if err != nil {
		return false, translate("check grant", err)
	}
	return exists, nil
}
