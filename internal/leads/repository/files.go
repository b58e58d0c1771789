package repository

import (
	"context"

	"github.com/google/uuid"
)

func (r *FileRepository) FirstFileKeys(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	keys := make(map[uuid.UUID]string, len(leadIDs))
	if len(leadIDs) == 0 {
		return keys, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (lead_id) lead_id, file_key
		FROM lead_files
		WHERE lead_id = ANY($1)
		ORDER BY lead_id, created_at ASC
	`, leadIDs)
	if err != nil {
		return nil, translate("list lead files", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			leadID uuid.UUID
			key    string
		)
		if err := rows.Scan(&leadID, &key); err != nil {
			return nil, translate("scan lead file", err)
		}
		keys[leadID] = key
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list lead files", err)
	}
	return keys, nil
}
