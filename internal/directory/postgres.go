package directory

import (
	"context"
	"errors"
	"time"

	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres reads profiles from the tables owned by the account services.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var (
	_ ports.ArtisanDirectory = (*Postgres)(nil)
	_ ports.ClientDirectory  = (*Postgres)(nil)
	_ ports.UserDirectory    = (*Postgres)(nil)
)

// NewPostgres creates a directory over pool.
func NewPostgres(pool *pgxpool.Pool, queryTimeout time.Duration) *Postgres {
	return &Postgres{pool: pool, timeout: queryTimeout}
}

const artisanSelect = `
	SELECT ap.id, ap.user_id, u.email, ap.company_name, ap.sector_ids, u.is_suspended
	FROM artisan_profiles ap
	JOIN users u ON u.id = ap.user_id`

const clientSelect = `
	SELECT cp.id, cp.user_id, u.email, cp.first_name, cp.last_name, COALESCE(cp.city, '')
	FROM client_profiles cp
	JOIN users u ON u.id = cp.user_id`

func scanArtisan(row pgx.Row) (ports.ArtisanProfile, error) {
	var p ports.ArtisanProfile
	err := row.Scan(&p.ID, &p.UserID, &p.Email, &p.CompanyName, &p.SectorIDs, &p.Suspended)
	return p, err
}

func scanClient(row pgx.Row) (ports.ClientProfile, error) {
	var p ports.ClientProfile
	err := row.Scan(&p.ID, &p.UserID, &p.Email, &p.FirstName, &p.LastName, &p.City)
	return p, err
}

func lookupError(notFound string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(notFound)
	}
	return apperr.Transient("directory unavailable", err)
}

func (p *Postgres) ArtisanByUserID(ctx context.Context, userID uuid.UUID) (ports.ArtisanProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	artisan, err := scanArtisan(p.pool.QueryRow(ctx, artisanSelect+` WHERE ap.user_id = $1 AND u.role = 'artisan'`, userID))
	if err != nil {
		return ports.ArtisanProfile{}, lookupError("artisan not found", err)
	}
	return artisan, nil
}

func (p *Postgres) ArtisansInSectors(ctx context.Context, sectorIDs []string) ([]ports.ArtisanProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, artisanSelect+` WHERE ap.sector_ids && $1 AND NOT u.is_suspended`, sectorIDs)
	if err != nil {
		return nil, apperr.Transient("directory unavailable", err)
	}
	defer rows.Close()

	out := make([]ports.ArtisanProfile, 0)
	for rows.Next() {
		artisan, err := scanArtisan(rows)
		if err != nil {
			return nil, apperr.Transient("directory unavailable", err)
		}
		out = append(out, artisan)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("directory unavailable", err)
	}
	return out, nil
}

func (p *Postgres) CountActiveArtisans(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var n int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM artisan_profiles ap
		JOIN users u ON u.id = ap.user_id
		WHERE NOT u.is_suspended
	`).Scan(&n)
	if err != nil {
		return 0, apperr.Transient("directory unavailable", err)
	}
	return n, nil
}

func (p *Postgres) ClientByUserID(ctx context.Context, userID uuid.UUID) (ports.ClientProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := scanClient(p.pool.QueryRow(ctx, clientSelect+` WHERE cp.user_id = $1`, userID))
	if err != nil {
		return ports.ClientProfile{}, lookupError("client not found", err)
	}
	return client, nil
}

func (p *Postgres) ClientByID(ctx context.Context, clientID uuid.UUID) (ports.ClientProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := scanClient(p.pool.QueryRow(ctx, clientSelect+` WHERE cp.id = $1`, clientID))
	if err != nil {
		return ports.ClientProfile{}, lookupError("client not found", err)
	}
	return client, nil
}

func (p *Postgres) ClientSummaries(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]ports.ClientSummary, error) {
	out := make(map[uuid.UUID]ports.ClientSummary, len(clientIDs))
	if len(clientIDs) == 0 {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, clientSelect+` WHERE cp.id = ANY($1)`, clientIDs)
	if err != nil {
		return nil, apperr.Transient("directory unavailable", err)
	}
	defer rows.Close()
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, apperr.Transient("directory unavailable", err)
		}
		out[client.ID] = summaryOf(client)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("directory unavailable", err)
	}
	return out, nil
}

func (p *Postgres) EmailsByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT id, email FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, apperr.Transient("directory unavailable", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, apperr.Transient("directory unavailable", err)
		}
		out[id] = email
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("directory unavailable", err)
	}
	return out, nil
}

func (p *Postgres) UserIDsByEmail(ctx context.Context, fragment string) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT id FROM users WHERE email ILIKE '%' || $1 || '%'`, fragment)
	if err != nil {
		return nil, apperr.Transient("directory unavailable", err)
	}
	defer rows.Close()

	out := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Transient("directory unavailable", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("directory unavailable", err)
	}
	return out, nil
}
