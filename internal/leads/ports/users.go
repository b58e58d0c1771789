package ports

import (
	"context"

	"github.com/google/uuid"
)

// ArtisanProfile is what the leads domain needs to know about an artisan.
// ID is the profile id used as claimant and grant holder; UserID is the
// account id used as transaction payer.
type ArtisanProfile struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Email       string
	CompanyName string
	SectorIDs   []string
	Suspended   bool
}

// ClientProfile identifies the owner of leads.
type ClientProfile struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Email     string
	FirstName string
	LastName  string
	City      string
}

// ClientSummary is the client enrichment shown on lead listings.
type ClientSummary struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	City      string
}

// ArtisanDirectory resolves artisan accounts. Lookups by user id return
// NotFound when the user has no artisan profile.
type ArtisanDirectory interface {
	ArtisanByUserID(ctx context.Context, userID uuid.UUID) (ArtisanProfile, error)
	ArtisansInSectors(ctx context.Context, sectorIDs []string) ([]ArtisanProfile, error)
	CountActiveArtisans(ctx context.Context) (int, error)
}

// ClientDirectory resolves client accounts and listing summaries.
type ClientDirectory interface {
	ClientByUserID(ctx context.Context, userID uuid.UUID) (ClientProfile, error)
	ClientByID(ctx context.Context, clientID uuid.UUID) (ClientProfile, error)
	ClientSummaries(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]ClientSummary, error)
}

// UserDirectory resolves account emails for the transaction listing.
type UserDirectory interface {
	EmailsByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error)
	// UserIDsByEmail returns the users whose email contains fragment, case-insensitively.
	UserIDsByEmail(ctx context.Context, fragment string) ([]uuid.UUID, error)
}

// ThumbnailProvider returns a representative image URL per lead.
// Leads without attachments are absent from the map.
type ThumbnailProvider interface {
	Thumbnails(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

// LeadFileIndex returns the object key of the oldest attachment per lead.
// Leads without attachments are absent from the map.
type LeadFileIndex interface {
	FirstFileKeys(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID]string, error)
}
