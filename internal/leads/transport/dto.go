package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type CreateProjectRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description" validate:"required,min=10,max=5000"`
	City        string   `json:"city,omitempty" validate:"max=120"`
	SectorIDs   []string `json:"sectorIds" validate:"required,min=1,dive,required"`
}

type PurchaseRequest struct {
	AmountCents *int64 `json:"amountCents,omitempty" validate:"omitempty,gt=0"`
}

// AdminUpdateProjectRequest edits status and/or price. A null priceCents
// clears the price; an absent one leaves it alone.
type AdminUpdateProjectRequest struct {
	Status     *string       `json:"status,omitempty" validate:"omitempty,leadstatus"`
	PriceCents OptionalInt64 `json:"priceCents" validate:"-"`
}

// ListQuery is the shared pagination and filter query string. limit is
// accepted as an alias of pageSize.
type ListQuery struct {
	Page      int      `form:"page" validate:"omitempty,min=1"`
	PageSize  int      `form:"pageSize" validate:"omitempty,min=1"`
	Limit     int      `form:"limit" validate:"omitempty,min=1"`
	Status    string   `form:"status" validate:"omitempty,leadstatus"`
	City      string   `form:"city" validate:"max=120"`
	SectorIDs []string `form:"sectorIds"`
}

type TransactionListQuery struct {
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1"`
	Limit    int    `form:"limit" validate:"omitempty,min=1"`
	Status   string `form:"status" validate:"omitempty,txstatus"`
	Email    string `form:"email" validate:"max=254"`
}

// Response DTOs
type ClientSummaryResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	City      string    `json:"city,omitempty"`
}

type LeadResponse struct {
	ID           uuid.UUID              `json:"id"`
	ClientID     uuid.UUID              `json:"clientId"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	City         string                 `json:"city,omitempty"`
	SectorIDs    []string               `json:"sectorIds"`
	Status       string                 `json:"status"`
	PriceCents   *int64                 `json:"priceCents"`
	ClaimantID   *uuid.UUID             `json:"claimantId,omitempty"`
	ThumbnailURL string                 `json:"thumbnailUrl,omitempty"`
	Client       *ClientSummaryResponse `json:"client,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

type PageResponse[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

type ReserveResponse struct {
	OK        bool      `json:"ok"`
	ProjectID uuid.UUID `json:"projectId"`
}

type PurchaseResponse struct {
	OK            bool      `json:"ok"`
	ProjectID     uuid.UUID `json:"projectId"`
	TransactionID uuid.UUID `json:"transactionId"`
	AmountCents   int64     `json:"amountCents"`
	Replayed      bool      `json:"replayed,omitempty"`
}

type TransactionResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	LeadID      uuid.UUID `json:"leadId"`
	LeadTitle   string    `json:"leadTitle,omitempty"`
	PayerEmail  string    `json:"payerEmail,omitempty"`
	AmountCents int64     `json:"amountCents"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type StatsResponse struct {
	TotalLeads     int   `json:"totalLeads"`
	SoldLeads      int   `json:"soldLeads"`
	ActiveArtisans int   `json:"activeArtisans"`
	RevenueCents   int64 `json:"revenueCents"`
}
