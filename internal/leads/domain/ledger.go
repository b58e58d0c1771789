package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccessGrant records that an artisan may see a lead's details. Never revoked.
type AccessGrant struct {
	LeadID    uuid.UUID
	ArtisanID uuid.UUID
	GrantedAt time.Time
}

// TransactionStatus is the bookkeeping state of a payment record.
type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "SUCCEEDED"
	TransactionRefunded  TransactionStatus = "REFUNDED"
)

// TransactionType is fixed to lead purchases.
type TransactionType string

const TransactionLeadPurchase TransactionType = "LEAD_PURCHASE"

// Transaction is a payment bookkeeping entry.
type Transaction struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	LeadID         uuid.UUID
	AmountCents    int64
	Type           TransactionType
	Status         TransactionStatus
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPurchaseTransaction builds a SUCCEEDED lead purchase record.
func NewPurchaseTransaction(userID, leadID uuid.UUID, amountCents int64, idempotencyKey string) Transaction {
	now := time.Now().UTC()
	return Transaction{
		ID:             uuid.New(),
		UserID:         userID,
		LeadID:         leadID,
		AmountCents:    amountCents,
		Type:           TransactionLeadPurchase,
		Status:         TransactionSucceeded,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TransactionView is a transaction joined with the lead title and payer email.
type TransactionView struct {
	Transaction
	LeadTitle  string
	PayerEmail string
}
