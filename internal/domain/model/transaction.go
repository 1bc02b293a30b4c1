package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
	TransactionTypePayout  TransactionType = "payout"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"   // created, awaiting processor
	TransactionStatusCompleted TransactionStatus = "completed" // settled at processor
	TransactionStatusFailed    TransactionStatus = "failed"    // processor declined or timed out
	TransactionStatusRefunded  TransactionStatus = "refunded"  // reserved; refunds are linked rows
)

// Terminal statuses never transition again.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusRefunded
}

// Transaction is one append-mostly ledger row. Amount is in minor units.
type Transaction struct {
	ID                  string // ULID, sortable by creation
	Type                TransactionType
	Status              TransactionStatus
	Amount              int64
	Currency            string
	UserID              string // payer for payments and refunds, payee for payouts
	SubscriptionID      string
	PaymentMethodRef    string
	Description         string
	IdempotencyKey      *string
	LinkedTransactionID *string // original payment for refunds and payouts
	ProcessorRef        *string // processor reference after settlement
	FailureReason       *string
	CreatedAt           time.Time
	ProcessedAt         *time.Time // set on the terminal transition
}

// NewTransaction builds a PENDING ledger row.
func NewTransaction(typ TransactionType, userID, subscriptionID string, amount int64, currency string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:             ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Type:           typ,
		Status:         TransactionStatusPending,
		Amount:         amount,
		Currency:       currency,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		CreatedAt:      now,
	}
}

// IsRefundable reports whether t may be the original of a refund for userID.
func (t *Transaction) IsRefundable(userID string) bool {
	return t != nil &&
		t.Type == TransactionTypePayment &&
		t.Status == TransactionStatusCompleted &&
		t.UserID == userID
}

func (t *Transaction) Reason() string {
	if t.FailureReason == nil {
		return ""
	}
	return *t.FailureReason
}
