package repository

import (
	"context"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
)

// TransactionRepository is the port for the append-mostly ledger.
type TransactionRepository interface {
	// Create appends a row. A duplicate idempotency key, a second live refund
	// or a second payout for the same payment yields domain.ErrConflict.
	Create(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, tx Tx, userID, key string) (*model.Transaction, error)
	// FindLinked returns the pending or completed row of typ linked to originalID.
	FindLinked(ctx context.Context, tx Tx, originalID string, typ model.TransactionType) (*model.Transaction, error)

	// MarkTerminal atomically moves a PENDING row to a terminal status.
	// It reports false when the row was no longer pending.
	MarkTerminal(ctx context.Context, tx Tx, id string, status model.TransactionStatus, processorRef, reason *string, processedAt time.Time) (bool, error)

	// Listings are ordered by created_at DESC, id DESC.
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Transaction, error)
	ListByUserAndSubscription(ctx context.Context, tx Tx, userID, subscriptionID string) ([]*model.Transaction, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
}
