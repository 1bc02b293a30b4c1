package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, type, status, amount, currency, user_id, subscription_id, payment_method_ref, description,
       idempotency_key, linked_transaction_id, processor_ref, failure_reason, created_at, processed_at`

// Create appends a row. The partial unique indexes turn a duplicate key, or a
// second settlement (live refund or payout) of one payment, into
// domain.ErrConflict.
func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`
	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.Type, t.Status, t.Amount, t.Currency, t.UserID, t.SubscriptionID, t.PaymentMethodRef, t.Description,
		t.IdempotencyKey, t.LinkedTransactionID, t.ProcessorRef, t.FailureReason, t.CreatedAt, t.ProcessedAt)
	return mapError(err, "transaction "+t.ID)
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1;`
	return r.queryOne(ctx, tx, "transaction "+id, q, id)
}

func (r *transactionRepo) FindByIdempotencyKey(ctx context.Context, tx repository.Tx, userID, key string) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id=$1 AND idempotency_key=$2;`
	return r.queryOne(ctx, tx, "transaction with key "+key, q, userID, key)
}

func (r *transactionRepo) FindLinked(ctx context.Context, tx repository.Tx, originalID string, typ model.TransactionType) (*model.Transaction, error) {
	const q = `
SELECT ` + transactionColumns + `
  FROM transactions
 WHERE linked_transaction_id=$1 AND type=$2 AND status IN ('pending','completed')
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, string(typ)+" for "+originalID, q, originalID, typ)
}

func (r *transactionRepo) MarkTerminal(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus, processorRef, reason *string, processedAt time.Time) (bool, error) {
	const q = `
UPDATE transactions
   SET status=$2, processor_ref=$3, failure_reason=$4, processed_at=$5
 WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status, processorRef, reason, processedAt)
	if err != nil {
		return false, mapError(err, "transaction "+id)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.FindByID(ctx, tx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *transactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Transaction, error) {
	const q = `
SELECT ` + transactionColumns + `
  FROM transactions
 WHERE user_id=$1
 ORDER BY created_at DESC, id DESC;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *transactionRepo) ListByUserAndSubscription(ctx context.Context, tx repository.Tx, userID, subscriptionID string) ([]*model.Transaction, error) {
	const q = `
SELECT ` + transactionColumns + `
  FROM transactions
 WHERE user_id=$1 AND subscription_id=$2
 ORDER BY created_at DESC, id DESC;`
	return r.queryMany(ctx, tx, q, userID, subscriptionID)
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	const q = `
SELECT ` + transactionColumns + `
  FROM transactions
 WHERE status='pending' AND created_at < $1
 ORDER BY created_at DESC, id DESC
 LIMIT $2;`
	if limit <= 0 {
		limit = 100
	}
	return r.queryMany(ctx, tx, q, olderThan, limit)
}

func (r *transactionRepo) queryOne(ctx context.Context, tx repository.Tx, what, q string, args ...interface{}) (*model.Transaction, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapError(err, what)
	}
	return t, nil
}

func (r *transactionRepo) queryMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Transaction, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapError(err, "transactions")
	}
	defer rows.Close()
	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError(err, "transaction row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "transaction rows")
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var typ, status string
	if err := row.Scan(
		&t.ID, &typ, &status, &t.Amount, &t.Currency, &t.UserID, &t.SubscriptionID, &t.PaymentMethodRef, &t.Description,
		&t.IdempotencyKey, &t.LinkedTransactionID, &t.ProcessorRef, &t.FailureReason, &t.CreatedAt, &t.ProcessedAt,
	); err != nil {
		return nil, err
	}
	t.Type = model.TransactionType(typ)
	t.Status = model.TransactionStatus(status)
	return &t, nil
}
