package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
)

type TransactionRepo struct{ s *Store }

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

func NewTransactionRepo(s *Store) *TransactionRepo { return &TransactionRepo{s: s} }

func (r *TransactionRepo) Create(_ context.Context, tx repository.Tx, t *model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	if _, ok := r.s.transactions[t.ID]; ok {
		return fmt.Errorf("%w: transaction %s exists", domain.ErrConflict, t.ID)
	}
	for _, e := range r.s.transactions {
		if violatesUnique(e, t) {
			return fmt.Errorf("%w: transaction for %s", domain.ErrConflict, t.UserID)
		}
	}
	r.s.transactions[t.ID] = cloneTransaction(t)
	id := t.ID
	return r.s.record(tx, func() { delete(r.s.transactions, id) })
}

// violatesUnique mirrors the unique indexes of the Postgres schema.
func violatesUnique(existing, t *model.Transaction) bool {
	if t.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
		existing.UserID == t.UserID && *existing.IdempotencyKey == *t.IdempotencyKey {
		return true
	}
	if t.LinkedTransactionID == nil || existing.LinkedTransactionID == nil ||
		*existing.LinkedTransactionID != *t.LinkedTransactionID {
		return false
	}
	return settles(existing) && settles(t)
}

// settles reports whether t is a live refund or a payout. A payment holds at
// most one such row.
func settles(t *model.Transaction) bool {
	switch t.Type {
	case model.TransactionTypeRefund:
		return isLive(t.Status)
	case model.TransactionTypePayout:
		return true
	}
	return false
}

func isLive(s model.TransactionStatus) bool {
	return s == model.TransactionStatusPending || s == model.TransactionStatusCompleted
}

func (r *TransactionRepo) FindByID(_ context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, notFound("transaction", id)
	}
	return cloneTransaction(t), nil
}

func (r *TransactionRepo) FindByIdempotencyKey(_ context.Context, tx repository.Tx, userID, key string) (*model.Transaction, error) {
	return r.findOne(tx, "transaction with key "+key, func(t *model.Transaction) bool {
		return t.UserID == userID && t.IdempotencyKey != nil && *t.IdempotencyKey == key
	})
}

func (r *TransactionRepo) FindLinked(_ context.Context, tx repository.Tx, originalID string, typ model.TransactionType) (*model.Transaction, error) {
	return r.findOne(tx, string(typ)+" for "+originalID, func(t *model.Transaction) bool {
		return t.Type == typ && t.LinkedTransactionID != nil && *t.LinkedTransactionID == originalID && isLive(t.Status)
	})
}

func (r *TransactionRepo) findOne(tx repository.Tx, what string, match func(*model.Transaction) bool) (*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	for _, t := range r.s.transactions {
		if match(t) {
			return cloneTransaction(t), nil
		}
	}
	return nil, notFound("transaction", what)
}

func (r *TransactionRepo) MarkTerminal(_ context.Context, tx repository.Tx, id string, status model.TransactionStatus, processorRef, reason *string, processedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return false, err
	}
	prev, ok := r.s.transactions[id]
	if !ok {
		return false, notFound("transaction", id)
	}
	if prev.Status != model.TransactionStatusPending {
		return false, nil
	}
	next := cloneTransaction(prev)
	next.Status = status
	next.ProcessorRef = cloneStr(processorRef)
	next.FailureReason = cloneStr(reason)
	at := processedAt
	next.ProcessedAt = &at
	r.s.transactions[id] = next
	return true, r.s.record(tx, func() { r.s.transactions[id] = prev })
}

func (r *TransactionRepo) ListByUser(_ context.Context, tx repository.Tx, userID string) ([]*model.Transaction, error) {
	return r.list(tx, 0, func(t *model.Transaction) bool { return t.UserID == userID })
}

func (r *TransactionRepo) ListByUserAndSubscription(_ context.Context, tx repository.Tx, userID, subscriptionID string) ([]*model.Transaction, error) {
	return r.list(tx, 0, func(t *model.Transaction) bool {
		return t.UserID == userID && t.SubscriptionID == subscriptionID
	})
}

func (r *TransactionRepo) ListPendingOlderThan(_ context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	return r.list(tx, limit, func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusPending && t.CreatedAt.Before(olderThan)
	})
}

func (r *TransactionRepo) list(tx repository.Tx, limit int, match func(*model.Transaction) bool) ([]*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	var out []*model.Transaction
	for _, t := range r.s.transactions {
		if match(t) {
			out = append(out, cloneTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
