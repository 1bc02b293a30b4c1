// Package memory is an in-process storage backend for development and tests.
// All maps are guarded by one mutex; each repository call is atomic.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
)

// Store holds every table of the backend.
type Store struct {
	mu            sync.Mutex
	subscriptions map[string]*model.Subscription
	memberships   map[string]*model.Membership
	transactions  map[string]*model.Transaction
}

func NewStore() *Store {
	return &Store{
		subscriptions: make(map[string]*model.Subscription),
		memberships:   make(map[string]*model.Membership),
		transactions:  make(map[string]*model.Transaction),
	}
}

// Tx is the handle passed to repositories by TxManager. It records how to
// undo each write so that a failed fn leaves no trace.
type Tx struct {
	store *Store
	undo  []func()
	hooks []func()
}

var _ repository.CommitHooker = (*Tx)(nil)

func (t *Tx) AfterCommit(fn func()) { t.hooks = append(t.hooks, fn) }

func (s *Store) record(tx repository.Tx, undo func()) error {
	if tx == nil {
		return nil
	}
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return domain.ErrInvalidExecContext
	}
	t.undo = append(t.undo, undo)
	return nil
}

func (s *Store) checkTx(tx repository.Tx) error {
	if tx == nil {
		return nil
	}
	if t, ok := tx.(*Tx); !ok || t.store != s {
		return domain.ErrInvalidExecContext
	}
	return nil
}

// TxManager implements repository.TransactionManager over a Store.
type TxManager struct {
	store *Store
}

var _ repository.TransactionManager = (*TxManager)(nil)

func NewTxManager(s *Store) *TxManager { return &TxManager{store: s} }

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx := &Tx{store: m.store}
	defer func() {
		if p := recover(); p != nil {
			m.rollback(tx)
			panic(p)
		}
		if err != nil {
			m.rollback(tx)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, h := range tx.hooks {
		h()
	}
	return nil
}

func (m *TxManager) rollback(tx *Tx) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func cloneSubscription(s *model.Subscription) *model.Subscription {
	c := *s
	return &c
}

func cloneMembership(m *model.Membership) *model.Membership {
	c := *m
	return &c
}

func cloneTransaction(t *model.Transaction) *model.Transaction {
	c := *t
	c.IdempotencyKey = cloneStr(t.IdempotencyKey)
	c.LinkedTransactionID = cloneStr(t.LinkedTransactionID)
	c.ProcessorRef = cloneStr(t.ProcessorRef)
	c.FailureReason = cloneStr(t.FailureReason)
	if t.ProcessedAt != nil {
		p := *t.ProcessedAt
		c.ProcessedAt = &p
	}
	return &c
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
}
