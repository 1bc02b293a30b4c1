package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn within a storage transaction and passes the
// backend-specific handle as tx (pgx.Tx for Postgres, *memory.Tx in memory).
// Repositories MUST accept a nil tx (non-transactional path).
// If fn returns an error nothing fn wrote is kept.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

// CommitHooker is implemented by tx handles that can defer work until the
// transaction commits. Hooks are dropped on rollback.
type CommitHooker interface {
	AfterCommit(fn func())
}

// AfterCommit runs fn once tx commits, or right away when tx is nil or cannot
// hold hooks.
func AfterCommit(tx Tx, fn func()) {
	if h, ok := tx.(CommitHooker); ok {
		h.AfterCommit(fn)
		return
	}
	fn()
}

type freshReadsKey struct{}

// WithFreshReads marks ctx so that read-through caches go to storage.
func WithFreshReads(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshReadsKey{}, true)
}

func FreshReads(ctx context.Context) bool {
	v, _ := ctx.Value(freshReadsKey{}).(bool)
	return v
}
