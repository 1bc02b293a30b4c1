package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
)

const defaultExternalTimeout = 10 * time.Second

// ReadCommitted is enough everywhere: capacity and idempotency races are
// closed by locks and unique indexes in the repositories.
var txOpts = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// PaymentError reports a processor failure. The transaction has already been
// persisted (FAILED) and is attached for the caller.
type PaymentError struct {
	Transaction *model.Transaction
	Err         error
}

func (e *PaymentError) Error() string {
	if e.Transaction == nil {
		return fmt.Sprintf("%v: %v", domain.ErrPaymentProcessing, e.Err)
	}
	return fmt.Sprintf("%v: transaction %s: %v", domain.ErrPaymentProcessing, e.Transaction.ID, e.Err)
}

func (e *PaymentError) Unwrap() []error { return []error{domain.ErrPaymentProcessing, e.Err} }

// noopNotifier is used when no notification service is wired.
type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, model.Event) {}

func notifierOrNoop(n adapter.NotificationService) adapter.NotificationService {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultExternalTimeout
	}
	return d
}

// detached keeps request values but survives caller cancellation, so a
// settled outcome is always recorded.
func detached(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

// findCurrentOrNil converts ErrNotFound into a nil membership.
func findCurrentOrNil(ctx context.Context, repo repository.MembershipRepository, tx repository.Tx, subscriptionID, userID string) (*model.Membership, error) {
	if userID == "" {
		return nil, nil
	}
	m, err := repo.FindCurrent(ctx, tx, subscriptionID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return m, err
}
