// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
	"github.com/gauravv01/subshare-sub000/internal/infra/logging"
	"github.com/gauravv01/subshare-sub000/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

type LedgerUseCase interface {
	// CreatePayment charges the payer once per idempotency key.
	CreatePayment(ctx context.Context, in CreatePaymentInput) (*model.Transaction, error)
	// CreateRefund appends a refund linked to a completed payment of the requester.
	CreateRefund(ctx context.Context, originalTransactionID, requesterID string) (*model.Transaction, error)
	// RecordPayout appends the owner's share of a completed payment.
	RecordPayout(ctx context.Context, paymentID string) (*model.Transaction, error)
	// RefundFor returns the live refund linked to a payment, or ErrNotFound.
	RefundFor(ctx context.Context, paymentID string) (*model.Transaction, error)
	GetTransactionsForUser(ctx context.Context, userID string) ([]*model.Transaction, error)
	GetTransactionsForMember(ctx context.Context, membershipID string) ([]*model.Transaction, error)
	// ReconcileStale fails PENDING rows older than olderThan; returns how many.
	ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type CreatePaymentInput struct {
	UserID           string
	SubscriptionID   string
	Amount           int64 // minor units
	PaymentMethodRef string
	Description      string
	IdempotencyKey   string // optional; retries with the same key replay the first result
}

type LedgerConfig struct {
	FeeRateBps      int
	ExternalTimeout time.Duration
}

type ledgerUC struct {
	txs         repository.TransactionRepository
	subs        repository.SubscriptionRepository
	memberships repository.MembershipRepository
	processor   adapter.PaymentProcessor
	notifier    adapter.NotificationService
	cfg         LedgerConfig
	log         *zerolog.Logger
}

func NewLedgerUseCase(
	txs repository.TransactionRepository,
	subs repository.SubscriptionRepository,
	memberships repository.MembershipRepository,
	processor adapter.PaymentProcessor,
	notifier adapter.NotificationService,
	cfg LedgerConfig,
	logger *zerolog.Logger,
) *ledgerUC {
	cfg.ExternalTimeout = timeoutOrDefault(cfg.ExternalTimeout)
	return &ledgerUC{
		txs:         txs,
		subs:        subs,
		memberships: memberships,
		processor:   processor,
		notifier:    notifierOrNoop(notifier),
		cfg:         cfg,
		log:         logger,
	}
}

func (u *ledgerUC) CreatePayment(ctx context.Context, in CreatePaymentInput) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.CreatePayment")()

	if in.UserID == "" {
		return nil, domain.Validation("user_id", "is required")
	}
	if in.Amount <= 0 {
		return nil, domain.Validation("amount", "must be positive")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		existing, err := u.txs.FindByIdempotencyKey(ctx, repository.NoTX, in.UserID, key)
		if err == nil {
			return u.replay(existing)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	sub, err := u.subs.FindByID(repository.WithFreshReads(ctx), repository.NoTX, in.SubscriptionID)
	if err != nil {
		return nil, err
	}

	t := model.NewTransaction(model.TransactionTypePayment, in.UserID, sub.ID, in.Amount, sub.Currency)
	t.PaymentMethodRef = in.PaymentMethodRef
	t.Description = in.Description
	if key != "" {
		t.IdempotencyKey = &key
	}
	if err := u.txs.Create(ctx, repository.NoTX, t); err != nil {
		// A concurrent retry with the same key won the insert.
		if errors.Is(err, domain.ErrConflict) && key != "" {
			existing, ferr := u.txs.FindByIdempotencyKey(ctx, repository.NoTX, in.UserID, key)
			if ferr != nil {
				return nil, ferr
			}
			return u.replay(existing)
		}
		return nil, err
	}
	metrics.IncTransaction(string(t.Type), string(t.Status))

	callCtx, cancel := context.WithTimeout(ctx, u.cfg.ExternalTimeout)
	start := time.Now()
	res, chargeErr := u.processor.Charge(callCtx, t.Amount, t.Currency, t.PaymentMethodRef)
	cancel()
	metrics.ObserveExternalCall(u.processor.Name(), "charge", chargeErr == nil && res.Success, time.Since(start))

	if cause := settlementFailure(chargeErr, res.Success, res.Message); cause != nil {
		if err := u.finish(ctx, t, model.TransactionStatusFailed, nil, cause.Error()); err != nil {
			return nil, err
		}
		u.log.Warn().Err(cause).Str("transaction_id", t.ID).Str("user_id", t.UserID).Msg("payment failed")
		u.emit(ctx, model.EventPaymentFailed, t)
		return t, &PaymentError{Transaction: t, Err: cause}
	}

	ref := res.Reference
	if err := u.finish(ctx, t, model.TransactionStatusCompleted, &ref, ""); err != nil {
		return nil, err
	}
	metrics.AddRevenue(t.Currency, t.Amount)
	u.log.Info().Str("transaction_id", t.ID).Str("user_id", t.UserID).Int64("amount", t.Amount).
		Str("processor_ref", logging.Redact(ref, false)).Msg("payment completed")
	u.emit(ctx, model.EventPaymentCompleted, t)
	return t, nil
}

func (u *ledgerUC) CreateRefund(ctx context.Context, originalTransactionID, requesterID string) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.CreateRefund")()

	orig, err := u.txs.FindByID(ctx, repository.NoTX, originalTransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRefundNotEligible
		}
		return nil, err
	}
	if !orig.IsRefundable(requesterID) {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrRefundNotEligible, orig.Type, orig.Status)
	}
	if existing, err := u.txs.FindLinked(ctx, repository.NoTX, orig.ID, model.TransactionTypeRefund); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := u.txs.FindLinked(ctx, repository.NoTX, orig.ID, model.TransactionTypePayout); err == nil {
		return nil, fmt.Errorf("%w: payment %s was paid out", domain.ErrRefundNotEligible, orig.ID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	r := model.NewTransaction(model.TransactionTypeRefund, orig.UserID, orig.SubscriptionID, orig.Amount, orig.Currency)
	r.PaymentMethodRef = orig.PaymentMethodRef
	r.Description = "refund of " + orig.ID
	r.LinkedTransactionID = &orig.ID
	if err := u.txs.Create(ctx, repository.NoTX, r); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Either a concurrent retry won, or a payout settled the payment first.
			existing, ferr := u.txs.FindLinked(ctx, repository.NoTX, orig.ID, model.TransactionTypeRefund)
			if errors.Is(ferr, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: payment %s was paid out", domain.ErrRefundNotEligible, orig.ID)
			}
			return existing, ferr
		}
		return nil, err
	}
	metrics.IncTransaction(string(r.Type), string(r.Status))

	reference := ""
	if orig.ProcessorRef != nil {
		reference = *orig.ProcessorRef
	}
	callCtx, cancel := context.WithTimeout(ctx, u.cfg.ExternalTimeout)
	start := time.Now()
	res, refundErr := u.processor.Refund(callCtx, reference, r.Amount)
	cancel()
	metrics.ObserveExternalCall(u.processor.Name(), "refund", refundErr == nil && res.Success, time.Since(start))

	if cause := settlementFailure(refundErr, res.Success, res.Message); cause != nil {
		if err := u.finish(ctx, r, model.TransactionStatusFailed, nil, cause.Error()); err != nil {
			return nil, err
		}
		u.log.Warn().Err(cause).Str("transaction_id", r.ID).Str("original_id", orig.ID).Msg("refund failed")
		return r, &PaymentError{Transaction: r, Err: cause}
	}

	ref := res.ID
	if err := u.finish(ctx, r, model.TransactionStatusCompleted, &ref, ""); err != nil {
		return nil, err
	}
	u.log.Info().Str("transaction_id", r.ID).Str("original_id", orig.ID).Int64("amount", r.Amount).Msg("refund completed")
	u.emit(ctx, model.EventRefundCompleted, r)
	return r, nil
}

func (u *ledgerUC) RecordPayout(ctx context.Context, paymentID string) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.RecordPayout")()

	p, err := u.txs.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Type != model.TransactionTypePayment || p.Status != model.TransactionStatusCompleted {
		return nil, domain.Validation("transaction", "must be a completed payment")
	}
	if existing, err := u.txs.FindLinked(ctx, repository.NoTX, p.ID, model.TransactionTypePayout); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := u.txs.FindLinked(ctx, repository.NoTX, p.ID, model.TransactionTypeRefund); err == nil {
		return nil, fmt.Errorf("%w: payment %s was refunded", domain.ErrInvalidTransition, p.ID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	sub, err := u.subs.FindByID(repository.WithFreshReads(ctx), repository.NoTX, p.SubscriptionID)
	if err != nil {
		return nil, err
	}
	split, err := SplitRevenue(p.Amount, u.cfg.FeeRateBps)
	if err != nil {
		return nil, err
	}
	if split.OwnerNet <= 0 {
		return nil, domain.Validation("amount", "leaves nothing to pay out")
	}

	now := time.Now().UTC()
	payout := model.NewTransaction(model.TransactionTypePayout, sub.OwnerID, sub.ID, split.OwnerNet, p.Currency)
	payout.Status = model.TransactionStatusCompleted
	payout.ProcessedAt = &now
	payout.LinkedTransactionID = &p.ID
	payout.Description = fmt.Sprintf("owner share of %s (platform fee %d)", p.ID, split.PlatformFee)
	if err := u.txs.Create(ctx, repository.NoTX, payout); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			existing, ferr := u.txs.FindLinked(ctx, repository.NoTX, p.ID, model.TransactionTypePayout)
			if errors.Is(ferr, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: payment %s was refunded", domain.ErrInvalidTransition, p.ID)
			}
			return existing, ferr
		}
		return nil, err
	}
	metrics.IncTransaction(string(payout.Type), string(payout.Status))
	u.emit(ctx, model.EventPayoutRecorded, payout)
	return payout, nil
}

func (u *ledgerUC) RefundFor(ctx context.Context, paymentID string) (*model.Transaction, error) {
	return u.txs.FindLinked(ctx, repository.NoTX, paymentID, model.TransactionTypeRefund)
}

func (u *ledgerUC) GetTransactionsForUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.GetTransactionsForUser")()
	return u.txs.ListByUser(ctx, repository.NoTX, userID)
}

func (u *ledgerUC) GetTransactionsForMember(ctx context.Context, membershipID string) ([]*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.GetTransactionsForMember")()

	m, err := u.memberships.FindByID(ctx, repository.NoTX, membershipID)
	if err != nil {
		return nil, err
	}
	return u.txs.ListByUserAndSubscription(ctx, repository.NoTX, m.UserID, m.SubscriptionID)
}

func (u *ledgerUC) ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	pending, err := u.txs.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		return 0, err
	}
	reason := "processor timeout"
	n := 0
	for _, t := range pending {
		ok, err := u.txs.MarkTerminal(ctx, repository.NoTX, t.ID, model.TransactionStatusFailed, nil, &reason, time.Now().UTC())
		if err != nil {
			u.log.Error().Err(err).Str("transaction_id", t.ID).Msg("reconcile: mark failed")
			continue
		}
		if ok {
			n++
			metrics.IncTransaction(string(t.Type), string(model.TransactionStatusFailed))
		}
	}
	return n, nil
}

// --- helpers ---

// finish records the single terminal transition of t. It is detached from the
// caller's cancellation: a settled charge must never be lost.
func (u *ledgerUC) finish(ctx context.Context, t *model.Transaction, status model.TransactionStatus, processorRef *string, reason string) error {
	dctx, cancel := detached(ctx, u.cfg.ExternalTimeout)
	defer cancel()

	now := time.Now().UTC()
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	ok, err := u.txs.MarkTerminal(dctx, repository.NoTX, t.ID, status, processorRef, reasonPtr, now)
	if err != nil {
		u.log.Error().Err(err).Str("transaction_id", t.ID).Str("status", string(status)).Msg("failed to record settlement")
		return err
	}
	if !ok {
		// Someone else (the reconciler) finished it first; report what is stored.
		stored, err := u.txs.FindByID(dctx, repository.NoTX, t.ID)
		if err != nil {
			return err
		}
		*t = *stored
		return nil
	}
	t.Status = status
	t.ProcessorRef = processorRef
	t.FailureReason = reasonPtr
	t.ProcessedAt = &now
	metrics.IncTransaction(string(t.Type), string(status))
	return nil
}

// replay returns a stored idempotent result; a failed one is reported again.
func (u *ledgerUC) replay(t *model.Transaction) (*model.Transaction, error) {
	if t.Status == model.TransactionStatusFailed {
		return t, &PaymentError{Transaction: t, Err: errors.New(t.Reason())}
	}
	return t, nil
}

func (u *ledgerUC) emit(ctx context.Context, typ model.EventType, t *model.Transaction) {
	ev := model.NewEvent(typ, t.SubscriptionID, t.UserID)
	ev.TransactionID = t.ID
	ev.Attributes = map[string]string{"amount": fmt.Sprintf("%d", t.Amount), "currency": t.Currency}
	u.notifier.Notify(ctx, ev)
}

func settlementFailure(err error, success bool, message string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New("processor timeout")
	case err != nil:
		return err
	case !success:
		if message == "" {
			message = "declined"
		}
		return errors.New(message)
	}
	return nil
}
