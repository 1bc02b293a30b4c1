//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

func payIn(sub *model.Subscription, user, key string) usecase.CreatePaymentInput {
	return usecase.CreatePaymentInput{
		UserID:           user,
		SubscriptionID:   sub.ID,
		Amount:           sub.Price,
		PaymentMethodRef: "pm_card_visa",
		IdempotencyKey:   key,
	}
}

func TestLedgerUseCase_CreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should complete a payment and record the processor reference", func(t *testing.T) {
		// --- Arrange ---
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)

		// --- Act ---
		tx, err := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tx.Status != model.TransactionStatusCompleted || tx.ProcessorRef == nil || tx.ProcessedAt == nil {
			t.Fatalf("unexpected transaction: %+v", tx)
		}
		if tx.Currency != "USD" || tx.Amount != 1500 {
			t.Errorf("amount/currency mismatch: %d %s", tx.Amount, tx.Currency)
		}
		stored, _ := h.txRepo.FindByID(ctx, repository.NoTX, tx.ID)
		if stored.Status != model.TransactionStatusCompleted {
			t.Errorf("stored status = %s", stored.Status)
		}
	})

	t.Run("should charge once for a retried idempotency key", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)

		first, err := h.ledger.CreatePayment(ctx, payIn(sub, "payer", "order-42"))
		if err != nil {
			t.Fatal(err)
		}
		second, err := h.ledger.CreatePayment(ctx, payIn(sub, "payer", "order-42"))
		if err != nil {
			t.Fatal(err)
		}
		if first.ID != second.ID {
			t.Fatalf("expected the same transaction, got %s and %s", first.ID, second.ID)
		}
		if h.processor.Charges() != 1 {
			t.Fatalf("expected one charge, got %d", h.processor.Charges())
		}
	})

	t.Run("should charge once under concurrent retries", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		var wg sync.WaitGroup
		ids := make([]string, 6)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tx, err := h.ledger.CreatePayment(ctx, payIn(sub, "payer", "order-7"))
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				ids[i] = tx.ID
			}(i)
		}
		wg.Wait()

		for _, id := range ids[1:] {
			if id != ids[0] {
				t.Fatalf("all retries must resolve to one transaction")
			}
		}
		if h.processor.Charges() != 1 {
			t.Fatalf("expected one charge, got %d", h.processor.Charges())
		}
	})

	t.Run("should persist a failed payment and report it", func(t *testing.T) {
		// --- Arrange ---
		proc := &MockPaymentProcessor{ChargeFunc: func(context.Context, int64, string, string) (adapter.ChargeResult, error) {
			return adapter.ChargeResult{Success: false, Message: "card declined"}, nil
		}}
		h := newHarnessWith(proc, usecase.LedgerConfig{FeeRateBps: 500, ExternalTimeout: time.Second})
		sub := h.newGroup(ctx, "owner", 4)

		// --- Act ---
		tx, err := h.ledger.CreatePayment(ctx, payIn(sub, "payer", "k"))

		// --- Assert ---
		var perr *usecase.PaymentError
		if !errors.As(err, &perr) || !errors.Is(err, domain.ErrPaymentProcessing) {
			t.Fatalf("expected PaymentError, got %v", err)
		}
		if tx == nil || tx.Status != model.TransactionStatusFailed || tx.Reason() != "card declined" {
			t.Fatalf("expected failed transaction, got %+v", tx)
		}
		// a replay reports the stored failure without charging again
		again, err := h.ledger.CreatePayment(ctx, payIn(sub, "payer", "k"))
		if !errors.Is(err, domain.ErrPaymentProcessing) || again.ID != tx.ID {
			t.Fatalf("replay: %v", err)
		}
		if proc.Charges() != 1 {
			t.Fatalf("expected one charge, got %d", proc.Charges())
		}
		if got := h.notifier.Types(); got[len(got)-1] != model.EventPaymentFailed {
			t.Errorf("expected payment.failed event, got %v", got)
		}
	})

	t.Run("should fail the payment when the processor times out", func(t *testing.T) {
		proc := &MockPaymentProcessor{ChargeFunc: func(ctx context.Context, _ int64, _, _ string) (adapter.ChargeResult, error) {
			<-ctx.Done()
			return adapter.ChargeResult{}, ctx.Err()
		}}
		h := newHarnessWith(proc, usecase.LedgerConfig{FeeRateBps: 500, ExternalTimeout: 20 * time.Millisecond})
		sub := h.newGroup(ctx, "owner", 4)

		tx, err := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))
		if !errors.Is(err, domain.ErrPaymentProcessing) {
			t.Fatalf("expected ErrPaymentProcessing, got %v", err)
		}
		if tx.Status != model.TransactionStatusFailed || tx.Reason() != "processor timeout" {
			t.Fatalf("unexpected transaction: %+v", tx)
		}
	})

	t.Run("should validate input", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		in := payIn(sub, "payer", "")
		in.Amount = 0
		if _, err := h.ledger.CreatePayment(ctx, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if h.processor.Charges() != 0 {
			t.Fatal("processor must not be called for invalid input")
		}
	})
}

func TestLedgerUseCase_CreateRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("should refund a completed payment once", func(t *testing.T) {
		// --- Arrange ---
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		pay, _ := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))

		// --- Act ---
		refund, err := h.ledger.CreateRefund(ctx, pay.ID, "payer")

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if refund.Type != model.TransactionTypeRefund || refund.Status != model.TransactionStatusCompleted {
			t.Fatalf("unexpected refund: %+v", refund)
		}
		if refund.LinkedTransactionID == nil || *refund.LinkedTransactionID != pay.ID || refund.Amount != pay.Amount {
			t.Fatalf("refund must link to the payment and mirror its amount")
		}
		again, err := h.ledger.CreateRefund(ctx, pay.ID, "payer")
		if err != nil || again.ID != refund.ID {
			t.Fatalf("second refund should return the first: %v", err)
		}
		if h.processor.Refunds() != 1 {
			t.Fatalf("expected one processor refund, got %d", h.processor.Refunds())
		}
		got, err := h.ledger.RefundFor(ctx, pay.ID)
		if err != nil || got.ID != refund.ID {
			t.Fatalf("RefundFor: %v", err)
		}
		orig, _ := h.txRepo.FindByID(ctx, repository.NoTX, pay.ID)
		if orig.Status != model.TransactionStatusCompleted {
			t.Errorf("original payment must stay unchanged, got %s", orig.Status)
		}
	})

	t.Run("should reject ineligible refunds", func(t *testing.T) {
		proc := &MockPaymentProcessor{}
		h := newHarnessWith(proc, usecase.LedgerConfig{ExternalTimeout: time.Second})
		sub := h.newGroup(ctx, "owner", 4)
		pay, _ := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))

		proc.ChargeFunc = func(context.Context, int64, string, string) (adapter.ChargeResult, error) {
			return adapter.ChargeResult{Success: false, Message: "declined"}, nil
		}
		failed, _ := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))

		cases := map[string]struct{ id, requester string }{
			"unknown transaction": {"nope", "payer"},
			"someone else's":      {pay.ID, "intruder"},
			"failed payment":      {failed.ID, "payer"},
		}
		for name, c := range cases {
			if _, err := h.ledger.CreateRefund(ctx, c.id, c.requester); !errors.Is(err, domain.ErrRefundNotEligible) {
				t.Errorf("%s: expected ErrRefundNotEligible, got %v", name, err)
			}
		}
		if proc.Refunds() != 0 {
			t.Fatal("processor must not be called for ineligible refunds")
		}
	})

	t.Run("should allow a retry after a failed refund", func(t *testing.T) {
		proc := &MockPaymentProcessor{}
		h := newHarnessWith(proc, usecase.LedgerConfig{ExternalTimeout: time.Second})
		sub := h.newGroup(ctx, "owner", 4)
		pay, _ := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))

		proc.RefundFunc = func(context.Context, string, int64) (adapter.RefundResult, error) {
			return adapter.RefundResult{}, errors.New("gateway down")
		}
		failed, err := h.ledger.CreateRefund(ctx, pay.ID, "payer")
		if !errors.Is(err, domain.ErrPaymentProcessing) || failed.Status != model.TransactionStatusFailed {
			t.Fatalf("expected failed refund, got %v", err)
		}

		proc.RefundFunc = nil
		ok, err := h.ledger.CreateRefund(ctx, pay.ID, "payer")
		if err != nil || ok.ID == failed.ID || ok.Status != model.TransactionStatusCompleted {
			t.Fatalf("retry refund: %v", err)
		}
	})

	t.Run("should refund once under concurrent retries", func(t *testing.T) {
		// --- Arrange ---
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		pay, _ := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))
		var wg sync.WaitGroup
		ids := make([]string, 6)

		// --- Act ---
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := h.ledger.CreateRefund(ctx, pay.ID, "payer")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				ids[i] = r.ID
			}(i)
		}
		wg.Wait()

		// --- Assert ---
		for _, id := range ids[1:] {
			if id != ids[0] {
				t.Fatalf("all retries must resolve to one refund")
			}
		}
		if h.processor.Refunds() != 1 {
			t.Fatalf("expected one processor refund, got %d", h.processor.Refunds())
		}
		all, _ := h.txRepo.ListByUser(ctx, repository.NoTX, "payer")
		refunds := 0
		for _, tx := range all {
			if tx.Type == model.TransactionTypeRefund {
				refunds++
			}
		}
		if refunds != 1 {
			t.Fatalf("expected one refund row, got %d", refunds)
		}
	})

	t.Run("should refuse a refund once the payment was paid out", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		pay, _ := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))
		if _, err := h.ledger.RecordPayout(ctx, pay.ID); err != nil {
			t.Fatal(err)
		}

		_, err := h.ledger.CreateRefund(ctx, pay.ID, "payer")

		if !errors.Is(err, domain.ErrRefundNotEligible) {
			t.Fatalf("expected ErrRefundNotEligible, got %v", err)
		}
		if h.processor.Refunds() != 0 {
			t.Fatal("processor must not be called")
		}
	})
}

func TestLedgerUseCase_RecordPayout(t *testing.T) {
	ctx := context.Background()

	t.Run("should pay the owner the net share once", func(t *testing.T) {
		// --- Arrange ---
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		in := payIn(sub, "payer", "")
		in.Amount = 10000
		pay, _ := h.ledger.CreatePayment(ctx, in)

		// --- Act ---
		payout, err := h.ledger.RecordPayout(ctx, pay.ID)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payout.UserID != "owner" || payout.Amount != 9500 || payout.Status != model.TransactionStatusCompleted {
			t.Fatalf("unexpected payout: %+v", payout)
		}
		again, err := h.ledger.RecordPayout(ctx, pay.ID)
		if err != nil || again.ID != payout.ID {
			t.Fatalf("payout must be recorded once: %v", err)
		}
	})

	t.Run("should refuse payouts for refunded payments", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		pay, _ := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))
		if _, err := h.ledger.CreateRefund(ctx, pay.ID, "payer"); err != nil {
			t.Fatal(err)
		}
		if _, err := h.ledger.RecordPayout(ctx, pay.ID); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("should settle a payment once when refund and payout race", func(t *testing.T) {
		for round := 0; round < 20; round++ {
			// --- Arrange ---
			h := newHarness()
			sub := h.newGroup(ctx, "owner", 4)
			pay, _ := h.ledger.CreatePayment(ctx, payIn(sub, "payer", ""))
			var wg sync.WaitGroup
			var refundErr, payoutErr error

			// --- Act ---
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, refundErr = h.ledger.CreateRefund(ctx, pay.ID, "payer")
			}()
			go func() {
				defer wg.Done()
				_, payoutErr = h.ledger.RecordPayout(ctx, pay.ID)
			}()
			wg.Wait()

			// --- Assert ---
			if (refundErr == nil) == (payoutErr == nil) {
				t.Fatalf("round %d: exactly one settlement must win, refund=%v payout=%v", round, refundErr, payoutErr)
			}
			if refundErr != nil && !errors.Is(refundErr, domain.ErrRefundNotEligible) {
				t.Fatalf("round %d: unexpected refund error %v", round, refundErr)
			}
			if payoutErr != nil && !errors.Is(payoutErr, domain.ErrInvalidTransition) {
				t.Fatalf("round %d: unexpected payout error %v", round, payoutErr)
			}
		}
	})
}

func TestLedgerUseCase_Listings(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	subA := h.newGroup(ctx, "owner", 4)
	subB := h.newGroup(ctx, "owner", 4)
	m, err := h.membership.Join(ctx, subA.ID, "payer")
	if err != nil {
		t.Fatal(err)
	}
	first, _ := h.ledger.CreatePayment(ctx, payIn(subA, "payer", ""))
	time.Sleep(2 * time.Millisecond)
	second, _ := h.ledger.CreatePayment(ctx, payIn(subA, "payer", ""))
	_, _ = h.ledger.CreatePayment(ctx, payIn(subB, "payer", ""))

	all, err := h.ledger.GetTransactionsForUser(ctx, "payer")
	if err != nil || len(all) != 3 {
		t.Fatalf("GetTransactionsForUser: %d %v", len(all), err)
	}
	forMember, err := h.ledger.GetTransactionsForMember(ctx, m.ID)
	if err != nil || len(forMember) != 2 {
		t.Fatalf("GetTransactionsForMember: %d %v", len(forMember), err)
	}
	if forMember[0].ID != second.ID || forMember[1].ID != first.ID {
		t.Fatal("expected newest first")
	}
	if _, err := h.ledger.GetTransactionsForMember(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerUseCase_ReconcileStale(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	stale := model.NewTransaction(model.TransactionTypePayment, "payer", "sub", 100, "USD")
	stale.CreatedAt = time.Now().Add(-time.Hour)
	fresh := model.NewTransaction(model.TransactionTypePayment, "payer", "sub", 100, "USD")
	_ = h.txRepo.Create(ctx, repository.NoTX, stale)
	_ = h.txRepo.Create(ctx, repository.NoTX, fresh)

	n, err := h.ledger.ReconcileStale(ctx, 10*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected one reconciled row, got %d %v", n, err)
	}
	got, _ := h.txRepo.FindByID(ctx, repository.NoTX, stale.ID)
	if got.Status != model.TransactionStatusFailed || got.Reason() != "processor timeout" {
		t.Fatalf("unexpected stale row: %+v", got)
	}
	kept, _ := h.txRepo.FindByID(ctx, repository.NoTX, fresh.ID)
	if kept.Status != model.TransactionStatusPending {
		t.Fatalf("fresh row must stay pending, got %s", kept.Status)
	}
}
