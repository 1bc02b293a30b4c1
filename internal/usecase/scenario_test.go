//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
)

// A group fills up, a member pays and is refunded, then leaves and frees a seat.
func TestSharedSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	sub := h.newGroup(ctx, "alice", 3)
	for _, u := range []string{"bob", "carol"} {
		if _, err := h.membership.Join(ctx, sub.ID, u); err != nil {
			t.Fatalf("join %s: %v", u, err)
		}
	}
	if _, err := h.membership.Join(ctx, sub.ID, "dave"); !errors.Is(err, domain.ErrSubscriptionFull) {
		t.Fatalf("expected the group to be full, got %v", err)
	}

	pay, err := h.ledger.CreatePayment(ctx, payIn(sub, "bob", "bob-2026-10"))
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	payout, err := h.ledger.RecordPayout(ctx, pay.ID)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if payout.UserID != "alice" || payout.Amount != 1425 {
		t.Fatalf("unexpected payout: %+v", payout)
	}

	carolPay, _ := h.ledger.CreatePayment(ctx, payIn(sub, "carol", ""))
	if _, err := h.ledger.CreateRefund(ctx, carolPay.ID, "carol"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if err := h.membership.Leave(ctx, sub.ID, "carol"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := h.membership.Join(ctx, sub.ID, "dave"); err != nil {
		t.Fatalf("dave should take the freed seat: %v", err)
	}

	members, _ := h.membership.GetMembers(ctx, sub.ID)
	if len(members) != 3 {
		t.Fatalf("expected 3 current members, got %d", len(members))
	}
	history, _ := h.ledger.GetTransactionsForUser(ctx, "carol")
	if len(history) != 2 {
		t.Fatalf("carol should see payment and refund, got %d", len(history))
	}
	types := map[model.EventType]int{}
	for _, ty := range h.notifier.Types() {
		types[ty]++
	}
	if types[model.EventPaymentCompleted] != 2 || types[model.EventRefundCompleted] != 1 || types[model.EventPayoutRecorded] != 1 {
		t.Fatalf("unexpected events: %v", types)
	}
}
