//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
	"github.com/gauravv01/subshare-sub000/internal/infra/db/memory"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

func TestSubscriptionUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should create an active subscription with the owner as active admin", func(t *testing.T) {
		// --- Arrange ---
		h := newHarness()

		// --- Act ---
		sub := h.newGroup(ctx, "owner", 4)

		// --- Assert ---
		if sub.Status != model.SubscriptionStatusActive || sub.Currency != "USD" {
			t.Fatalf("unexpected subscription: %+v", sub)
		}
		if sub.AccountCredential != "sealed:owner:login:secret" {
			t.Errorf("credential should be sealed for the owner, got %q", sub.AccountCredential)
		}
		m, err := h.members.FindCurrent(ctx, repository.NoTX, sub.ID, "owner")
		if err != nil {
			t.Fatalf("owner membership missing: %v", err)
		}
		if m.Role != model.RoleAdmin || m.Status != model.MembershipStatusActive {
			t.Errorf("owner membership should be active admin, got %s/%s", m.Role, m.Status)
		}
		if got := h.notifier.Types(); len(got) != 1 || got[0] != model.EventSubscriptionCreated {
			t.Errorf("expected one created event, got %v", got)
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		h := newHarness()
		cases := map[string]usecase.CreateSubscriptionInput{
			"capacity too small": {Title: "x", Price: 100, Cycle: model.CycleMonthly, MaxMembers: 1, Visibility: model.VisibilityPublic},
			"capacity too big":   {Title: "x", Price: 100, Cycle: model.CycleMonthly, MaxMembers: 7, Visibility: model.VisibilityPublic},
			"empty title":        {Title: "  ", Price: 100, Cycle: model.CycleMonthly, MaxMembers: 4, Visibility: model.VisibilityPublic},
			"zero price":         {Title: "x", Price: 0, Cycle: model.CycleMonthly, MaxMembers: 4, Visibility: model.VisibilityPublic},
			"unknown cycle":      {Title: "x", Price: 100, Cycle: "daily", MaxMembers: 4, Visibility: model.VisibilityPublic},
		}
		for name, in := range cases {
			if _, err := h.subs.Create(ctx, actor("owner"), in); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("%s: expected ErrValidation, got %v", name, err)
			}
		}
	})

	t.Run("should store nothing when sealing the credential fails", func(t *testing.T) {
		// --- Arrange ---
		h := newHarness()
		cipher := &MockCipher{EncryptFunc: func(context.Context, string, string) (string, error) {
			return "", errors.New("kms unavailable")
		}}
		uc := usecase.NewSubscriptionUseCase(h.subsRepo, h.members, cipher, nil, memory.NewTxManager(h.store), time.Second, newTestLogger())

		// --- Act ---
		_, err := uc.Create(ctx, actor("owner"), usecase.CreateSubscriptionInput{
			Title: "x", Price: 100, Cycle: model.CycleMonthly, MaxMembers: 4, Visibility: model.VisibilityPublic, Credential: "pw",
		})

		// --- Assert ---
		if !errors.Is(err, domain.ErrPersistence) {
			t.Fatalf("expected ErrPersistence, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_GetAndReveal(t *testing.T) {
	ctx := context.Background()

	t.Run("should redact the credential for non-owners", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)

		got, err := h.subs.Get(ctx, sub.ID, actor("stranger"))
		if err != nil {
			t.Fatalf("public subscription should be visible: %v", err)
		}
		if got.AccountCredential != "" {
			t.Error("credential must be redacted for non-owners")
		}
		own, _ := h.subs.Get(ctx, sub.ID, actor("owner"))
		if own.AccountCredential == "" {
			t.Error("owner should see the sealed credential")
		}
	})

	t.Run("should hide private subscriptions from outsiders", func(t *testing.T) {
		h := newHarness()
		sub, err := h.subs.Create(ctx, actor("owner"), usecase.CreateSubscriptionInput{
			Title: "Private", Price: 100, Cycle: model.CycleYearly, MaxMembers: 3, Visibility: model.VisibilityPrivate,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := h.subs.Get(ctx, sub.ID, actor("stranger")); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := h.subs.Get(ctx, sub.ID, actor("ops", model.ClaimPlatformAdmin)); err != nil {
			t.Fatalf("platform admin should see it: %v", err)
		}
	})

	t.Run("should reveal the credential only to the owner", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		if _, err := h.membership.Join(ctx, sub.ID, "member"); err != nil {
			t.Fatal(err)
		}

		plain, err := h.subs.RevealCredential(ctx, sub.ID, actor("owner"))
		if err != nil || plain != "login:secret" {
			t.Fatalf("owner reveal: %q %v", plain, err)
		}
		if _, err := h.subs.RevealCredential(ctx, sub.ID, actor("member")); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden for a member, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_UpdateCapacity(t *testing.T) {
	ctx := context.Background()

	t.Run("should refuse to shrink below the active count", func(t *testing.T) {
		// --- Arrange ---
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		for _, u := range []string{"a", "b"} {
			if _, err := h.membership.Join(ctx, sub.ID, u); err != nil {
				t.Fatal(err)
			}
		}

		// --- Act ---
		_, err := h.subs.UpdateCapacity(ctx, sub.ID, actor("owner"), 2)

		// --- Assert ---
		if !errors.Is(err, domain.ErrCapacityConflict) {
			t.Fatalf("expected ErrCapacityConflict, got %v", err)
		}
		got, err := h.subs.UpdateCapacity(ctx, sub.ID, actor("owner"), 6)
		if err != nil || got.MaxMembers != 6 {
			t.Fatalf("grow capacity: %v", err)
		}
	})

	t.Run("should reject non-owners", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		if _, err := h.subs.UpdateCapacity(ctx, sub.ID, actor("stranger"), 5); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if _, err := h.subs.UpdateCapacity(ctx, sub.ID, actor("ops", model.ClaimPlatformAdmin), 5); err != nil {
			t.Fatalf("platform admin may modify: %v", err)
		}
	})
}

func TestSubscriptionUseCase_StatusAndTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("should block joins once closed and keep closed terminal", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)

		if _, err := h.subs.Close(ctx, sub.ID, actor("owner")); err != nil {
			t.Fatal(err)
		}
		if _, err := h.membership.Join(ctx, sub.ID, "late"); !errors.Is(err, domain.ErrSubscriptionInactive) {
			t.Fatalf("expected ErrSubscriptionInactive, got %v", err)
		}
		if _, err := h.subs.UpdateStatus(ctx, sub.ID, actor("owner"), model.SubscriptionStatusActive); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("should pause and resume", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		if _, err := h.subs.UpdateStatus(ctx, sub.ID, actor("owner"), model.SubscriptionStatusPaused); err != nil {
			t.Fatal(err)
		}
		if _, err := h.membership.Join(ctx, sub.ID, "u"); !errors.Is(err, domain.ErrSubscriptionInactive) {
			t.Fatalf("expected ErrSubscriptionInactive while paused, got %v", err)
		}
		if _, err := h.subs.UpdateStatus(ctx, sub.ID, actor("owner"), model.SubscriptionStatusActive); err != nil {
			t.Fatal(err)
		}
		if _, err := h.membership.Join(ctx, sub.ID, "u"); err != nil {
			t.Fatalf("join after resume: %v", err)
		}
	})

	t.Run("should transfer ownership to an active member and reseal the credential", func(t *testing.T) {
		// --- Arrange ---
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		if _, err := h.membership.Join(ctx, sub.ID, "heir"); err != nil {
			t.Fatal(err)
		}

		// --- Act ---
		got, err := h.subs.TransferOwnership(ctx, sub.ID, actor("owner"), "heir")

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.OwnerID != "heir" || got.AccountCredential != "sealed:heir:login:secret" {
			t.Fatalf("unexpected result: %+v", got)
		}
		m, _ := h.members.FindCurrent(ctx, repository.NoTX, sub.ID, "heir")
		if m.Role != model.RoleAdmin {
			t.Errorf("new owner should be admin, got %s", m.Role)
		}
		if _, err := h.subs.RevealCredential(ctx, sub.ID, actor("owner")); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("former owner should lose credential access, got %v", err)
		}
	})

	t.Run("should refuse a transfer to a non-member or by a non-owner", func(t *testing.T) {
		h := newHarness()
		sub := h.newGroup(ctx, "owner", 4)
		if _, err := h.subs.TransferOwnership(ctx, sub.ID, actor("owner"), "stranger"); !errors.Is(err, domain.ErrNotMember) {
			t.Fatalf("expected ErrNotMember, got %v", err)
		}
		_, _ = h.membership.Join(ctx, sub.ID, "m")
		if _, err := h.subs.TransferOwnership(ctx, sub.ID, actor("m"), "m"); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}
