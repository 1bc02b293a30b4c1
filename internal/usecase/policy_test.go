//go:build !integration

package usecase_test

import (
	"testing"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

func TestPolicy(t *testing.T) {
	var p usecase.Policy
	pub := &model.Subscription{ID: "s1", OwnerID: "owner", Visibility: model.VisibilityPublic}
	priv := &model.Subscription{ID: "s2", OwnerID: "owner", Visibility: model.VisibilityPrivate}

	member := func(sub *model.Subscription, user string, role model.MemberRole, status model.MembershipStatus) *model.Membership {
		return &model.Membership{ID: user + "-m", SubscriptionID: sub.ID, UserID: user, Role: role, Status: status}
	}

	t.Run("CanView", func(t *testing.T) {
		cases := []struct {
			name string
			sub  *model.Subscription
			a    model.Actor
			m    *model.Membership
			want bool
		}{
			{"anyone sees public", pub, actor("x"), nil, true},
			{"owner sees private", priv, actor("owner"), nil, true},
			{"active member sees private", priv, actor("u"), member(priv, "u", model.RoleMember, model.MembershipStatusActive), true},
			{"pending member does not", priv, actor("u"), member(priv, "u", model.RoleMember, model.MembershipStatusPending), false},
			{"outsider does not", priv, actor("x"), nil, false},
			{"platform admin does", priv, actor("ops", model.ClaimPlatformAdmin), nil, true},
		}
		for _, c := range cases {
			if got := p.CanView(c.sub, c.a, c.m); got != c.want {
				t.Errorf("%s: got %v", c.name, got)
			}
		}
	})

	t.Run("CanManageMembers", func(t *testing.T) {
		if !p.CanManageMembers(pub, actor("owner"), nil) {
			t.Error("owner manages members")
		}
		if !p.CanManageMembers(pub, actor("a"), member(pub, "a", model.RoleAdmin, model.MembershipStatusActive)) {
			t.Error("active admin manages members")
		}
		if p.CanManageMembers(pub, actor("a"), member(pub, "a", model.RoleAdmin, model.MembershipStatusBlocked)) {
			t.Error("blocked admin must not manage")
		}
		if p.CanManageMembers(pub, actor("a"), member(priv, "a", model.RoleAdmin, model.MembershipStatusActive)) {
			t.Error("admin of another subscription must not manage")
		}
		if p.CanManageMembers(pub, actor("ops", model.ClaimPlatformAdmin), nil) {
			t.Error("platform admin does not moderate members")
		}
	})

	t.Run("CanModifySubscription and CanGrantAdmin", func(t *testing.T) {
		if !p.CanModifySubscription(pub, actor("owner")) || !p.CanModifySubscription(pub, actor("ops", model.ClaimPlatformAdmin)) {
			t.Error("owner and platform admin modify")
		}
		if p.CanModifySubscription(pub, actor("x")) || p.CanModifySubscription(pub, model.Actor{}) {
			t.Error("others must not modify")
		}
		if !p.CanGrantAdmin(pub, actor("owner")) || p.CanGrantAdmin(pub, actor("ops", model.ClaimPlatformAdmin)) {
			t.Error("only the owner grants admin")
		}
	})

	t.Run("CanActOnMember", func(t *testing.T) {
		admin := member(pub, "a", model.RoleAdmin, model.MembershipStatusActive)
		otherAdmin := member(pub, "b", model.RoleAdmin, model.MembershipStatusActive)
		plain := member(pub, "c", model.RoleMember, model.MembershipStatusActive)
		ownerM := member(pub, "owner", model.RoleAdmin, model.MembershipStatusActive)

		if !p.CanActOnMember(pub, actor("owner"), ownerM, otherAdmin) {
			t.Error("owner acts on admins")
		}
		if !p.CanActOnMember(pub, actor("a"), admin, plain) {
			t.Error("admin acts on plain members")
		}
		if p.CanActOnMember(pub, actor("a"), admin, otherAdmin) {
			t.Error("admin must not act on another admin")
		}
		if p.CanActOnMember(pub, actor("owner"), ownerM, ownerM) {
			t.Error("owner membership is untouchable")
		}
		if p.CanActOnMember(pub, actor("c"), plain, admin) {
			t.Error("plain member must not act")
		}
		if p.CanActOnMember(nil, actor("owner"), ownerM, plain) {
			t.Error("nil subscription must deny")
		}
	})
}
