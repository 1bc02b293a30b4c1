package usecase

import "github.com/gauravv01/subshare-sub000/internal/domain/model"

// Policy centralizes authorization decisions. All predicates are pure:
// callers load the subscription and the actor's membership beforehand.
// A nil membership means the actor has no current membership.
type Policy struct{}

// CanView: owner, ACTIVE member, platform admin, or anyone for PUBLIC.
func (Policy) CanView(sub *model.Subscription, actor model.Actor, actorMembership *model.Membership) bool {
	if sub == nil {
		return false
	}
	if sub.IsOwner(actor.UserID) || actor.IsPlatformAdmin() || sub.Visibility == model.VisibilityPublic {
		return true
	}
	return actorMembership.IsActive() && actorMembership.UserID == actor.UserID
}

// CanManageMembers: owner, or an ACTIVE membership with role ADMIN.
func (Policy) CanManageMembers(sub *model.Subscription, actor model.Actor, actorMembership *model.Membership) bool {
	if sub == nil || actor.IsZero() {
		return false
	}
	if sub.IsOwner(actor.UserID) {
		return true
	}
	return actorMembership.IsActive() &&
		actorMembership.UserID == actor.UserID &&
		actorMembership.SubscriptionID == sub.ID &&
		actorMembership.Role == model.RoleAdmin
}

// CanModifySubscription: owner or platform admin.
func (Policy) CanModifySubscription(sub *model.Subscription, actor model.Actor) bool {
	if sub == nil || actor.IsZero() {
		return false
	}
	return sub.IsOwner(actor.UserID) || actor.IsPlatformAdmin()
}

// CanGrantAdmin: only the owner sets or unsets another user's ADMIN role.
func (Policy) CanGrantAdmin(sub *model.Subscription, actor model.Actor) bool {
	return sub != nil && sub.IsOwner(actor.UserID)
}

// CanActOnMember decides remove/block/unblock/role targeting. The owner's own
// membership is untouchable; a non-owner admin may only target plain members.
func (p Policy) CanActOnMember(sub *model.Subscription, actor model.Actor, actorMembership, target *model.Membership) bool {
	if sub == nil || target == nil || sub.IsOwner(target.UserID) {
		return false
	}
	if !p.CanManageMembers(sub, actor, actorMembership) {
		return false
	}
	if sub.IsOwner(actor.UserID) {
		return true
	}
	return target.Role == model.RoleMember
}
