package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
	"github.com/gauravv01/subshare-sub000/internal/infra/logging"
	"github.com/gauravv01/subshare-sub000/internal/infra/metrics"
)

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

// MembershipUseCase manages who occupies the seats of a subscription.
type MembershipUseCase interface {
	// Join takes a seat. Capacity check and insert are atomic per subscription.
	Join(ctx context.Context, subscriptionID, userID string) (*model.Membership, error)
	Leave(ctx context.Context, subscriptionID, userID string) error
	UpdateMemberRole(ctx context.Context, subscriptionID, targetUserID string, role model.MemberRole, requester model.Actor) (*model.Membership, error)
	Remove(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error
	Block(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error
	Unblock(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error
	Approve(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error
	GetMembers(ctx context.Context, subscriptionID string) ([]*model.Membership, error)
}

type membershipUC struct {
	subs        repository.SubscriptionRepository
	memberships repository.MembershipRepository
	notifier    adapter.NotificationService
	tm          repository.TransactionManager
	policy      Policy
	log         *zerolog.Logger
}

func NewMembershipUseCase(
	subs repository.SubscriptionRepository,
	memberships repository.MembershipRepository,
	notifier adapter.NotificationService,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *membershipUC {
	return &membershipUC{
		subs:        subs,
		memberships: memberships,
		notifier:    notifierOrNoop(notifier),
		tm:          tm,
		log:         logger,
	}
}

func (uc *membershipUC) Join(ctx context.Context, subscriptionID, userID string) (*model.Membership, error) {
	defer logging.TraceDuration(uc.log, "MembershipUC.Join")()

	if userID == "" {
		return nil, domain.Validation("user_id", "is required")
	}

	var joined *model.Membership
	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		// Invites are not supported, so private groups are invisible to joiners.
		if sub.Visibility != model.VisibilityPublic && !sub.IsOwner(userID) {
			return domain.ErrNotFound
		}
		if sub.Status != model.SubscriptionStatusActive {
			return domain.ErrSubscriptionInactive
		}
		existing, err := findCurrentOrNil(ctx, uc.memberships, tx, subscriptionID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyMember
		}

		status := model.MembershipStatusActive
		if sub.RequiresApproval {
			status = model.MembershipStatusPending
		}
		m := model.NewMembership(subscriptionID, userID, model.RoleMember, status)
		if err := uc.memberships.InsertWithinCapacity(ctx, tx, m, sub.MaxMembers); err != nil {
			return err
		}
		joined = m
		return nil
	})
	metrics.IncMembershipJoin(joinOutcome(err))
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("subscription_id", subscriptionID).Str("user_id", userID).Str("status", string(joined.Status)).Msg("member joined")
	uc.notifier.Notify(ctx, model.NewEvent(model.EventMembershipJoined, subscriptionID, userID))
	return joined, nil
}

func (uc *membershipUC) Leave(ctx context.Context, subscriptionID, userID string) error {
	defer logging.TraceDuration(uc.log, "MembershipUC.Leave")()

	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotMember
			}
			return err
		}
		m, err := findCurrentOrNil(ctx, uc.memberships, tx, subscriptionID, userID)
		if err != nil {
			return err
		}
		if m == nil || (m.Status != model.MembershipStatusActive && m.Status != model.MembershipStatusPending) {
			return domain.ErrNotMember
		}

		if sub.IsOwner(userID) {
			if sub.Status != model.SubscriptionStatusClosed {
				return fmt.Errorf("%w: close the subscription or transfer ownership first", domain.ErrOwnerCannotLeave)
			}
			active, err := uc.memberships.CountActive(ctx, tx, subscriptionID)
			if err != nil {
				return err
			}
			if active > 1 {
				return fmt.Errorf("%w: %d other members remain", domain.ErrOwnerCannotLeave, active-1)
			}
		}
		return uc.memberships.UpdateStatus(ctx, tx, m.ID, m.Status, model.MembershipStatusLeft)
	})
	if err != nil {
		return err
	}
	uc.emitChange(ctx, subscriptionID, userID, model.MembershipStatusLeft)
	return nil
}

func (uc *membershipUC) UpdateMemberRole(ctx context.Context, subscriptionID, targetUserID string, role model.MemberRole, requester model.Actor) (*model.Membership, error) {
	defer logging.TraceDuration(uc.log, "MembershipUC.UpdateMemberRole")()

	if !role.Valid() {
		return nil, domain.Validation("role", "is unknown")
	}
	var out *model.Membership
	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		sub, actorM, err := uc.loadManageable(ctx, tx, subscriptionID, requester)
		if err != nil {
			return err
		}
		target, err := findCurrentOrNil(ctx, uc.memberships, tx, subscriptionID, targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.ErrNotMember
		}
		if sub.IsOwner(target.UserID) {
			return fmt.Errorf("%w: the owner is always an admin", domain.ErrForbidden)
		}
		if (role == model.RoleAdmin || target.Role == model.RoleAdmin) && !uc.policy.CanGrantAdmin(sub, requester) {
			return fmt.Errorf("%w: only the owner can change admin roles", domain.ErrForbidden)
		}
		if !uc.policy.CanActOnMember(sub, requester, actorM, target) {
			return domain.ErrForbidden
		}
		if target.Role != role {
			if err := uc.memberships.UpdateRole(ctx, tx, target.ID, role); err != nil {
				return err
			}
			target.Role = role
		}
		out = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := model.NewEvent(model.EventMembershipChanged, subscriptionID, targetUserID)
	ev.Attributes = map[string]string{"role": string(role)}
	uc.notifier.Notify(ctx, ev)
	return out, nil
}

func (uc *membershipUC) Remove(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error {
	defer logging.TraceDuration(uc.log, "MembershipUC.Remove")()
	return uc.actOnMember(ctx, subscriptionID, targetUserID, requester, model.MembershipStatusRemoved,
		func(ctx context.Context, tx repository.Tx, _ *model.Subscription, target *model.Membership) error {
			return uc.memberships.UpdateStatus(ctx, tx, target.ID, target.Status, model.MembershipStatusRemoved)
		})
}

func (uc *membershipUC) Block(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error {
	defer logging.TraceDuration(uc.log, "MembershipUC.Block")()
	return uc.actOnMember(ctx, subscriptionID, targetUserID, requester, model.MembershipStatusBlocked,
		func(ctx context.Context, tx repository.Tx, _ *model.Subscription, target *model.Membership) error {
			return uc.memberships.UpdateStatus(ctx, tx, target.ID, target.Status, model.MembershipStatusBlocked)
		})
}

// Unblock returns a blocked member to ACTIVE, subject to capacity.
func (uc *membershipUC) Unblock(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error {
	defer logging.TraceDuration(uc.log, "MembershipUC.Unblock")()
	return uc.actOnMember(ctx, subscriptionID, targetUserID, requester, model.MembershipStatusActive,
		func(ctx context.Context, tx repository.Tx, sub *model.Subscription, target *model.Membership) error {
			if target.Status != model.MembershipStatusBlocked {
				return fmt.Errorf("%w: member is %s", domain.ErrInvalidTransition, target.Status)
			}
			return uc.memberships.ActivateWithinCapacity(ctx, tx, target.ID, []model.MembershipStatus{model.MembershipStatusBlocked}, sub.MaxMembers)
		})
}

// Approve activates a pending join request, subject to capacity.
func (uc *membershipUC) Approve(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error {
	defer logging.TraceDuration(uc.log, "MembershipUC.Approve")()
	return uc.actOnMember(ctx, subscriptionID, targetUserID, requester, model.MembershipStatusActive,
		func(ctx context.Context, tx repository.Tx, sub *model.Subscription, target *model.Membership) error {
			if target.Status != model.MembershipStatusPending {
				return fmt.Errorf("%w: member is %s", domain.ErrInvalidTransition, target.Status)
			}
			if sub.Status != model.SubscriptionStatusActive {
				return domain.ErrSubscriptionInactive
			}
			return uc.memberships.ActivateWithinCapacity(ctx, tx, target.ID, []model.MembershipStatus{model.MembershipStatusPending}, sub.MaxMembers)
		})
}

func (uc *membershipUC) GetMembers(ctx context.Context, subscriptionID string) ([]*model.Membership, error) {
	defer logging.TraceDuration(uc.log, "MembershipUC.GetMembers")()

	if _, err := uc.subs.FindByID(ctx, repository.NoTX, subscriptionID); err != nil {
		return nil, err
	}
	return uc.memberships.ListCurrent(ctx, repository.NoTX, subscriptionID)
}

// --- helpers ---

type memberAction func(ctx context.Context, tx repository.Tx, sub *model.Subscription, target *model.Membership) error

func (uc *membershipUC) actOnMember(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor, result model.MembershipStatus, apply memberAction) error {
	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		sub, actorM, err := uc.loadManageable(ctx, tx, subscriptionID, requester)
		if err != nil {
			return err
		}
		target, err := findCurrentOrNil(ctx, uc.memberships, tx, subscriptionID, targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.ErrNotMember
		}
		if !uc.policy.CanActOnMember(sub, requester, actorM, target) {
			return domain.ErrForbidden
		}
		if !target.CanTransition(result) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, target.Status, result)
		}
		return apply(ctx, tx, sub, target)
	})
	if err != nil {
		return err
	}
	uc.emitChange(ctx, subscriptionID, targetUserID, result)
	return nil
}

// loadManageable returns ErrNotFound for outsiders and ErrForbidden for
// visible requesters that cannot manage members.
func (uc *membershipUC) loadManageable(ctx context.Context, tx repository.Tx, subscriptionID string, requester model.Actor) (*model.Subscription, *model.Membership, error) {
	sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
	if err != nil {
		return nil, nil, err
	}
	actorM, err := findCurrentOrNil(ctx, uc.memberships, tx, subscriptionID, requester.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !uc.policy.CanView(sub, requester, actorM) {
		return nil, nil, domain.ErrNotFound
	}
	if !uc.policy.CanManageMembers(sub, requester, actorM) {
		return nil, nil, domain.ErrForbidden
	}
	return sub, actorM, nil
}

func (uc *membershipUC) emitChange(ctx context.Context, subscriptionID, userID string, status model.MembershipStatus) {
	uc.log.Info().Str("subscription_id", subscriptionID).Str("user_id", userID).Str("status", string(status)).Msg("membership changed")
	metrics.IncMembershipChange(string(status))
	ev := model.NewEvent(model.EventMembershipChanged, subscriptionID, userID)
	ev.Attributes = map[string]string{"status": string(status)}
	uc.notifier.Notify(ctx, ev)
}

func joinOutcome(err error) string {
	switch {
	case err == nil:
		return "joined"
	case errors.Is(err, domain.ErrSubscriptionFull):
		return "full"
	case errors.Is(err, domain.ErrAlreadyMember):
		return "duplicate"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSubscriptionInactive):
		return "rejected"
	default:
		return "error"
	}
}
