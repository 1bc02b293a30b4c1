// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
	"github.com/gauravv01/subshare-sub000/internal/infra/logging"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase is the registry of shared subscriptions.
type SubscriptionUseCase interface {
	Create(ctx context.Context, owner model.Actor, in CreateSubscriptionInput) (*model.Subscription, error)
	// Get hides subscriptions the requester may not see behind ErrNotFound.
	Get(ctx context.Context, id string, requester model.Actor) (*model.Subscription, error)
	RevealCredential(ctx context.Context, id string, requester model.Actor) (string, error)
	UpdateCapacity(ctx context.Context, id string, requester model.Actor, maxMembers int) (*model.Subscription, error)
	UpdateStatus(ctx context.Context, id string, requester model.Actor, status model.SubscriptionStatus) (*model.Subscription, error)
	Close(ctx context.Context, id string, requester model.Actor) (*model.Subscription, error)
	TransferOwnership(ctx context.Context, id string, requester model.Actor, newOwnerID string) (*model.Subscription, error)
}

type CreateSubscriptionInput struct {
	Title            string
	Price            int64
	Currency         string
	Cycle            model.BillingCycle
	MaxMembers       int
	Visibility       model.Visibility
	RequiresApproval bool
	Credential       string // plaintext; sealed before it is stored
}

type subscriptionUC struct {
	subs        repository.SubscriptionRepository
	memberships repository.MembershipRepository
	cipher      adapter.CredentialCipher
	notifier    adapter.NotificationService
	tm          repository.TransactionManager
	policy      Policy
	timeout     time.Duration
	log         *zerolog.Logger
}

// NewSubscriptionUseCase wires the registry. notifier may be nil.
func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	memberships repository.MembershipRepository,
	cipher adapter.CredentialCipher,
	notifier adapter.NotificationService,
	tm repository.TransactionManager,
	externalTimeout time.Duration,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		subs:        subs,
		memberships: memberships,
		cipher:      cipher,
		notifier:    notifierOrNoop(notifier),
		tm:          tm,
		timeout:     timeoutOrDefault(externalTimeout),
		log:         logger,
	}
}

func (uc *subscriptionUC) Create(ctx context.Context, owner model.Actor, in CreateSubscriptionInput) (*model.Subscription, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.Create")()

	sub, err := model.NewSubscription("", owner.UserID, in.Title, in.Price, in.Currency, in.Cycle, in.MaxMembers, in.Visibility)
	if err != nil {
		return nil, err
	}
	sub.RequiresApproval = in.RequiresApproval

	if in.Credential != "" {
		blob, err := uc.encrypt(ctx, in.Credential, owner.UserID)
		if err != nil {
			return nil, err
		}
		sub.AccountCredential = blob
	}

	ownerMembership := model.NewMembership(sub.ID, owner.UserID, model.RoleAdmin, model.MembershipStatusActive)
	err = uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.subs.Create(ctx, tx, sub); err != nil {
			return err
		}
		return uc.memberships.Create(ctx, tx, ownerMembership)
	})
	if err != nil {
		uc.log.Error().Err(err).Str("owner_id", owner.UserID).Msg("Failed to create subscription")
		return nil, err
	}

	uc.log.Info().Str("subscription_id", sub.ID).Str("owner_id", owner.UserID).Int("max_members", sub.MaxMembers).Msg("subscription created")
	uc.notifier.Notify(ctx, model.NewEvent(model.EventSubscriptionCreated, sub.ID, owner.UserID))
	return sub, nil
}

func (uc *subscriptionUC) Get(ctx context.Context, id string, requester model.Actor) (*model.Subscription, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.Get")()

	sub, _, err := uc.loadVisible(ctx, repository.NoTX, id, requester)
	if err != nil {
		return nil, err
	}
	if !sub.IsOwner(requester.UserID) {
		return sub.Redacted(), nil
	}
	return sub, nil
}

// RevealCredential decrypts the shared account credential. The cipher binds
// each blob to its owner, so everybody else gets ErrForbidden.
func (uc *subscriptionUC) RevealCredential(ctx context.Context, id string, requester model.Actor) (string, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.RevealCredential")()

	sub, _, err := uc.loadVisible(ctx, repository.NoTX, id, requester)
	if err != nil {
		return "", err
	}
	if sub.AccountCredential == "" {
		return "", fmt.Errorf("%w: no credential stored", domain.ErrNotFound)
	}
	return uc.decrypt(ctx, sub.AccountCredential, requester.UserID)
}

func (uc *subscriptionUC) UpdateCapacity(ctx context.Context, id string, requester model.Actor, maxMembers int) (*model.Subscription, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.UpdateCapacity")()

	if err := model.ValidateCapacity(maxMembers); err != nil {
		return nil, err
	}
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.loadModifiable(ctx, tx, id, requester)
		if err != nil {
			return err
		}
		if sub.Status == model.SubscriptionStatusClosed {
			return fmt.Errorf("%w: subscription is closed", domain.ErrInvalidTransition)
		}
		if err := uc.subs.UpdateCapacityIfFits(ctx, tx, id, maxMembers); err != nil {
			return err
		}
		sub.MaxMembers = maxMembers
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.notifier.Notify(ctx, model.NewEvent(model.EventSubscriptionUpdated, id, requester.UserID))
	return out, nil
}

func (uc *subscriptionUC) UpdateStatus(ctx context.Context, id string, requester model.Actor, status model.SubscriptionStatus) (*model.Subscription, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.UpdateStatus")()

	if !status.Valid() {
		return nil, domain.Validation("status", "is unknown")
	}
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.loadModifiable(ctx, tx, id, requester)
		if err != nil {
			return err
		}
		if !sub.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, sub.Status, status)
		}
		sub.Status = status
		sub.UpdatedAt = time.Now().UTC()
		if err := uc.subs.Update(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := model.NewEvent(model.EventSubscriptionUpdated, id, requester.UserID)
	ev.Attributes = map[string]string{"status": string(status)}
	uc.notifier.Notify(ctx, ev)
	return out, nil
}

// Close soft-closes the subscription. Nothing is deleted; memberships stay
// until they leave or are removed.
func (uc *subscriptionUC) Close(ctx context.Context, id string, requester model.Actor) (*model.Subscription, error) {
	return uc.UpdateStatus(ctx, id, requester, model.SubscriptionStatusClosed)
}

func (uc *subscriptionUC) TransferOwnership(ctx context.Context, id string, requester model.Actor, newOwnerID string) (*model.Subscription, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.TransferOwnership")()

	if newOwnerID == "" {
		return nil, domain.Validation("new_owner_id", "is required")
	}
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		sub, _, err := uc.loadVisible(ctx, tx, id, requester)
		if err != nil {
			return err
		}
		if !uc.policy.CanGrantAdmin(sub, requester) {
			return domain.ErrForbidden
		}
		if sub.IsOwner(newOwnerID) {
			out = sub
			return nil
		}
		if sub.Status == model.SubscriptionStatusClosed {
			return fmt.Errorf("%w: subscription is closed", domain.ErrInvalidTransition)
		}
		target, err := findCurrentOrNil(ctx, uc.memberships, tx, id, newOwnerID)
		if err != nil {
			return err
		}
		if !target.IsActive() {
			return domain.ErrNotMember
		}

		if sub.AccountCredential != "" {
			plain, err := uc.decrypt(ctx, sub.AccountCredential, sub.OwnerID)
			if err != nil {
				return err
			}
			blob, err := uc.encrypt(ctx, plain, newOwnerID)
			if err != nil {
				return err
			}
			sub.AccountCredential = blob
		}
		if target.Role != model.RoleAdmin {
			if err := uc.memberships.UpdateRole(ctx, tx, target.ID, model.RoleAdmin); err != nil {
				return err
			}
		}
		sub.OwnerID = newOwnerID
		sub.UpdatedAt = time.Now().UTC()
		if err := uc.subs.Update(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("subscription_id", id).Str("new_owner_id", newOwnerID).Msg("ownership transferred")
	ev := model.NewEvent(model.EventSubscriptionUpdated, id, newOwnerID)
	ev.Attributes = map[string]string{"owner_id": newOwnerID}
	uc.notifier.Notify(ctx, ev)
	return out, nil
}

// --- helpers ---

// loadVisible returns the subscription and the requester's current membership,
// or ErrNotFound when the requester may not see it.
func (uc *subscriptionUC) loadVisible(ctx context.Context, tx repository.Tx, id string, requester model.Actor) (*model.Subscription, *model.Membership, error) {
	sub, err := uc.subs.FindByID(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	actorM, err := findCurrentOrNil(ctx, uc.memberships, tx, id, requester.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !uc.policy.CanView(sub, requester, actorM) {
		return nil, nil, domain.ErrNotFound
	}
	return sub, actorM, nil
}

func (uc *subscriptionUC) loadModifiable(ctx context.Context, tx repository.Tx, id string, requester model.Actor) (*model.Subscription, error) {
	sub, _, err := uc.loadVisible(ctx, tx, id, requester)
	if err != nil {
		return nil, err
	}
	if !uc.policy.CanModifySubscription(sub, requester) {
		return nil, domain.ErrForbidden
	}
	return sub, nil
}

func (uc *subscriptionUC) encrypt(ctx context.Context, plaintext, ownerID string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	blob, err := uc.cipher.Encrypt(cctx, plaintext, ownerID)
	if err != nil {
		return "", fmt.Errorf("%w: encrypt credential: %v", domain.ErrPersistence, err)
	}
	return blob, nil
}

func (uc *subscriptionUC) decrypt(ctx context.Context, blob, requesterID string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	plain, err := uc.cipher.Decrypt(cctx, blob, requesterID)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return "", err
		}
		return "", fmt.Errorf("%w: decrypt credential: %v", domain.ErrPersistence, err)
	}
	return plain, nil
}
