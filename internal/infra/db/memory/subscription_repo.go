package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
)

type SubscriptionRepo struct{ s *Store }

var _ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)

func NewSubscriptionRepo(s *Store) *SubscriptionRepo { return &SubscriptionRepo{s: s} }

func (r *SubscriptionRepo) Create(_ context.Context, tx repository.Tx, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	if _, ok := r.s.subscriptions[sub.ID]; ok {
		return fmt.Errorf("%w: subscription %s exists", domain.ErrConflict, sub.ID)
	}
	r.s.subscriptions[sub.ID] = cloneSubscription(sub)
	id := sub.ID
	return r.s.record(tx, func() { delete(r.s.subscriptions, id) })
}

func (r *SubscriptionRepo) FindByID(_ context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil, notFound("subscription", id)
	}
	return cloneSubscription(sub), nil
}

func (r *SubscriptionRepo) Update(_ context.Context, tx repository.Tx, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	prev, ok := r.s.subscriptions[sub.ID]
	if !ok {
		return notFound("subscription", sub.ID)
	}
	next := cloneSubscription(sub)
	next.UpdatedAt = time.Now().UTC()
	r.s.subscriptions[sub.ID] = next
	sub.UpdatedAt = next.UpdatedAt
	return r.s.record(tx, func() { r.s.subscriptions[prev.ID] = prev })
}

func (r *SubscriptionRepo) UpdateCapacityIfFits(_ context.Context, tx repository.Tx, id string, newMax int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	prev, ok := r.s.subscriptions[id]
	if !ok {
		return notFound("subscription", id)
	}
	if active := r.s.countActiveLocked(id); active > newMax {
		return fmt.Errorf("%w: %d active members exceed %d", domain.ErrCapacityConflict, active, newMax)
	}
	next := cloneSubscription(prev)
	next.MaxMembers = newMax
	next.UpdatedAt = time.Now().UTC()
	r.s.subscriptions[id] = next
	return r.s.record(tx, func() { r.s.subscriptions[id] = prev })
}
