package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
)

type MembershipRepo struct{ s *Store }

var _ repository.MembershipRepository = (*MembershipRepo)(nil)

func NewMembershipRepo(s *Store) *MembershipRepo { return &MembershipRepo{s: s} }

func (s *Store) countActiveLocked(subscriptionID string) int {
	n := 0
	for _, m := range s.memberships {
		if m.SubscriptionID == subscriptionID && m.Status == model.MembershipStatusActive {
			n++
		}
	}
	return n
}

func (s *Store) currentLocked(subscriptionID, userID string) *model.Membership {
	for _, m := range s.memberships {
		if m.SubscriptionID == subscriptionID && m.UserID == userID && !m.Status.Terminal() {
			return m
		}
	}
	return nil
}

// capacityLocked is the stored limit of the subscription. The caller's copy is
// only used when the subscription row is unknown to this store.
func (s *Store) capacityLocked(subscriptionID string, fallback int) int {
	if sub, ok := s.subscriptions[subscriptionID]; ok {
		return sub.MaxMembers
	}
	return fallback
}

func (s *Store) insertMembershipLocked(tx repository.Tx, m *model.Membership) error {
	if s.currentLocked(m.SubscriptionID, m.UserID) != nil {
		return domain.ErrAlreadyMember
	}
	s.memberships[m.ID] = cloneMembership(m)
	id := m.ID
	return s.record(tx, func() { delete(s.memberships, id) })
}

func (r *MembershipRepo) Create(_ context.Context, tx repository.Tx, m *model.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	return r.s.insertMembershipLocked(tx, m)
}

func (r *MembershipRepo) InsertWithinCapacity(_ context.Context, tx repository.Tx, m *model.Membership, maxMembers int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	if r.s.currentLocked(m.SubscriptionID, m.UserID) != nil {
		return domain.ErrAlreadyMember
	}
	if r.s.countActiveLocked(m.SubscriptionID) >= r.s.capacityLocked(m.SubscriptionID, maxMembers) {
		return domain.ErrSubscriptionFull
	}
	return r.s.insertMembershipLocked(tx, m)
}

func (r *MembershipRepo) ActivateWithinCapacity(_ context.Context, tx repository.Tx, id string, from []model.MembershipStatus, maxMembers int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	prev, ok := r.s.memberships[id]
	if !ok {
		return notFound("membership", id)
	}
	if !containsStatus(from, prev.Status) {
		return fmt.Errorf("%w: membership is %s", domain.ErrInvalidTransition, prev.Status)
	}
	if r.s.countActiveLocked(prev.SubscriptionID) >= r.s.capacityLocked(prev.SubscriptionID, maxMembers) {
		return domain.ErrSubscriptionFull
	}
	return r.s.setLocked(tx, prev, func(m *model.Membership) { m.Status = model.MembershipStatusActive })
}

func (r *MembershipRepo) FindByID(_ context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	m, ok := r.s.memberships[id]
	if !ok {
		return nil, notFound("membership", id)
	}
	return cloneMembership(m), nil
}

func (r *MembershipRepo) FindCurrent(_ context.Context, tx repository.Tx, subscriptionID, userID string) (*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	m := r.s.currentLocked(subscriptionID, userID)
	if m == nil {
		return nil, notFound("membership", subscriptionID+"/"+userID)
	}
	return cloneMembership(m), nil
}

func (r *MembershipRepo) UpdateStatus(_ context.Context, tx repository.Tx, id string, from, to model.MembershipStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	prev, ok := r.s.memberships[id]
	if !ok {
		return notFound("membership", id)
	}
	if prev.Status != from {
		return fmt.Errorf("%w: membership is %s, expected %s", domain.ErrInvalidTransition, prev.Status, from)
	}
	return r.s.setLocked(tx, prev, func(m *model.Membership) { m.Status = to })
}

func (r *MembershipRepo) UpdateRole(_ context.Context, tx repository.Tx, id string, role model.MemberRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return err
	}
	prev, ok := r.s.memberships[id]
	if !ok {
		return notFound("membership", id)
	}
	return r.s.setLocked(tx, prev, func(m *model.Membership) { m.Role = role })
}

func (r *MembershipRepo) ListCurrent(_ context.Context, tx repository.Tx, subscriptionID string) ([]*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	var out []*model.Membership
	for _, m := range r.s.memberships {
		if m.SubscriptionID == subscriptionID && !m.Status.Terminal() {
			out = append(out, cloneMembership(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MembershipRepo) CountActive(_ context.Context, tx repository.Tx, subscriptionID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTx(tx); err != nil {
		return 0, err
	}
	return r.s.countActiveLocked(subscriptionID), nil
}

// setLocked replaces prev with a mutated copy and records the undo.
func (s *Store) setLocked(tx repository.Tx, prev *model.Membership, mutate func(*model.Membership)) error {
	next := cloneMembership(prev)
	mutate(next)
	next.UpdatedAt = time.Now().UTC()
	s.memberships[prev.ID] = next
	return s.record(tx, func() { s.memberships[prev.ID] = prev })
}

func containsStatus(list []model.MembershipStatus, s model.MembershipStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
