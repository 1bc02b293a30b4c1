package repository

import (
	"context"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
)

// MembershipRepository is the port for sharing-group memberships.
// "Current" means any non-terminal status (pending, active, blocked).
type MembershipRepository interface {
	// Create inserts unconditionally; used for the owner row.
	// A current row for the same (subscription, user) yields domain.ErrAlreadyMember.
	Create(ctx context.Context, tx Tx, m *model.Membership) error

	// InsertWithinCapacity inserts m only if the ACTIVE count of its
	// subscription is below maxMembers, as one atomic step per subscription.
	// Errors: domain.ErrSubscriptionFull, domain.ErrAlreadyMember.
	InsertWithinCapacity(ctx context.Context, tx Tx, m *model.Membership, maxMembers int) error

	// ActivateWithinCapacity moves membership id from one of the given
	// statuses to ACTIVE under the same capacity guard.
	ActivateWithinCapacity(ctx context.Context, tx Tx, id string, from []model.MembershipStatus, maxMembers int) error

	FindByID(ctx context.Context, tx Tx, id string) (*model.Membership, error)
	FindCurrent(ctx context.Context, tx Tx, subscriptionID, userID string) (*model.Membership, error)

	// UpdateStatus transitions only when the stored status equals from;
	// otherwise domain.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, tx Tx, id string, from, to model.MembershipStatus) error
	UpdateRole(ctx context.Context, tx Tx, id string, role model.MemberRole) error

	ListCurrent(ctx context.Context, tx Tx, subscriptionID string) ([]*model.Membership, error)
	CountActive(ctx context.Context, tx Tx, subscriptionID string) (int, error)
}
