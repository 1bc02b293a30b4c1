package repository

import (
	"context"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
)

// SubscriptionRepository is the port for shared subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx Tx, sub *model.Subscription) error
	// FindByID locks the row when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	Update(ctx context.Context, tx Tx, sub *model.Subscription) error

	// UpdateCapacityIfFits sets max_members only when the ACTIVE membership
	// count does not exceed newMax; otherwise it returns domain.ErrCapacityConflict.
	// It serializes with MembershipRepository.InsertWithinCapacity.
	UpdateCapacityIfFits(ctx context.Context, tx Tx, id string, newMax int) error
}
