package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, owner_id, title, price, currency, cycle, max_members, visibility, status,
       requires_approval, account_credential, created_at, updated_at`

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.OwnerID, s.Title, s.Price, s.Currency, s.Cycle, s.MaxMembers, s.Visibility, s.Status,
		s.RequiresApproval, s.AccountCredential, s.CreatedAt, s.UpdatedAt)
	return mapError(err, "subscription "+s.ID)
}

// FindByID takes a row lock when called inside a transaction, so writers of
// the same subscription queue behind each other.
func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapError(err, "subscription "+id)
	}
	return s, nil
}

func (r *subscriptionRepo) Update(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
UPDATE subscriptions
   SET owner_id=$2, title=$3, price=$4, currency=$5, cycle=$6, max_members=$7, visibility=$8,
       status=$9, requires_approval=$10, account_credential=$11, updated_at=$12
 WHERE id=$1;`
	s.UpdatedAt = time.Now().UTC()
	tag, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.OwnerID, s.Title, s.Price, s.Currency, s.Cycle, s.MaxMembers, s.Visibility,
		s.Status, s.RequiresApproval, s.AccountCredential, s.UpdatedAt)
	if err != nil {
		return mapError(err, "subscription "+s.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: subscription %s", domain.ErrNotFound, s.ID)
	}
	return nil
}

func (r *subscriptionRepo) UpdateCapacityIfFits(ctx context.Context, tx repository.Tx, id string, newMax int) error {
	const q = `
UPDATE subscriptions
   SET max_members=$2, updated_at=NOW()
 WHERE id=$1
   AND (SELECT COUNT(*) FROM memberships WHERE subscription_id=$1 AND status='active') <= $2;`
	return withSeatLock(ctx, r.pool, tx, id, func(tx repository.Tx) error {
		tag, err := execSQL(ctx, r.pool, tx, q, id, newMax)
		if err != nil {
			return mapError(err, "subscription "+id)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		var exists bool
		row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id=$1)`, id)
		if err != nil {
			return err
		}
		if err := row.Scan(&exists); err != nil {
			return mapError(err, "subscription "+id)
		}
		if !exists {
			return fmt.Errorf("%w: subscription %s", domain.ErrNotFound, id)
		}
		return fmt.Errorf("%w: active members exceed %d", domain.ErrCapacityConflict, newMax)
	})
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	var cycle, visibility, status string
	if err := row.Scan(
		&s.ID, &s.OwnerID, &s.Title, &s.Price, &s.Currency, &cycle, &s.MaxMembers, &visibility, &status,
		&s.RequiresApproval, &s.AccountCredential, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Cycle = model.BillingCycle(cycle)
	s.Visibility = model.Visibility(visibility)
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}
