package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
)

var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

const (
	membershipColumns = `id, subscription_id, user_id, role, status, joined_at, updated_at`
	currentStatuses   = `('pending','active','blocked')`
	uqCurrent         = "uq_memberships_current"
)

func (r *membershipRepo) Create(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `INSERT INTO memberships (` + membershipColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.SubscriptionID, m.UserID, m.Role, m.Status, m.JoinedAt, m.UpdatedAt)
	return membershipWriteError(err, m.ID)
}

func (r *membershipRepo) InsertWithinCapacity(ctx context.Context, tx repository.Tx, m *model.Membership, maxMembers int) error {
	const q = `
INSERT INTO memberships (` + membershipColumns + `)
SELECT $1,$2,$3,$4,$5,$6,$7
 WHERE (SELECT COUNT(*) FROM memberships WHERE subscription_id=$2 AND status='active') < $8;`
	return withSeatLock(ctx, r.pool, tx, m.SubscriptionID, func(tx repository.Tx) error {
		if _, err := r.FindCurrent(ctx, tx, m.SubscriptionID, m.UserID); err == nil {
			return domain.ErrAlreadyMember
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		tag, err := execSQL(ctx, r.pool, tx, q, m.ID, m.SubscriptionID, m.UserID, m.Role, m.Status, m.JoinedAt, m.UpdatedAt, maxMembers)
		if err != nil {
			return membershipWriteError(err, m.ID)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrSubscriptionFull
		}
		return nil
	})
}

func (r *membershipRepo) ActivateWithinCapacity(ctx context.Context, tx repository.Tx, id string, from []model.MembershipStatus, maxMembers int) error {
	const q = `
UPDATE memberships m
   SET status='active', updated_at=NOW()
 WHERE m.id=$1
   AND m.status = ANY($2)
   AND (SELECT COUNT(*) FROM memberships a WHERE a.subscription_id=m.subscription_id AND a.status='active') < $3;`
	cur, err := r.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	return withSeatLock(ctx, r.pool, tx, cur.SubscriptionID, func(tx repository.Tx) error {
		tag, err := execSQL(ctx, r.pool, tx, q, id, statusStrings(from), maxMembers)
		if err != nil {
			return membershipWriteError(err, id)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		// Tell a stale status apart from a full subscription.
		now, err := r.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, s := range from {
			if now.Status == s {
				return domain.ErrSubscriptionFull
			}
		}
		return fmt.Errorf("%w: membership is %s", domain.ErrInvalidTransition, now.Status)
	})
}

func (r *membershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	const q = `SELECT ` + membershipColumns + ` FROM memberships WHERE id=$1;`
	return r.queryOne(ctx, tx, "membership "+id, q, id)
}

func (r *membershipRepo) FindCurrent(ctx context.Context, tx repository.Tx, subscriptionID, userID string) (*model.Membership, error) {
	const q = `
SELECT ` + membershipColumns + `
  FROM memberships
 WHERE subscription_id=$1 AND user_id=$2 AND status IN ` + currentStatuses + `;`
	return r.queryOne(ctx, tx, "membership "+subscriptionID+"/"+userID, q, subscriptionID, userID)
}

func (r *membershipRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.MembershipStatus) error {
	const q = `UPDATE memberships SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, from, to)
	if err != nil {
		return membershipWriteError(err, id)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	cur, err := r.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: membership is %s, expected %s", domain.ErrInvalidTransition, cur.Status, from)
}

func (r *membershipRepo) UpdateRole(ctx context.Context, tx repository.Tx, id string, role model.MemberRole) error {
	const q = `UPDATE memberships SET role=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, role)
	if err != nil {
		return mapError(err, "membership "+id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: membership %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *membershipRepo) ListCurrent(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.Membership, error) {
	const q = `
SELECT ` + membershipColumns + `
  FROM memberships
 WHERE subscription_id=$1 AND status IN ` + currentStatuses + `
 ORDER BY joined_at ASC, id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return nil, mapError(err, "memberships of "+subscriptionID)
	}
	defer rows.Close()
	var out []*model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, mapError(err, "membership row")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "membership rows")
	}
	return out, nil
}

func (r *membershipRepo) CountActive(ctx context.Context, tx repository.Tx, subscriptionID string) (int, error) {
	const q = `SELECT COUNT(*) FROM memberships WHERE subscription_id=$1 AND status='active';`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapError(err, "count members")
	}
	return n, nil
}

func (r *membershipRepo) queryOne(ctx context.Context, tx repository.Tx, what, q string, args ...interface{}) (*model.Membership, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	m, err := scanMembership(row)
	if err != nil {
		return nil, mapError(err, what)
	}
	return m, nil
}

func membershipWriteError(err error, id string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err, uqCurrent) {
		return domain.ErrAlreadyMember
	}
	return mapError(err, "membership "+id)
}

func scanMembership(row pgx.Row) (*model.Membership, error) {
	var m model.Membership
	var role, status string
	if err := row.Scan(&m.ID, &m.SubscriptionID, &m.UserID, &role, &status, &m.JoinedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Role = model.MemberRole(role)
	m.Status = model.MembershipStatus(status)
	return &m, nil
}

func statusStrings(in []model.MembershipStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
