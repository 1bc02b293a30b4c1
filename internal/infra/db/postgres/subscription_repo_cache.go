package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
	"github.com/gauravv01/subshare-sub000/internal/infra/metrics"
	red "github.com/gauravv01/subshare-sub000/internal/infra/redis"
)

var _ repository.SubscriptionRepository = (*subscriptionRepoCacheDecorator)(nil)

// subscriptionRepoCacheDecorator caches non-transactional reads. Reads inside
// a transaction, or under repository.WithFreshReads, always go to the
// database. Writes invalidate once their transaction has committed.
type subscriptionRepoCacheDecorator struct {
	inner repository.SubscriptionRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewSubscriptionRepoCacheDecorator(inner repository.SubscriptionRepository, cache red.RedisClient, ttl time.Duration, log *zerolog.Logger) repository.SubscriptionRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &subscriptionRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: log}
}

func subscriptionKey(id string) string { return "subscription:" + id }

func (d *subscriptionRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if tx != nil || repository.FreshReads(ctx) {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := subscriptionKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var sub model.Subscription
		if json.Unmarshal([]byte(val), &sub) == nil {
			metrics.IncCacheRequest("subscription", "hit")
			return &sub, nil
		}
	} else if !errors.Is(err, red.Nil) {
		metrics.IncCacheRequest("subscription", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("subscription cache read failed")
	}

	metrics.IncCacheRequest("subscription", "miss")
	sub, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(sub); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("subscription cache write failed")
		}
	}
	return sub, nil
}

func (d *subscriptionRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	return d.inner.Create(ctx, tx, sub)
}

func (d *subscriptionRepoCacheDecorator) Update(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if err := d.inner.Update(ctx, tx, sub); err != nil {
		return err
	}
	d.invalidateAfterCommit(ctx, tx, sub.ID)
	return nil
}

func (d *subscriptionRepoCacheDecorator) UpdateCapacityIfFits(ctx context.Context, tx repository.Tx, id string, newMax int) error {
	if err := d.inner.UpdateCapacityIfFits(ctx, tx, id, newMax); err != nil {
		return err
	}
	d.invalidateAfterCommit(ctx, tx, id)
	return nil
}

// invalidateAfterCommit drops the entry once the new row is visible, so a
// reader between write and commit cannot leave the old row cached.
func (d *subscriptionRepoCacheDecorator) invalidateAfterCommit(ctx context.Context, tx repository.Tx, id string) {
	ctx = context.WithoutCancel(ctx)
	repository.AfterCommit(tx, func() { d.invalidate(ctx, id) })
}

func (d *subscriptionRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	if err := d.cache.Del(ctx, subscriptionKey(id)); err != nil {
		d.log.Warn().Err(err).Str("subscription_id", id).Msg("subscription cache invalidation failed")
	}
}
