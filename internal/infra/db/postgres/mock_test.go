//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
	red "github.com/gauravv01/subshare-sub000/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

type mockInnerSubscriptionRepo struct {
	CreateFunc         func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindByIDFunc       func(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error)
	UpdateFunc         func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	UpdateCapacityFunc func(ctx context.Context, tx repository.Tx, id string, newMax int) error
}

func (m *mockInnerSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	return m.CreateFunc(ctx, tx, s)
}
func (m *mockInnerSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerSubscriptionRepo) Update(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	return m.UpdateFunc(ctx, tx, s)
}
func (m *mockInnerSubscriptionRepo) UpdateCapacityIfFits(ctx context.Context, tx repository.Tx, id string, newMax int) error {
	return m.UpdateCapacityFunc(ctx, tx, id, newMax)
}

// mockRedisClient is a mock implementation of the RedisClient interface.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", red.Nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, e time.Duration) error { return nil }
func (m *mockRedisClient) Close() error { return nil }
