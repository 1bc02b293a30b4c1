//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Ping(context.Context) error { return nil }
func (f *fakeCounter) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (f *fakeCounter) Get(context.Context, string) (string, error) { return "", Nil }
func (f *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}
func (f *fakeCounter) Expire(_ context.Context, key string, d time.Duration) error {
	f.expires[key] = d
	return nil
}
func (f *fakeCounter) Del(context.Context, ...string) error { return nil }
func (f *fakeCounter) Close() error                         { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("should allow up to the limit within a window", func(t *testing.T) {
		// --- Arrange ---
		fc := newFakeCounter()
		rl := NewRateLimiter(fc)
		key := UserRouteKey("u1", "join")

		// --- Act / Assert ---
		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, key, 3, time.Minute)
			if err != nil || !ok {
				t.Fatalf("call %d should pass: %v", i+1, err)
			}
		}
		if ok, _ := rl.Allow(ctx, key, 3, time.Minute); ok {
			t.Fatal("fourth call should be limited")
		}
		if fc.expires[key] != time.Minute {
			t.Errorf("window should be set on first hit, got %v", fc.expires[key])
		}
	})

	t.Run("should surface backend errors", func(t *testing.T) {
		fc := newFakeCounter()
		fc.err = errors.New("down")
		if _, err := NewRateLimiter(fc).Allow(ctx, "k", 1, time.Second); err == nil {
			t.Fatal("expected error")
		}
	})
}
