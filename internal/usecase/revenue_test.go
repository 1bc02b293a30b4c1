//go:build !integration

package usecase_test

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

func TestSplitRevenue(t *testing.T) {
	cases := []struct {
		name             string
		amount           int64
		bps              int
		wantFee, wantNet int64
	}{
		{"five percent of 100.00", 10000, 500, 500, 9500},
		{"rounds half up", 999, 1000, 100, 899},
		{"zero fee", 1500, 0, 0, 1500},
		{"whole amount", 1500, 10000, 1500, 0},
		{"zero amount", 0, 500, 0, 0},
		{"fraction below half rounds down", 1, 4999, 0, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := usecase.SplitRevenue(c.amount, c.bps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.PlatformFee != c.wantFee || got.OwnerNet != c.wantNet {
				t.Fatalf("SplitRevenue(%d, %d) = %+v", c.amount, c.bps, got)
			}
		})
	}

	t.Run("should always sum to the amount and be deterministic", func(t *testing.T) {
		for amount := int64(0); amount < 2000; amount += 37 {
			for _, bps := range []int{0, 1, 250, 333, 500, 1250, 9999, 10000} {
				a, _ := usecase.SplitRevenue(amount, bps)
				b, _ := usecase.SplitRevenue(amount, bps)
				if a != b || a.PlatformFee+a.OwnerNet != amount || a.PlatformFee < 0 || a.OwnerNet < 0 {
					t.Fatalf("bad split for %d @ %d: %+v", amount, bps, a)
				}
			}
		}
	})

	t.Run("should not overflow for very large amounts", func(t *testing.T) {
		for _, amount := range []int64{1_000_000_000_000_000, math.MaxInt64 - 1, math.MaxInt64} {
			for _, bps := range []int{1, 500, 9999, 10000} {
				got, err := usecase.SplitRevenue(amount, bps)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				want := new(big.Int).Mul(big.NewInt(amount), big.NewInt(int64(bps)))
				want.Add(want, big.NewInt(5000))
				want.Quo(want, big.NewInt(10000))
				if got.PlatformFee != want.Int64() || got.PlatformFee+got.OwnerNet != amount || got.OwnerNet < 0 {
					t.Fatalf("SplitRevenue(%d, %d) = %+v, want fee %s", amount, bps, got, want)
				}
			}
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		for _, c := range []struct {
			amount int64
			bps    int
		}{{-1, 500}, {100, -1}, {100, 10001}} {
			if _, err := usecase.SplitRevenue(c.amount, c.bps); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("SplitRevenue(%d, %d): expected ErrValidation, got %v", c.amount, c.bps, err)
			}
		}
	})
}
