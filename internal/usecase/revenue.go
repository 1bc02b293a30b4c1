package usecase

import "github.com/gauravv01/subshare-sub000/internal/domain"

const bpsDenominator = 10000

// Split is the division of one completed payment between platform and owner.
type Split struct {
	PlatformFee int64
	OwnerNet    int64
}

// SplitRevenue computes the platform fee at feeRateBps basis points, rounded
// half up to the minor unit. PlatformFee + OwnerNet always equals amount.
func SplitRevenue(amount int64, feeRateBps int) (Split, error) {
	if amount < 0 {
		return Split{}, domain.Validation("amount", "must not be negative")
	}
	if feeRateBps < 0 || feeRateBps > bpsDenominator {
		return Split{}, domain.Validation("fee_rate_bps", "must be between 0 and 10000")
	}
	// Split into quotient and remainder so amount*bps never overflows.
	q, r := amount/bpsDenominator, amount%bpsDenominator
	fee := q*int64(feeRateBps) + (r*int64(feeRateBps)+bpsDenominator/2)/bpsDenominator
	return Split{PlatformFee: fee, OwnerNet: amount - fee}, nil
}
