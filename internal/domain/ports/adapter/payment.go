package adapter

import (
	"context"
	"time"
)

// ChargeResult is a minimal, provider-agnostic result of a charge.
type ChargeResult struct {
	Success   bool
	Reference string // provider transaction id, used later for refunds
	Message   string // provider decline reason when !Success
}

// RefundResult captures a minimal, provider-agnostic result of a refund request.
type RefundResult struct {
	Success    bool
	ID         string    // provider refund id
	RefundTime time.Time // provider timestamp if available
	Message    string
}

// PaymentProcessor is the hex port for payment providers.
// Amounts are in minor units. A returned error means the outcome is unknown
// or the call failed; a result with Success=false is an explicit decline.
type PaymentProcessor interface {
	Name() string
	Charge(ctx context.Context, amount int64, currency, methodRef string) (ChargeResult, error)
	Refund(ctx context.Context, reference string, amount int64) (RefundResult, error)
}
