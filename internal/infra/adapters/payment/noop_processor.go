package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
)

var _ adapter.PaymentProcessor = (*NoopProcessor)(nil)

// DeclineMethodPrefix makes NoopProcessor decline a charge, which lets local
// setups exercise the failure path.
const DeclineMethodPrefix = "decline"

// NoopProcessor is an in-memory processor for development and tests.
type NoopProcessor struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]int64 // reference -> captured amount
}

func NewNoopProcessor() *NoopProcessor {
	return &NoopProcessor{charges: make(map[string]int64)}
}

func (p *NoopProcessor) Name() string { return "noop" }

func (p *NoopProcessor) next(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s-%d", prefix, p.seq)
}

func (p *NoopProcessor) Charge(ctx context.Context, amount int64, currency, methodRef string) (adapter.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.ChargeResult{}, err
	}
	if strings.HasPrefix(methodRef, DeclineMethodPrefix) {
		return adapter.ChargeResult{Success: false, Message: "card declined"}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ref := p.next("noop")
	p.charges[ref] = amount
	return adapter.ChargeResult{Success: true, Reference: ref}, nil
}

func (p *NoopProcessor) Refund(ctx context.Context, reference string, amount int64) (adapter.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.RefundResult{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	captured, ok := p.charges[reference]
	if !ok {
		return adapter.RefundResult{Success: false, Message: "unknown reference"}, nil
	}
	if amount > captured {
		return adapter.RefundResult{Success: false, Message: "amount exceeds capture"}, nil
	}
	p.charges[reference] = captured - amount
	return adapter.RefundResult{Success: true, ID: p.next("refund"), RefundTime: time.Now()}, nil
}
