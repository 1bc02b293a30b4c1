//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/infra/db/memory"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- Mock CredentialCipher ----

// MockCipher seals as "sealed:<owner>:<plaintext>" so tests can inspect blobs.
type MockCipher struct {
	EncryptFunc func(ctx context.Context, plaintext, ownerID string) (string, error)
}

var _ adapter.CredentialCipher = (*MockCipher)(nil)

func (m *MockCipher) Encrypt(ctx context.Context, plaintext, ownerID string) (string, error) {
	if m.EncryptFunc != nil {
		return m.EncryptFunc(ctx, plaintext, ownerID)
	}
	return "sealed:" + ownerID + ":" + plaintext, nil
}

func (m *MockCipher) Decrypt(_ context.Context, blob, requesterID string) (string, error) {
	parts := strings.SplitN(blob, ":", 3)
	if len(parts) != 3 || parts[0] != "sealed" {
		return "", fmt.Errorf("malformed blob")
	}
	if parts[1] != requesterID {
		return "", domain.ErrForbidden
	}
	return parts[2], nil
}

// ---- Mock PaymentProcessor ----

type MockPaymentProcessor struct {
	ChargeFunc func(ctx context.Context, amount int64, currency, methodRef string) (adapter.ChargeResult, error)
	RefundFunc func(ctx context.Context, reference string, amount int64) (adapter.RefundResult, error)

	charges atomic.Int32
	refunds atomic.Int32
}

var _ adapter.PaymentProcessor = (*MockPaymentProcessor)(nil)

func (m *MockPaymentProcessor) Name() string { return "mock" }

func (m *MockPaymentProcessor) Charge(ctx context.Context, amount int64, currency, methodRef string) (adapter.ChargeResult, error) {
	n := m.charges.Add(1)
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, amount, currency, methodRef)
	}
	return adapter.ChargeResult{Success: true, Reference: fmt.Sprintf("ch_%04d", n)}, nil
}

func (m *MockPaymentProcessor) Refund(ctx context.Context, reference string, amount int64) (adapter.RefundResult, error) {
	n := m.refunds.Add(1)
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, reference, amount)
	}
	return adapter.RefundResult{Success: true, ID: fmt.Sprintf("re_%04d", n), RefundTime: time.Now()}, nil
}

func (m *MockPaymentProcessor) Charges() int { return int(m.charges.Load()) }
func (m *MockPaymentProcessor) Refunds() int { return int(m.refunds.Load()) }

// ---- Recording NotificationService ----

type MockNotifier struct {
	mu     sync.Mutex
	Events []model.Event
}

var _ adapter.NotificationService = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(_ context.Context, ev model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
}

func (m *MockNotifier) Types() []model.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.EventType, 0, len(m.Events))
	for _, ev := range m.Events {
		out = append(out, ev.Type)
	}
	return out
}

// ---- Harness over the in-memory backend ----

type harness struct {
	store     *memory.Store
	subsRepo  *memory.SubscriptionRepo
	members   *memory.MembershipRepo
	txRepo    *memory.TransactionRepo
	processor *MockPaymentProcessor
	notifier  *MockNotifier

	subs       usecase.SubscriptionUseCase
	membership usecase.MembershipUseCase
	ledger     usecase.LedgerUseCase
}

func newHarness() *harness {
	return newHarnessWith(&MockPaymentProcessor{}, usecase.LedgerConfig{FeeRateBps: 500, ExternalTimeout: time.Second})
}

func newHarnessWith(processor *MockPaymentProcessor, cfg usecase.LedgerConfig) *harness {
	s := memory.NewStore()
	h := &harness{
		store:     s,
		subsRepo:  memory.NewSubscriptionRepo(s),
		members:   memory.NewMembershipRepo(s),
		txRepo:    memory.NewTransactionRepo(s),
		processor: processor,
		notifier:  &MockNotifier{},
	}
	tm := memory.NewTxManager(s)
	log := newTestLogger()
	h.subs = usecase.NewSubscriptionUseCase(h.subsRepo, h.members, &MockCipher{}, h.notifier, tm, time.Second, log)
	h.membership = usecase.NewMembershipUseCase(h.subsRepo, h.members, h.notifier, tm, log)
	h.ledger = usecase.NewLedgerUseCase(h.txRepo, h.subsRepo, h.members, processor, h.notifier, cfg, log)
	return h
}

func actor(id string, claims ...string) model.Actor {
	return model.Actor{UserID: id, Claims: claims}
}

// newGroup creates an ACTIVE public subscription owned by owner.
func (h *harness) newGroup(ctx context.Context, owner string, maxMembers int) *model.Subscription {
	sub, err := h.subs.Create(ctx, actor(owner), usecase.CreateSubscriptionInput{
		Title:      "Streaming family plan",
		Price:      1500,
		Currency:   "usd",
		Cycle:      model.CycleMonthly,
		MaxMembers: maxMembers,
		Visibility: model.VisibilityPublic,
		Credential: "login:secret",
	})
	if err != nil {
		panic(err)
	}
	return sub
}
