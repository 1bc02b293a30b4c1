package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gauravv01/subshare-sub000/internal/domain"
)

type BillingCycle string

const (
	CycleWeekly    BillingCycle = "weekly"
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

func (c BillingCycle) Valid() bool {
	switch c {
	case CycleWeekly, CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool { return v == VisibilityPublic || v == VisibilityPrivate }

type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
	SubscriptionStatusPaused SubscriptionStatus = "paused"
	SubscriptionStatusClosed SubscriptionStatus = "closed"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPaused, SubscriptionStatusClosed:
		return true
	}
	return false
}

// Seat limits, owner included.
const (
	MinMembers = 2
	MaxMembers = 6
)

const DefaultCurrency = "USD"

// Subscription is a shared paid service registered by its owner.
// Price is in minor currency units (cents) to avoid float errors.
type Subscription struct {
	ID                string
	OwnerID           string
	Title             string
	Price             int64
	Currency          string
	Cycle             BillingCycle
	MaxMembers        int
	Visibility        Visibility
	Status            SubscriptionStatus
	RequiresApproval  bool
	AccountCredential string // encrypted blob, never plaintext
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewSubscription validates and constructs an ACTIVE subscription.
func NewSubscription(id, ownerID, title string, price int64, currency string, cycle BillingCycle, maxMembers int, visibility Visibility) (*Subscription, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if ownerID == "" {
		return nil, domain.Validation("owner_id", "is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.Validation("title", "is required")
	}
	if price <= 0 {
		return nil, domain.Validation("price", "must be positive")
	}
	if !cycle.Valid() {
		return nil, domain.Validation("cycle", "is unknown")
	}
	if err := ValidateCapacity(maxMembers); err != nil {
		return nil, err
	}
	if !visibility.Valid() {
		return nil, domain.Validation("visibility", "is unknown")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now().UTC()
	return &Subscription{
		ID:         id,
		OwnerID:    ownerID,
		Title:      title,
		Price:      price,
		Currency:   strings.ToUpper(currency),
		Cycle:      cycle,
		MaxMembers: maxMembers,
		Visibility: visibility,
		Status:     SubscriptionStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func ValidateCapacity(maxMembers int) error {
	if maxMembers < MinMembers || maxMembers > MaxMembers {
		return domain.Validation("max_members", "must be between 2 and 6")
	}
	return nil
}

func (s *Subscription) IsOwner(userID string) bool { return s != nil && userID != "" && s.OwnerID == userID }

// CanTransition reports whether the subscription may move to next.
// CLOSED is terminal.
func (s *Subscription) CanTransition(next SubscriptionStatus) bool {
	if !next.Valid() || s.Status == SubscriptionStatusClosed {
		return false
	}
	return s.Status != next
}

// Redacted returns a copy without the credential blob.
func (s *Subscription) Redacted() *Subscription {
	cp := *s
	cp.AccountCredential = ""
	return &cp
}
