package model

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

func (r MemberRole) Valid() bool { return r == RoleAdmin || r == RoleMember }

type MembershipStatus string

const (
	MembershipStatusPending MembershipStatus = "pending"
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusBlocked MembershipStatus = "blocked"
	MembershipStatusLeft    MembershipStatus = "left"    // terminal
	MembershipStatusRemoved MembershipStatus = "removed" // terminal
)

func (s MembershipStatus) Terminal() bool {
	return s == MembershipStatusLeft || s == MembershipStatusRemoved
}

// Membership links a user to a subscription's sharing group.
// Terminal rows are kept for audit; they do not block a re-join.
type Membership struct {
	ID             string
	SubscriptionID string
	UserID         string
	Role           MemberRole
	Status         MembershipStatus
	JoinedAt       time.Time
	UpdatedAt      time.Time
}

// NewMembership builds a fresh membership row.
func NewMembership(subscriptionID, userID string, role MemberRole, status MembershipStatus) *Membership {
	now := time.Now().UTC()
	return &Membership{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Role:           role,
		Status:         status,
		JoinedAt:       now,
		UpdatedAt:      now,
	}
}

func (m *Membership) IsActive() bool { return m != nil && m.Status == MembershipStatusActive }

var membershipTransitions = map[MembershipStatus][]MembershipStatus{
	MembershipStatusPending: {MembershipStatusActive, MembershipStatusRemoved, MembershipStatusLeft},
	MembershipStatusActive:  {MembershipStatusLeft, MembershipStatusRemoved, MembershipStatusBlocked},
	MembershipStatusBlocked: {MembershipStatusActive, MembershipStatusRemoved},
}

// CanTransition reports whether the membership state machine allows next.
func (m *Membership) CanTransition(next MembershipStatus) bool {
	for _, s := range membershipTransitions[m.Status] {
		if s == next {
			return true
		}
	}
	return false
}
