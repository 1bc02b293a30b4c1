package api

import (
	"time"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
)

type subscriptionJSON struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Title            string    `json:"title"`
	Price            int64     `json:"price"`
	Currency         string    `json:"currency"`
	Cycle            string    `json:"billing_cycle"`
	MaxMembers       int       `json:"max_members"`
	Visibility       string    `json:"visibility"`
	Status           string    `json:"status"`
	RequiresApproval bool      `json:"requires_approval"`
	HasCredential    bool      `json:"has_credential"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toSubscriptionJSON(s *model.Subscription) subscriptionJSON {
	return subscriptionJSON{
		ID:               s.ID,
		OwnerID:          s.OwnerID,
		Title:            s.Title,
		Price:            s.Price,
		Currency:         s.Currency,
		Cycle:            string(s.Cycle),
		MaxMembers:       s.MaxMembers,
		Visibility:       string(s.Visibility),
		Status:           string(s.Status),
		RequiresApproval: s.RequiresApproval,
		HasCredential:    s.AccountCredential != "",
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

type membershipJSON struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	Status         string    `json:"status"`
	JoinedAt       time.Time `json:"joined_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toMembershipJSON(m *model.Membership) membershipJSON {
	return membershipJSON{
		ID:             m.ID,
		SubscriptionID: m.SubscriptionID,
		UserID:         m.UserID,
		Role:           string(m.Role),
		Status:         string(m.Status),
		JoinedAt:       m.JoinedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type transactionJSON struct {
	ID                  string     `json:"id"`
	Type                string     `json:"type"`
	Status              string     `json:"status"`
	Amount              int64      `json:"amount"`
	Currency            string     `json:"currency"`
	UserID              string     `json:"user_id"`
	SubscriptionID      string     `json:"subscription_id"`
	Description         string     `json:"description,omitempty"`
	LinkedTransactionID *string    `json:"linked_transaction_id,omitempty"`
	FailureReason       *string    `json:"failure_reason,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty"`
}

// Processor references and payment method refs stay server-side.
func toTransactionJSON(t *model.Transaction) transactionJSON {
	return transactionJSON{
		ID:                  t.ID,
		Type:                string(t.Type),
		Status:              string(t.Status),
		Amount:              t.Amount,
		Currency:            t.Currency,
		UserID:              t.UserID,
		SubscriptionID:      t.SubscriptionID,
		Description:         t.Description,
		LinkedTransactionID: t.LinkedTransactionID,
		FailureReason:       t.FailureReason,
		CreatedAt:           t.CreatedAt,
		ProcessedAt:         t.ProcessedAt,
	}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}
