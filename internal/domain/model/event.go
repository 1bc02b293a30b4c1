package model

import "time"

type EventType string

const (
	EventSubscriptionCreated EventType = "subscription.created"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventMembershipJoined    EventType = "membership.joined"
	EventMembershipChanged   EventType = "membership.changed"
	EventPaymentCompleted    EventType = "payment.completed"
	EventPaymentFailed       EventType = "payment.failed"
	EventRefundCompleted     EventType = "refund.completed"
	EventPayoutRecorded      EventType = "payout.recorded"
)

// Event is emitted fire-and-forget to the notification service.
type Event struct {
	Type           EventType         `json:"type"`
	SubscriptionID string            `json:"subscription_id"`
	UserID         string            `json:"user_id,omitempty"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func NewEvent(typ EventType, subscriptionID, userID string) Event {
	return Event{Type: typ, SubscriptionID: subscriptionID, UserID: userID, OccurredAt: time.Now().UTC()}
}
