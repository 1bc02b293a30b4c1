package domain

import (
	"errors"
	"fmt"
)

var (
	// Input and lookup errors
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("entity not found")
	ErrForbidden  = errors.New("forbidden")

	// Business-rule conflicts
	ErrCapacityConflict     = errors.New("capacity below active membership count")
	ErrSubscriptionFull     = errors.New("subscription is full")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrAlreadyMember        = errors.New("user is already a member")
	ErrNotMember            = errors.New("user is not a member")
	ErrOwnerCannotLeave     = errors.New("owner cannot leave the subscription")
	ErrInvalidTransition    = errors.New("invalid status transition")

	// Ledger errors
	ErrRefundNotEligible = errors.New("transaction is not eligible for refund")
	ErrPaymentProcessing = errors.New("payment processing failed")

	// Storage errors
	ErrPersistence        = errors.New("persistence failure")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrConflict           = errors.New("unique constraint conflict")
)

// Validation wraps ErrValidation with the offending field.
func Validation(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}
