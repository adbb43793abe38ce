package credits

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("credits: not found")
	ErrAlreadyExists = errors.New("credits: already exists")
	ErrInvalidInput  = errors.New("credits: invalid input")

	// Organization errors
	ErrOrganizationNotFound = errors.New("credits: organization not found")
	ErrOrganizationArchived = errors.New("credits: organization is archived")

	// Ledger errors
	ErrInvalidAmount       = errors.New("credits: invalid amount")
	ErrInvalidCreditType   = errors.New("credits: invalid credit type")
	ErrInsufficientCredits = errors.New("credits: insufficient credits")

	// Payment errors
	ErrPaymentNotFound      = errors.New("credits: payment not found")
	ErrInvalidTransition    = errors.New("credits: invalid payment status transition")
	ErrRefundExceedsPayment = errors.New("credits: refund exceeds payment amount")
	ErrRefundConflict       = errors.New("credits: concurrent refund modified the payment")

	// Webhook errors
	ErrDuplicateWebhookEvent = errors.New("credits: duplicate webhook event")
	ErrWebhookEventInvalid   = errors.New("credits: webhook event invalid")

	// Catalog errors
	ErrPackageNotFound = errors.New("credits: credit package not found")
	ErrPackageArchived = errors.New("credits: credit package is archived")

	// Checkout errors
	ErrProviderNotConfigured = errors.New("credits: checkout provider not configured")

	// Store errors
	ErrStoreNotReady   = errors.New("credits: store not ready")
	ErrStoreClosed     = errors.New("credits: store is closed")
	ErrMigrationFailed = errors.New("credits: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("credits: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOrganizationNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrPackageNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrMigrationFailed)
}
