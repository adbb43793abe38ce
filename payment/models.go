// Package payment defines the external payment transaction, its lifecycle
// state machine, provider webhook events, and payment statistics.
package payment

import (
	"time"

	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/types"
)

// Status is the lifecycle state of a payment transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
	StatusRefunded  Status = "refunded"
)

// Kind distinguishes one-time purchases from recurring subscription charges.
// It determines the ledger transaction type of the credit grant.
type Kind string

const (
	KindOneTime      Kind = "one_time"
	KindSubscription Kind = "subscription"
)

// Transaction is an external payment record reconciled against the credit
// ledger. Provider references are opaque to the engine.
type Transaction struct {
	types.Entity
	ID             id.PaymentID      `json:"id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	PackageID      id.PackageID      `json:"package_id"`
	Kind           Kind              `json:"kind"`
	Status         Status            `json:"status"`

	// Provider references (checkout/session/invoice ids), opaque here.
	ProviderRef string `json:"provider_ref,omitempty"`
	InvoiceRef  string `json:"invoice_ref,omitempty"`

	Amount           types.Money `json:"amount"`
	CreditType       string      `json:"credit_type"`
	CreditsPurchased int64       `json:"credits_purchased"`
	CreditsAdded     int64       `json:"credits_added"`

	FailureReason   string      `json:"failure_reason,omitempty"`
	RefundedAmount  types.Money `json:"refunded_amount"`
	RefundedCredits int64       `json:"refunded_credits"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// FullyRefunded reports whether the cumulative refunded amount covers the
// whole payment.
func (t *Transaction) FullyRefunded() bool {
	return !t.RefundedAmount.IsZero() && t.RefundedAmount.Equal(t.Amount)
}

// WebhookEvent is a payment-provider lifecycle notification. EventID is the
// provider's delivery id and is the idempotency key: a processed EventID is
// never applied twice.
type WebhookEvent struct {
	EventID        string       `json:"event_id"`
	PaymentID      id.PaymentID `json:"payment_transaction_id"`
	Status         Status       `json:"status"`
	Amount         *types.Money `json:"amount,omitempty"`
	RefundedAmount *types.Money `json:"refunded_amount,omitempty"`
	FailureReason  string       `json:"failure_reason,omitempty"`
	ReceivedAt     time.Time    `json:"received_at"`
}

// Checkout is the provider-facing handle returned by a purchase application.
// The engine treats its contents as opaque.
type Checkout struct {
	PaymentID id.PaymentID `json:"payment_id"`
	Reference string       `json:"reference"`
	URL       string       `json:"url,omitempty"`
}

// ListOpts filters payment transaction listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
