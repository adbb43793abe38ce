package payment

import (
	"context"

	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
)

// Store is the payment transaction contract. Transition methods are
// status-guarded: they only apply when the stored row is still in the
// expected source state, so a replayed or concurrent webhook delivery can
// never settle or refund the same payment twice.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, payID id.PaymentID) (*Transaction, error)
	List(ctx context.Context, orgID id.OrganizationID, opts ListOpts) ([]*Transaction, error)

	// RecordWebhookEvent persists the provider event id before any mutation.
	// A previously recorded event id is rejected as a duplicate.
	RecordWebhookEvent(ctx context.Context, evt *WebhookEvent) error

	// Settle transitions pending → succeeded and appends the credit grant in
	// a single atomic unit.
	Settle(ctx context.Context, t *Transaction, grant *credit.Transaction) error

	// Fail transitions pending → failed/canceled. No ledger entry.
	Fail(ctx context.Context, payID id.PaymentID, target Status, failureReason string) error

	// Refund records refunded amount/credits on a succeeded payment and
	// appends the compensating ledger debit in a single atomic unit. When
	// allowNegative is false the debit is balance-guarded. A total refund
	// transitions succeeded → refunded; partial refunds keep the status.
	Refund(ctx context.Context, t *Transaction, debit *credit.Transaction, allowNegative bool) error
}
