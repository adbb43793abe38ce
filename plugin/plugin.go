// Package plugin provides an extensible plugin system for the Credits engine.
// Plugins can hook into ledger and payment lifecycle events to extend
// functionality (alerting, audit trails, metrics, checkout providers).
package plugin

import "context"

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Organization lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrganizationCreated is called when a new organization is created.
type OnOrganizationCreated interface {
	Plugin
	OnOrganizationCreated(ctx context.Context, organization interface{}) error
}

// OnOrganizationArchived is called when an organization is soft-archived.
type OnOrganizationArchived interface {
	Plugin
	OnOrganizationArchived(ctx context.Context, orgID string) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsGranted is called when a credit grant is appended to the ledger.
type OnCreditsGranted interface {
	Plugin
	OnCreditsGranted(ctx context.Context, tx interface{}) error
}

// OnCreditsDebited is called when a consumption debit is appended to the ledger.
type OnCreditsDebited interface {
	Plugin
	OnCreditsDebited(ctx context.Context, tx interface{}) error
}

// OnCreditsAdjusted is called when a manual adjustment is appended to the ledger.
type OnCreditsAdjusted interface {
	Plugin
	OnCreditsAdjusted(ctx context.Context, tx interface{}) error
}

// OnInsufficientCredits is called when a debit is rejected for lack of balance.
type OnInsufficientCredits interface {
	Plugin
	OnInsufficientCredits(ctx context.Context, orgID, creditType string, requested, balance int64) error
}

// OnLowBalance is called when a debit leaves a balance at or below a
// low-balance threshold.
type OnLowBalance interface {
	Plugin
	OnLowBalance(ctx context.Context, orgID, creditType string, balance int64, level string) error
}

// OnBalanceNegative is called when a refund under the allow-negative policy
// leaves an organization owing credits.
type OnBalanceNegative interface {
	Plugin
	OnBalanceNegative(ctx context.Context, orgID, creditType string, balance int64) error
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated is called when a pending payment transaction is created.
type OnPaymentCreated interface {
	Plugin
	OnPaymentCreated(ctx context.Context, payment interface{}) error
}

// OnPaymentSucceeded is called when a payment settles and credits are granted.
type OnPaymentSucceeded interface {
	Plugin
	OnPaymentSucceeded(ctx context.Context, payment interface{}) error
}

// OnPaymentFailed is called when a payment fails or is canceled.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, payment interface{}, reason string) error
}

// OnPaymentRefunded is called after a refund is applied. total reports
// whether the payment is now fully refunded.
type OnPaymentRefunded interface {
	Plugin
	OnPaymentRefunded(ctx context.Context, payment interface{}, total bool) error
}

// ──────────────────────────────────────────────────
// Webhook/reconciliation hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived is called for every structurally valid webhook event,
// before dedupe.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, eventID, paymentID, status string) error
}

// OnDuplicateWebhook is called when an already-processed event id is replayed.
type OnDuplicateWebhook interface {
	Plugin
	OnDuplicateWebhook(ctx context.Context, eventID string) error
}

// OnReconciliationFailed is called when applying a webhook event fails after
// dedupe. This is the internal alert seam for reconciliation problems.
type OnReconciliationFailed interface {
	Plugin
	OnReconciliationFailed(ctx context.Context, eventID string, err error) error
}

// ──────────────────────────────────────────────────
// Checkout providers
// ──────────────────────────────────────────────────

// CheckoutProviderPlugin supplies a payment-provider checkout implementation.
type CheckoutProviderPlugin interface {
	Plugin
	Provider() interface{} // Returns a credits.CheckoutProvider
}
