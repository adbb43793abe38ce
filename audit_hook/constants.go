package audithook

// Action constants for audit events.
const (
	// Organization actions
	ActionOrganizationCreated  = "organization.created"
	ActionOrganizationArchived = "organization.archived"

	// Ledger actions
	ActionCreditsGranted      = "credits.granted"
	ActionCreditsDebited      = "credits.debited"
	ActionCreditsAdjusted     = "credits.adjusted"
	ActionCreditsInsufficient = "credits.insufficient"
	ActionBalanceLow          = "balance.low"
	ActionBalanceNegative     = "balance.negative"

	// Payment actions
	ActionPaymentCreated   = "payment.created"
	ActionPaymentSucceeded = "payment.succeeded"
	ActionPaymentFailed    = "payment.failed"
	ActionPaymentRefunded  = "payment.refunded"

	// Webhook actions
	ActionWebhookReceived      = "webhook.received"
	ActionWebhookDuplicate     = "webhook.duplicate"
	ActionReconciliationFailed = "reconciliation.failed"
)

// Resource constants for audit events.
const (
	ResourceOrganization = "organization"
	ResourceLedger       = "ledger"
	ResourcePayment      = "payment"
	ResourceWebhook      = "webhook"
)

// Category constants for audit events.
const (
	CategoryBilling     = "billing"
	CategoryLedger      = "ledger"
	CategoryPayment     = "payment"
	CategoryIntegration = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
