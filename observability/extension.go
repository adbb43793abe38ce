// Package observability provides a metrics extension for Credits that
// records lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"

	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnOrganizationCreated  = (*MetricsExtension)(nil)
	_ plugin.OnOrganizationArchived = (*MetricsExtension)(nil)
	_ plugin.OnCreditsGranted       = (*MetricsExtension)(nil)
	_ plugin.OnCreditsDebited       = (*MetricsExtension)(nil)
	_ plugin.OnCreditsAdjusted      = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientCredits  = (*MetricsExtension)(nil)
	_ plugin.OnLowBalance           = (*MetricsExtension)(nil)
	_ plugin.OnBalanceNegative      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCreated       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentSucceeded     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentFailed        = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRefunded      = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived      = (*MetricsExtension)(nil)
	_ plugin.OnDuplicateWebhook     = (*MetricsExtension)(nil)
	_ plugin.OnReconciliationFailed = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Credits plugin to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Organization metrics
	OrganizationCreated  Counter
	OrganizationArchived Counter

	// Ledger metrics
	CreditsGranted      Counter
	CreditsDebited      Counter
	CreditsAdjusted     Counter
	GrantAmount         Histogram
	DebitAmount         Histogram
	InsufficientCredits Counter
	LowBalance          Counter
	NegativeBalance     Counter

	// Payment metrics
	PaymentCreated   Counter
	PaymentSucceeded Counter
	PaymentFailed    Counter
	PaymentRefunded  Counter
	PaymentAmount    Histogram

	// Webhook metrics
	WebhookReceived      Counter
	WebhookDuplicate     Counter
	ReconciliationFailed Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Organization metrics
		OrganizationCreated:  factory.Counter("credits.organization.created"),
		OrganizationArchived: factory.Counter("credits.organization.archived"),

		// Ledger metrics
		CreditsGranted:      factory.Counter("credits.ledger.granted"),
		CreditsDebited:      factory.Counter("credits.ledger.debited"),
		CreditsAdjusted:     factory.Counter("credits.ledger.adjusted"),
		GrantAmount:         factory.Histogram("credits.ledger.grant.amount"),
		DebitAmount:         factory.Histogram("credits.ledger.debit.amount"),
		InsufficientCredits: factory.Counter("credits.ledger.insufficient"),
		LowBalance:          factory.Counter("credits.balance.low"),
		NegativeBalance:     factory.Counter("credits.balance.negative"),

		// Payment metrics
		PaymentCreated:   factory.Counter("credits.payment.created"),
		PaymentSucceeded: factory.Counter("credits.payment.succeeded"),
		PaymentFailed:    factory.Counter("credits.payment.failed"),
		PaymentRefunded:  factory.Counter("credits.payment.refunded"),
		PaymentAmount:    factory.Histogram("credits.payment.amount"),

		// Webhook metrics
		WebhookReceived:      factory.Counter("credits.webhook.received"),
		WebhookDuplicate:     factory.Counter("credits.webhook.duplicate"),
		ReconciliationFailed: factory.Counter("credits.webhook.reconciliation_failed"),

		// Error metrics
		StoreErrors:  factory.Counter("credits.store.errors"),
		PluginErrors: factory.Counter("credits.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Organization lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrganizationCreated implements plugin.OnOrganizationCreated.
func (m *MetricsExtension) OnOrganizationCreated(_ context.Context, _ interface{}) error {
	m.OrganizationCreated.Inc()
	return nil
}

// OnOrganizationArchived implements plugin.OnOrganizationArchived.
func (m *MetricsExtension) OnOrganizationArchived(_ context.Context, _ string) error {
	m.OrganizationArchived.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (m *MetricsExtension) OnCreditsGranted(_ context.Context, tx interface{}) error {
	m.CreditsGranted.Inc()
	if t, ok := tx.(*credit.Transaction); ok {
		m.GrantAmount.Observe(float64(t.Amount))
	}
	return nil
}

// OnCreditsDebited implements plugin.OnCreditsDebited.
func (m *MetricsExtension) OnCreditsDebited(_ context.Context, tx interface{}) error {
	m.CreditsDebited.Inc()
	if t, ok := tx.(*credit.Transaction); ok {
		m.DebitAmount.Observe(float64(-t.Amount))
	}
	return nil
}

// OnCreditsAdjusted implements plugin.OnCreditsAdjusted.
func (m *MetricsExtension) OnCreditsAdjusted(_ context.Context, _ interface{}) error {
	m.CreditsAdjusted.Inc()
	return nil
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (m *MetricsExtension) OnInsufficientCredits(_ context.Context, _, _ string, _, _ int64) error {
	m.InsufficientCredits.Inc()
	return nil
}

// OnLowBalance implements plugin.OnLowBalance.
func (m *MetricsExtension) OnLowBalance(_ context.Context, _, _ string, _ int64, _ string) error {
	m.LowBalance.Inc()
	return nil
}

// OnBalanceNegative implements plugin.OnBalanceNegative.
func (m *MetricsExtension) OnBalanceNegative(_ context.Context, _, _ string, _ int64) error {
	m.NegativeBalance.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (m *MetricsExtension) OnPaymentCreated(_ context.Context, p interface{}) error {
	m.PaymentCreated.Inc()
	if t, ok := p.(*payment.Transaction); ok {
		m.PaymentAmount.Observe(float64(t.Amount.Amount))
	}
	return nil
}

// OnPaymentSucceeded implements plugin.OnPaymentSucceeded.
func (m *MetricsExtension) OnPaymentSucceeded(_ context.Context, _ interface{}) error {
	m.PaymentSucceeded.Inc()
	return nil
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (m *MetricsExtension) OnPaymentFailed(_ context.Context, _ interface{}, _ string) error {
	m.PaymentFailed.Inc()
	return nil
}

// OnPaymentRefunded implements plugin.OnPaymentRefunded.
func (m *MetricsExtension) OnPaymentRefunded(_ context.Context, _ interface{}, _ bool) error {
	m.PaymentRefunded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, _, _, _ string) error {
	m.WebhookReceived.Inc()
	return nil
}

// OnDuplicateWebhook implements plugin.OnDuplicateWebhook.
func (m *MetricsExtension) OnDuplicateWebhook(_ context.Context, _ string) error {
	m.WebhookDuplicate.Inc()
	return nil
}

// OnReconciliationFailed implements plugin.OnReconciliationFailed.
func (m *MetricsExtension) OnReconciliationFailed(_ context.Context, _ string, _ error) error {
	m.ReconciliationFailed.Inc()
	return nil
}
