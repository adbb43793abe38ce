// Package audithook bridges Credits lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on a
// concrete audit system. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnOrganizationCreated  = (*Extension)(nil)
	_ plugin.OnOrganizationArchived = (*Extension)(nil)
	_ plugin.OnCreditsGranted       = (*Extension)(nil)
	_ plugin.OnCreditsDebited       = (*Extension)(nil)
	_ plugin.OnCreditsAdjusted      = (*Extension)(nil)
	_ plugin.OnInsufficientCredits  = (*Extension)(nil)
	_ plugin.OnLowBalance           = (*Extension)(nil)
	_ plugin.OnBalanceNegative      = (*Extension)(nil)
	_ plugin.OnPaymentCreated       = (*Extension)(nil)
	_ plugin.OnPaymentSucceeded     = (*Extension)(nil)
	_ plugin.OnPaymentFailed        = (*Extension)(nil)
	_ plugin.OnPaymentRefunded      = (*Extension)(nil)
	_ plugin.OnWebhookReceived      = (*Extension)(nil)
	_ plugin.OnDuplicateWebhook     = (*Extension)(nil)
	_ plugin.OnReconciliationFailed = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package carries no backend dependency — callers
// inject the concrete client at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Credits lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Organization lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrganizationCreated implements plugin.OnOrganizationCreated.
func (e *Extension) OnOrganizationCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionOrganizationCreated, SeverityInfo, OutcomeSuccess,
		ResourceOrganization, "", CategoryBilling, nil,
		"event", "organization_created",
	)
}

// OnOrganizationArchived implements plugin.OnOrganizationArchived.
func (e *Extension) OnOrganizationArchived(ctx context.Context, orgID string) error {
	return e.record(ctx, ActionOrganizationArchived, SeverityInfo, OutcomeSuccess,
		ResourceOrganization, orgID, CategoryBilling, nil,
		"organization_id", orgID,
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (e *Extension) OnCreditsGranted(ctx context.Context, tx interface{}) error {
	return e.record(ctx, ActionCreditsGranted, SeverityInfo, OutcomeSuccess,
		ResourceLedger, ledgerTxID(tx), CategoryLedger, nil,
		ledgerTxMeta(tx)...,
	)
}

// OnCreditsDebited implements plugin.OnCreditsDebited.
func (e *Extension) OnCreditsDebited(ctx context.Context, tx interface{}) error {
	return e.record(ctx, ActionCreditsDebited, SeverityInfo, OutcomeSuccess,
		ResourceLedger, ledgerTxID(tx), CategoryLedger, nil,
		ledgerTxMeta(tx)...,
	)
}

// OnCreditsAdjusted implements plugin.OnCreditsAdjusted.
func (e *Extension) OnCreditsAdjusted(ctx context.Context, tx interface{}) error {
	return e.record(ctx, ActionCreditsAdjusted, SeverityWarning, OutcomeSuccess,
		ResourceLedger, ledgerTxID(tx), CategoryLedger, nil,
		ledgerTxMeta(tx)...,
	)
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (e *Extension) OnInsufficientCredits(ctx context.Context, orgID, creditType string, requested, balance int64) error {
	return e.record(ctx, ActionCreditsInsufficient, SeverityWarning, OutcomeFailure,
		ResourceLedger, orgID, CategoryLedger, nil,
		"organization_id", orgID,
		"credit_type", creditType,
		"requested", requested,
		"balance", balance,
	)
}

// OnLowBalance implements plugin.OnLowBalance.
func (e *Extension) OnLowBalance(ctx context.Context, orgID, creditType string, balance int64, level string) error {
	return e.record(ctx, ActionBalanceLow, SeverityWarning, OutcomeSuccess,
		ResourceLedger, orgID, CategoryLedger, nil,
		"organization_id", orgID,
		"credit_type", creditType,
		"balance", balance,
		"level", level,
	)
}

// OnBalanceNegative implements plugin.OnBalanceNegative.
func (e *Extension) OnBalanceNegative(ctx context.Context, orgID, creditType string, balance int64) error {
	return e.record(ctx, ActionBalanceNegative, SeverityCritical, OutcomePartial,
		ResourceLedger, orgID, CategoryLedger, nil,
		"organization_id", orgID,
		"credit_type", creditType,
		"balance", balance,
	)
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (e *Extension) OnPaymentCreated(ctx context.Context, p interface{}) error {
	return e.record(ctx, ActionPaymentCreated, SeverityInfo, OutcomeSuccess,
		ResourcePayment, paymentTxID(p), CategoryPayment, nil,
		"event", "payment_created",
	)
}

// OnPaymentSucceeded implements plugin.OnPaymentSucceeded.
func (e *Extension) OnPaymentSucceeded(ctx context.Context, p interface{}) error {
	return e.record(ctx, ActionPaymentSucceeded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, paymentTxID(p), CategoryPayment, nil,
		"event", "payment_succeeded",
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(ctx context.Context, p interface{}, reason string) error {
	return e.record(ctx, ActionPaymentFailed, SeverityError, OutcomeFailure,
		ResourcePayment, paymentTxID(p), CategoryPayment, nil,
		"event", "payment_failed",
		"failure_reason", reason,
	)
}

// OnPaymentRefunded implements plugin.OnPaymentRefunded.
func (e *Extension) OnPaymentRefunded(ctx context.Context, p interface{}, total bool) error {
	outcome := OutcomePartial
	if total {
		outcome = OutcomeSuccess
	}
	return e.record(ctx, ActionPaymentRefunded, SeverityWarning, outcome,
		ResourcePayment, paymentTxID(p), CategoryPayment, nil,
		"event", "payment_refunded",
		"total", total,
	)
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (e *Extension) OnWebhookReceived(ctx context.Context, eventID, paymentID, status string) error {
	return e.record(ctx, ActionWebhookReceived, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, eventID, CategoryIntegration, nil,
		"event_id", eventID,
		"payment_id", paymentID,
		"status", status,
	)
}

// OnDuplicateWebhook implements plugin.OnDuplicateWebhook.
func (e *Extension) OnDuplicateWebhook(ctx context.Context, eventID string) error {
	return e.record(ctx, ActionWebhookDuplicate, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, eventID, CategoryIntegration, nil,
		"event_id", eventID,
	)
}

// OnReconciliationFailed implements plugin.OnReconciliationFailed.
func (e *Extension) OnReconciliationFailed(ctx context.Context, eventID string, err error) error {
	return e.record(ctx, ActionReconciliationFailed, SeverityCritical, OutcomeFailure,
		ResourceWebhook, eventID, CategoryIntegration, err,
		"event_id", eventID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func ledgerTxID(v interface{}) string {
	if tx, ok := v.(*credit.Transaction); ok {
		return tx.ID.String()
	}
	return ""
}

func ledgerTxMeta(v interface{}) []any {
	tx, ok := v.(*credit.Transaction)
	if !ok {
		return nil
	}
	return []any{
		"organization_id", tx.OrganizationID.String(),
		"credit_type", string(tx.CreditType),
		"amount", tx.Amount,
		"type", string(tx.Type),
	}
}

func paymentTxID(v interface{}) string {
	if t, ok := v.(*payment.Transaction); ok {
		return t.ID.String()
	}
	return ""
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
