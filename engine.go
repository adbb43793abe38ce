package credits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/talentbase/credits/catalog"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/plugin"
	"github.com/talentbase/credits/store"
	"github.com/talentbase/credits/types"
)

// RefundPolicy controls what happens when a refund debit would drive a credit
// balance below zero because the organization already spent part of the grant.
type RefundPolicy string

const (
	// RefundPolicyReject refuses the refund with ErrInsufficientCredits.
	// This is the default: the ledger never goes negative.
	RefundPolicyReject RefundPolicy = "reject"

	// RefundPolicyAllowNegative applies the debit anyway and lets the
	// balance go negative. OnBalanceNegative fires so the host can collect.
	RefundPolicyAllowNegative RefundPolicy = "allow_negative"
)

// CheckoutProvider creates provider-side checkout sessions for pending
// payments. Stripe, Paddle, or an in-house PSP integration implements this;
// the engine ships a local provider for development and tests.
type CheckoutProvider interface {
	Name() string
	CreateCheckout(ctx context.Context, t *payment.Transaction, pkg *catalog.CreditPackage) (*payment.Checkout, error)
}

// Engine is the credit ledger and payment reconciliation engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Configuration
	refundPolicy    RefundPolicy
	currency        string
	checkout        CheckoutProvider
	lowBalanceHooks bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		refundPolicy:    RefundPolicyReject,
		currency:        "usd",
		lowBalanceHooks: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithRefundPolicy sets the behavior for refunds after partial spend.
func WithRefundPolicy(policy RefundPolicy) Option {
	return func(e *Engine) {
		e.refundPolicy = policy
	}
}

// WithCheckoutProvider sets the payment provider used by ApplyPurchase.
// It takes precedence over providers registered through plugins.
func WithCheckoutProvider(p CheckoutProvider) Option {
	return func(e *Engine) {
		e.checkout = p
	}
}

// WithCurrency sets the reporting currency for zero-valued aggregates.
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		e.currency = currency
	}
}

// WithLowBalanceHooks toggles OnLowBalance emission after debits.
func WithLowBalanceHooks(enabled bool) Option {
	return func(e *Engine) {
		e.lowBalanceHooks = enabled
	}
}

// Start migrates the store, rebuilds the balance projections from the ledger,
// and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// The ledger is the source of truth; resum it into the projection in
	// case a previous process died between an append and its balance bump.
	if err := e.store.RebuildBalances(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("credits engine started",
		"refund_policy", e.refundPolicy,
		"currency", e.currency,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down the engine.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// Plugins exposes the plugin registry for inspection.
func (e *Engine) Plugins() *plugin.Registry {
	return e.plugins
}

// ──────────────────────────────────────────────────
// Organization Management
// ──────────────────────────────────────────────────

// CreateOrganization creates a new tenant organization.
func (e *Engine) CreateOrganization(ctx context.Context, o *org.Organization) error {
	if o.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}

	if o.ID == (id.OrganizationID{}) {
		o.ID = id.NewOrganizationID()
	}
	o.Entity = types.NewEntity()

	if err := e.store.CreateOrganization(ctx, o); err != nil {
		return err
	}

	e.plugins.EmitOrganizationCreated(ctx, o)
	return nil
}

// GetOrganization retrieves an organization by ID.
func (e *Engine) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*org.Organization, error) {
	return e.store.GetOrganization(ctx, orgID)
}

// ListOrganizations lists organizations.
func (e *Engine) ListOrganizations(ctx context.Context, opts org.ListOpts) ([]*org.Organization, error) {
	return e.store.ListOrganizations(ctx, opts)
}

// ArchiveOrganization soft-archives an organization. The ledger and payment
// history remain readable; new debits and purchases are refused.
func (e *Engine) ArchiveOrganization(ctx context.Context, orgID id.OrganizationID) error {
	if err := e.store.ArchiveOrganization(ctx, orgID); err != nil {
		return err
	}

	e.plugins.EmitOrganizationArchived(ctx, orgID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Credit Package Catalog
// ──────────────────────────────────────────────────

// CreateCreditPackage creates a purchasable credit package.
func (e *Engine) CreateCreditPackage(ctx context.Context, p *catalog.CreditPackage) error {
	switch {
	case p.Name == "":
		return &ValidationError{Field: "name", Message: "must not be empty"}
	case !p.CreditType.Valid():
		return ErrInvalidCreditType
	case p.CreditsGranted <= 0:
		return &ValidationError{Field: "credits_granted", Message: "must be positive"}
	case !p.Price.IsPositive():
		return &ValidationError{Field: "price", Message: "must be positive"}
	}

	if p.Kind == "" {
		p.Kind = catalog.KindOneTime
	}

	if p.ID == (id.PackageID{}) {
		p.ID = id.NewPackageID()
	}
	p.Entity = types.NewEntity()

	return e.store.CreatePackage(ctx, p)
}

// GetCreditPackage retrieves a credit package by ID.
func (e *Engine) GetCreditPackage(ctx context.Context, pkgID id.PackageID) (*catalog.CreditPackage, error) {
	return e.store.GetPackage(ctx, pkgID)
}

// GetCreditPackageBySlug retrieves a credit package by its catalog slug.
func (e *Engine) GetCreditPackageBySlug(ctx context.Context, slug string) (*catalog.CreditPackage, error) {
	return e.store.GetPackageBySlug(ctx, slug)
}

// ListCreditPackages lists credit packages.
func (e *Engine) ListCreditPackages(ctx context.Context, opts catalog.ListOpts) ([]*catalog.CreditPackage, error) {
	return e.store.ListPackages(ctx, opts)
}

// ArchiveCreditPackage withdraws a package from sale. Settled payments keep
// referencing it.
func (e *Engine) ArchiveCreditPackage(ctx context.Context, pkgID id.PackageID) error {
	return e.store.ArchivePackage(ctx, pkgID)
}

// ──────────────────────────────────────────────────
// Credit Ledger
// ──────────────────────────────────────────────────

// Debit consumes credits for a billable action. The balance guard and the
// ledger append are a single atomic step in the store: two concurrent debits
// can never jointly overdraw a balance. relatedID links the entry to the
// consumption event (a CV batch, an interview session) and may be zero.
func (e *Engine) Debit(ctx context.Context, orgID id.OrganizationID, creditType credit.Type, amount int64, txType credit.TransactionType, relatedID id.AnyID, description string) (*credit.Transaction, error) {
	if !creditType.Valid() {
		return nil, ErrInvalidCreditType
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if err := e.requireActiveOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	tx := &credit.Transaction{
		Entity:         types.NewEntity(),
		ID:             id.NewTransactionID(),
		OrganizationID: orgID,
		CreditType:     creditType,
		Amount:         -amount,
		Type:           txType,
		RelatedID:      relatedID,
		Description:    description,
	}

	if err := e.store.AppendDebit(ctx, tx); err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			balance, balErr := e.store.CreditBalance(ctx, orgID, creditType)
			if balErr == nil {
				e.plugins.EmitInsufficientCredits(ctx, orgID.String(), string(creditType), amount, balance)
			}
		}
		return nil, err
	}

	e.plugins.EmitCreditsDebited(ctx, tx)
	e.notifyLowBalance(ctx, orgID, creditType)

	return tx, nil
}

// Adjust appends a manual correction entry. Positive amounts add credits,
// negative amounts remove them subject to the same balance guard as Debit.
// History is never rewritten: a mistake is corrected by another adjustment.
func (e *Engine) Adjust(ctx context.Context, orgID id.OrganizationID, creditType credit.Type, amount int64, description string) (*credit.Transaction, error) {
	if !creditType.Valid() {
		return nil, ErrInvalidCreditType
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	if err := e.requireActiveOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	tx := &credit.Transaction{
		Entity:         types.NewEntity(),
		ID:             id.NewTransactionID(),
		OrganizationID: orgID,
		CreditType:     creditType,
		Amount:         amount,
		Type:           credit.TxManualAdjustment,
		Description:    description,
	}

	var err error
	if amount < 0 {
		err = e.store.AppendDebit(ctx, tx)
	} else {
		err = e.store.AppendCredit(ctx, tx)
	}
	if err != nil {
		return nil, err
	}

	e.plugins.EmitCreditsAdjusted(ctx, tx)
	if amount < 0 {
		e.notifyLowBalance(ctx, orgID, creditType)
	}

	return tx, nil
}

// Balance returns the current balance for one credit type. Archived
// organizations remain readable.
func (e *Engine) Balance(ctx context.Context, orgID id.OrganizationID, creditType credit.Type) (int64, error) {
	if !creditType.Valid() {
		return 0, ErrInvalidCreditType
	}
	if _, err := e.store.GetOrganization(ctx, orgID); err != nil {
		return 0, err
	}
	return e.store.CreditBalance(ctx, orgID, creditType)
}

// GetBalances returns the current balance for every credit type. Archived
// organizations remain readable.
func (e *Engine) GetBalances(ctx context.Context, orgID id.OrganizationID) (*credit.Balances, error) {
	if _, err := e.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	return e.store.CreditBalances(ctx, orgID)
}

// BalanceLevels classifies every credit-type balance against the low-balance
// thresholds. The presentation layer uses the levels to drive purchase
// prompts.
func (e *Engine) BalanceLevels(ctx context.Context, orgID id.OrganizationID) (map[credit.Type]credit.Level, error) {
	balances, err := e.GetBalances(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return map[credit.Type]credit.Level{
		credit.TypeCVProcessing: credit.ClassifyLevel(balances.CVProcessing, credit.TypeCVProcessing),
		credit.TypeInterview:    credit.ClassifyLevel(balances.Interview, credit.TypeInterview),
	}, nil
}

// ListTransactions returns ledger entries for an organization, oldest first.
func (e *Engine) ListTransactions(ctx context.Context, orgID id.OrganizationID, opts credit.ListOpts) ([]*credit.Transaction, error) {
	return e.store.ListCreditTransactions(ctx, orgID, opts)
}

// ──────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────

// ApplyPurchase opens a checkout for a credit package: it records a pending
// payment transaction and asks the checkout provider for a session. No
// credits are granted here — the grant happens when the provider's webhook
// reports success.
func (e *Engine) ApplyPurchase(ctx context.Context, orgID id.OrganizationID, pkgID id.PackageID) (*payment.Checkout, error) {
	if err := e.requireActiveOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	pkg, err := e.store.GetPackage(ctx, pkgID)
	if err != nil {
		return nil, err
	}
	if pkg.IsArchived() {
		return nil, ErrPackageArchived
	}

	t := &payment.Transaction{
		Entity:           types.NewEntity(),
		ID:               id.NewPaymentID(),
		OrganizationID:   orgID,
		PackageID:        pkg.ID,
		Kind:             payment.Kind(pkg.Kind),
		Status:           payment.StatusPending,
		Amount:           pkg.Price,
		CreditType:       string(pkg.CreditType),
		CreditsPurchased: pkg.CreditsGranted,
		RefundedAmount:   types.Zero(pkg.Price.Currency),
	}

	if err := e.store.CreatePayment(ctx, t); err != nil {
		return nil, err
	}

	e.plugins.EmitPaymentCreated(ctx, t)

	checkout, err := e.checkoutProvider().CreateCheckout(ctx, t, pkg)
	if err != nil {
		// The pending payment stays; the provider webhook (or FailPayment)
		// resolves it.
		return nil, err
	}
	checkout.PaymentID = t.ID

	return checkout, nil
}

// checkoutProvider resolves the configured provider, falling back to
// plugin-registered providers and finally to the local one.
func (e *Engine) checkoutProvider() CheckoutProvider {
	if e.checkout != nil {
		return e.checkout
	}

	for _, p := range e.plugins.CheckoutProviders() {
		if provider, ok := p.Provider().(CheckoutProvider); ok {
			return provider
		}
	}

	return localCheckoutProvider{}
}

// localCheckoutProvider is the built-in no-op provider for development and
// tests. Its references never leave the process.
type localCheckoutProvider struct{}

func (localCheckoutProvider) Name() string { return "local" }

func (localCheckoutProvider) CreateCheckout(_ context.Context, t *payment.Transaction, _ *catalog.CreditPackage) (*payment.Checkout, error) {
	return &payment.Checkout{
		PaymentID: t.ID,
		Reference: "local_" + t.ID.String(),
	}, nil
}

// ──────────────────────────────────────────────────
// Webhook Reconciliation
// ──────────────────────────────────────────────────

// HandleWebhook applies a provider lifecycle notification to its payment.
// Deliveries are idempotent on EventID: a replayed event is acknowledged with
// a nil error and applied zero times. Unknown payments and invalid status
// transitions are returned as errors so the caller can reject the delivery.
func (e *Engine) HandleWebhook(ctx context.Context, evt *payment.WebhookEvent) error {
	if evt == nil || evt.EventID == "" || evt.PaymentID.IsNil() {
		return ErrWebhookEventInvalid
	}
	switch evt.Status {
	case payment.StatusSucceeded, payment.StatusFailed, payment.StatusCanceled, payment.StatusRefunded:
	default:
		return ErrWebhookEventInvalid
	}

	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}

	e.plugins.EmitWebhookReceived(ctx, evt.EventID, evt.PaymentID.String(), string(evt.Status))

	// Record-first: the unique event-id insert is the idempotency barrier.
	if err := e.store.RecordWebhookEvent(ctx, evt); err != nil {
		if errors.Is(err, ErrDuplicateWebhookEvent) {
			e.plugins.EmitDuplicateWebhook(ctx, evt.EventID)
			e.logger.Debug("duplicate webhook event acknowledged",
				"event_id", evt.EventID,
				"payment_id", evt.PaymentID,
			)
			return nil
		}
		return err
	}

	if err := e.dispatchWebhook(ctx, evt); err != nil {
		e.plugins.EmitReconciliationFailed(ctx, evt.EventID, err)
		e.logger.Error("webhook reconciliation failed",
			"event_id", evt.EventID,
			"payment_id", evt.PaymentID,
			"status", evt.Status,
			"error", err,
		)

		// A deterministic rejection (bad transition, unknown payment,
		// refund guard) would fail the same way on redelivery, so the
		// recorded event stays and keeps absorbing retries. Anything
		// else is a transient store failure: release the barrier so the
		// provider's redelivery of this event id can apply the event.
		if !isReconciliationRejection(err) {
			if delErr := e.store.DeleteWebhookEvent(ctx, evt.EventID); delErr != nil {
				e.logger.Error("failed to release webhook event after dispatch failure",
					"event_id", evt.EventID,
					"error", delErr,
				)
			}
		}
		return err
	}

	return nil
}

// isReconciliationRejection reports whether a dispatch failure is a
// deterministic domain rejection rather than a transient storage failure.
func isReconciliationRejection(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrRefundExceedsPayment) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrWebhookEventInvalid)
}

func (e *Engine) dispatchWebhook(ctx context.Context, evt *payment.WebhookEvent) error {
	switch evt.Status {
	case payment.StatusSucceeded:
		_, err := e.SettlePayment(ctx, evt.PaymentID, "", "")
		return err

	case payment.StatusFailed, payment.StatusCanceled:
		return e.FailPayment(ctx, evt.PaymentID, evt.Status, evt.FailureReason)

	case payment.StatusRefunded:
		var amount types.Money
		if evt.RefundedAmount != nil {
			amount = *evt.RefundedAmount
		}
		_, err := e.RefundPayment(ctx, evt.PaymentID, amount)
		return err
	}

	return ErrWebhookEventInvalid
}

// ──────────────────────────────────────────────────
// Payment Transitions
// ──────────────────────────────────────────────────

// SettlePayment marks a pending payment succeeded and grants its credits.
// The status transition and the ledger grant commit together in the store,
// and the pending-status guard makes settlement exactly-once under replays.
func (e *Engine) SettlePayment(ctx context.Context, payID id.PaymentID, providerRef, invoiceRef string) (*payment.Transaction, error) {
	t, err := e.store.GetPayment(ctx, payID)
	if err != nil {
		return nil, err
	}
	if !payment.CanTransition(t.Status, payment.StatusSucceeded) {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	t.Status = payment.StatusSucceeded
	t.CreditsAdded = t.CreditsPurchased
	t.CompletedAt = &now
	t.UpdatedAt = now
	if providerRef != "" {
		t.ProviderRef = providerRef
	}
	if invoiceRef != "" {
		t.InvoiceRef = invoiceRef
	}

	grantType := credit.TxPurchase
	if t.Kind == payment.KindSubscription {
		grantType = credit.TxSubscription
	}

	grant := &credit.Transaction{
		Entity:         types.NewEntity(),
		ID:             id.NewTransactionID(),
		OrganizationID: t.OrganizationID,
		CreditType:     credit.Type(t.CreditType),
		Amount:         t.CreditsAdded,
		Type:           grantType,
		RelatedID:      t.ID,
		Description:    "credit purchase",
	}

	if err := e.store.SettlePayment(ctx, t, grant); err != nil {
		return nil, err
	}

	e.plugins.EmitPaymentSucceeded(ctx, t)
	e.plugins.EmitCreditsGranted(ctx, grant)

	e.logger.Info("payment settled",
		"payment_id", t.ID,
		"organization_id", t.OrganizationID,
		"credits_added", t.CreditsAdded,
		"amount", t.Amount,
	)

	return t, nil
}

// FailPayment marks a pending payment failed or canceled. No credits were
// granted, so no ledger entry is written.
func (e *Engine) FailPayment(ctx context.Context, payID id.PaymentID, target payment.Status, reason string) error {
	if target != payment.StatusFailed && target != payment.StatusCanceled {
		return ErrInvalidTransition
	}

	if err := e.store.FailPayment(ctx, payID, target, reason); err != nil {
		return err
	}

	t, err := e.store.GetPayment(ctx, payID)
	if err != nil {
		return err
	}

	e.plugins.EmitPaymentFailed(ctx, t, reason)
	return nil
}

// CancelPayment marks a pending payment canceled by the purchaser.
func (e *Engine) CancelPayment(ctx context.Context, payID id.PaymentID, reason string) error {
	return e.FailPayment(ctx, payID, payment.StatusCanceled, reason)
}

// RefundPayment records a full or partial refund against a succeeded payment
// and claws back the proportional share of the granted credits with a
// compensating ledger debit. A zero amount refunds the entire remainder.
//
// Partial refunds leave the payment succeeded; the refund that brings the
// cumulative refunded amount up to the full payment amount transitions it to
// refunded. Cumulative refunds beyond the payment amount are rejected with
// ErrRefundExceedsPayment. The store write is guarded on the refunded amount
// this call read, so of two refunds racing from the same snapshot exactly one
// applies; the loser gets ErrRefundConflict and can re-read and retry.
//
// When the organization already spent part of the grant, the configured
// RefundPolicy decides: reject the refund, or let the balance go negative.
func (e *Engine) RefundPayment(ctx context.Context, payID id.PaymentID, amount types.Money) (*payment.Transaction, error) {
	t, err := e.store.GetPayment(ctx, payID)
	if err != nil {
		return nil, err
	}
	if t.Status != payment.StatusSucceeded {
		return nil, ErrInvalidTransition
	}

	if amount.IsZero() {
		amount = t.Amount.Subtract(t.RefundedAmount)
	}
	if amount.IsNegative() || amount.Currency != t.Amount.Currency {
		return nil, ErrInvalidAmount
	}

	prevRefunded := t.RefundedAmount.Amount
	newTotal := t.RefundedAmount.Add(amount)
	if newTotal.GreaterThan(t.Amount) {
		return nil, ErrRefundExceedsPayment
	}
	total := newTotal.Equal(t.Amount)

	// Proportional clawback; a total refund takes whatever the proportional
	// shares left behind so the grant nets to exactly zero.
	refundCredits := amount.Amount * t.CreditsAdded / t.Amount.Amount
	if total {
		refundCredits = t.CreditsAdded - t.RefundedCredits
	}

	now := time.Now().UTC()
	t.RefundedAmount = newTotal
	t.RefundedCredits += refundCredits
	t.UpdatedAt = now
	if total {
		t.Status = payment.StatusRefunded
	}

	var debit *credit.Transaction
	if refundCredits > 0 {
		debit = &credit.Transaction{
			Entity:         types.NewEntity(),
			ID:             id.NewTransactionID(),
			OrganizationID: t.OrganizationID,
			CreditType:     credit.Type(t.CreditType),
			Amount:         -refundCredits,
			Type:           credit.TxRefund,
			RelatedID:      t.ID,
			Description:    "payment refund",
		}
	}

	allowNegative := e.refundPolicy == RefundPolicyAllowNegative

	if err := e.store.RefundPayment(ctx, t, prevRefunded, debit, allowNegative); err != nil {
		return nil, err
	}

	if debit != nil {
		e.plugins.EmitCreditsDebited(ctx, debit)

		if allowNegative {
			balance, balErr := e.store.CreditBalance(ctx, t.OrganizationID, credit.Type(t.CreditType))
			if balErr == nil && balance < 0 {
				e.plugins.EmitBalanceNegative(ctx, t.OrganizationID.String(), t.CreditType, balance)
				e.logger.Warn("refund drove balance negative",
					"payment_id", t.ID,
					"organization_id", t.OrganizationID,
					"credit_type", t.CreditType,
					"balance", balance,
				)
			}
		}
	}

	e.plugins.EmitPaymentRefunded(ctx, t, total)

	e.logger.Info("payment refunded",
		"payment_id", t.ID,
		"organization_id", t.OrganizationID,
		"refunded_amount", t.RefundedAmount,
		"refunded_credits", t.RefundedCredits,
		"total", total,
	)

	return t, nil
}

// GetPayment retrieves a payment transaction by ID.
func (e *Engine) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Transaction, error) {
	return e.store.GetPayment(ctx, payID)
}

// ListPayments returns payment transactions for an organization, oldest
// first.
func (e *Engine) ListPayments(ctx context.Context, orgID id.OrganizationID, opts payment.ListOpts) ([]*payment.Transaction, error) {
	return e.store.ListPayments(ctx, orgID, opts)
}

// GetPaymentStats summarizes an organization's payment history.
func (e *Engine) GetPaymentStats(ctx context.Context, orgID id.OrganizationID) (payment.Stats, error) {
	txs, err := e.store.ListPayments(ctx, orgID, payment.ListOpts{})
	if err != nil {
		return payment.Stats{}, err
	}
	return payment.Summarize(txs, e.currency), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (e *Engine) requireActiveOrganization(ctx context.Context, orgID id.OrganizationID) error {
	o, err := e.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if o.IsArchived() {
		return ErrOrganizationArchived
	}
	return nil
}

func (e *Engine) notifyLowBalance(ctx context.Context, orgID id.OrganizationID, creditType credit.Type) {
	if !e.lowBalanceHooks {
		return
	}

	balance, err := e.store.CreditBalance(ctx, orgID, creditType)
	if err != nil {
		return
	}

	if level := credit.ClassifyLevel(balance, creditType); level != credit.LevelNormal {
		e.plugins.EmitLowBalance(ctx, orgID.String(), string(creditType), balance, string(level))
	}
}
