package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onOrganizationCreated  []OnOrganizationCreated
	onOrganizationArchived []OnOrganizationArchived
	onCreditsGranted       []OnCreditsGranted
	onCreditsDebited       []OnCreditsDebited
	onCreditsAdjusted      []OnCreditsAdjusted
	onInsufficientCredits  []OnInsufficientCredits
	onLowBalance           []OnLowBalance
	onBalanceNegative      []OnBalanceNegative
	onPaymentCreated       []OnPaymentCreated
	onPaymentSucceeded     []OnPaymentSucceeded
	onPaymentFailed        []OnPaymentFailed
	onPaymentRefunded      []OnPaymentRefunded
	onWebhookReceived      []OnWebhookReceived
	onDuplicateWebhook     []OnDuplicateWebhook
	onReconciliationFailed []OnReconciliationFailed
	checkoutProviders      []CheckoutProviderPlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnOrganizationCreated); ok {
		r.onOrganizationCreated = append(r.onOrganizationCreated, v)
	}
	if v, ok := p.(OnOrganizationArchived); ok {
		r.onOrganizationArchived = append(r.onOrganizationArchived, v)
	}
	if v, ok := p.(OnCreditsGranted); ok {
		r.onCreditsGranted = append(r.onCreditsGranted, v)
	}
	if v, ok := p.(OnCreditsDebited); ok {
		r.onCreditsDebited = append(r.onCreditsDebited, v)
	}
	if v, ok := p.(OnCreditsAdjusted); ok {
		r.onCreditsAdjusted = append(r.onCreditsAdjusted, v)
	}
	if v, ok := p.(OnInsufficientCredits); ok {
		r.onInsufficientCredits = append(r.onInsufficientCredits, v)
	}
	if v, ok := p.(OnLowBalance); ok {
		r.onLowBalance = append(r.onLowBalance, v)
	}
	if v, ok := p.(OnBalanceNegative); ok {
		r.onBalanceNegative = append(r.onBalanceNegative, v)
	}
	if v, ok := p.(OnPaymentCreated); ok {
		r.onPaymentCreated = append(r.onPaymentCreated, v)
	}
	if v, ok := p.(OnPaymentSucceeded); ok {
		r.onPaymentSucceeded = append(r.onPaymentSucceeded, v)
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
	}
	if v, ok := p.(OnPaymentRefunded); ok {
		r.onPaymentRefunded = append(r.onPaymentRefunded, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}
	if v, ok := p.(OnDuplicateWebhook); ok {
		r.onDuplicateWebhook = append(r.onDuplicateWebhook, v)
	}
	if v, ok := p.(OnReconciliationFailed); ok {
		r.onReconciliationFailed = append(r.onReconciliationFailed, v)
	}
	if v, ok := p.(CheckoutProviderPlugin); ok {
		r.checkoutProviders = append(r.checkoutProviders, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnOrganizationCreated)(nil)).Elem(), "OnOrganizationCreated")
	checkInterface(reflect.TypeOf((*OnCreditsGranted)(nil)).Elem(), "OnCreditsGranted")
	checkInterface(reflect.TypeOf((*OnCreditsDebited)(nil)).Elem(), "OnCreditsDebited")
	checkInterface(reflect.TypeOf((*OnInsufficientCredits)(nil)).Elem(), "OnInsufficientCredits")
	checkInterface(reflect.TypeOf((*OnLowBalance)(nil)).Elem(), "OnLowBalance")
	checkInterface(reflect.TypeOf((*OnPaymentSucceeded)(nil)).Elem(), "OnPaymentSucceeded")
	checkInterface(reflect.TypeOf((*OnPaymentRefunded)(nil)).Elem(), "OnPaymentRefunded")
	checkInterface(reflect.TypeOf((*OnWebhookReceived)(nil)).Elem(), "OnWebhookReceived")
	checkInterface(reflect.TypeOf((*OnReconciliationFailed)(nil)).Elem(), "OnReconciliationFailed")
	checkInterface(reflect.TypeOf((*CheckoutProviderPlugin)(nil)).Elem(), "CheckoutProvider")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// CheckoutProviders returns all registered checkout provider plugins.
func (r *Registry) CheckoutProviders() []CheckoutProviderPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CheckoutProviderPlugin, len(r.checkoutProviders))
	copy(result, r.checkoutProviders)
	return result
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrganizationCreated emits an organization created event.
func (r *Registry) EmitOrganizationCreated(ctx context.Context, organization interface{}) {
	r.mu.RLock()
	plugins := r.onOrganizationCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOrganizationCreated(ctx, organization)
		}); err != nil {
			r.logger.Warn("plugin OnOrganizationCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrganizationArchived emits an organization archived event.
func (r *Registry) EmitOrganizationArchived(ctx context.Context, orgID string) {
	r.mu.RLock()
	plugins := r.onOrganizationArchived
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOrganizationArchived(ctx, orgID)
		}); err != nil {
			r.logger.Warn("plugin OnOrganizationArchived failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCreditsGranted emits a credits granted event.
func (r *Registry) EmitCreditsGranted(ctx context.Context, tx interface{}) {
	r.mu.RLock()
	plugins := r.onCreditsGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCreditsGranted(ctx, tx)
		}); err != nil {
			r.logger.Warn("plugin OnCreditsGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCreditsDebited emits a credits debited event.
func (r *Registry) EmitCreditsDebited(ctx context.Context, tx interface{}) {
	r.mu.RLock()
	plugins := r.onCreditsDebited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCreditsDebited(ctx, tx)
		}); err != nil {
			r.logger.Warn("plugin OnCreditsDebited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCreditsAdjusted emits a credits adjusted event.
func (r *Registry) EmitCreditsAdjusted(ctx context.Context, tx interface{}) {
	r.mu.RLock()
	plugins := r.onCreditsAdjusted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCreditsAdjusted(ctx, tx)
		}); err != nil {
			r.logger.Warn("plugin OnCreditsAdjusted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInsufficientCredits emits an insufficient credits event.
func (r *Registry) EmitInsufficientCredits(ctx context.Context, orgID, creditType string, requested, balance int64) {
	r.mu.RLock()
	plugins := r.onInsufficientCredits
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientCredits(ctx, orgID, creditType, requested, balance)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientCredits failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLowBalance emits a low balance event.
func (r *Registry) EmitLowBalance(ctx context.Context, orgID, creditType string, balance int64, level string) {
	r.mu.RLock()
	plugins := r.onLowBalance
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLowBalance(ctx, orgID, creditType, balance, level)
		}); err != nil {
			r.logger.Warn("plugin OnLowBalance failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBalanceNegative emits a negative balance event.
func (r *Registry) EmitBalanceNegative(ctx context.Context, orgID, creditType string, balance int64) {
	r.mu.RLock()
	plugins := r.onBalanceNegative
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBalanceNegative(ctx, orgID, creditType, balance)
		}); err != nil {
			r.logger.Warn("plugin OnBalanceNegative failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentCreated emits a payment created event.
func (r *Registry) EmitPaymentCreated(ctx context.Context, payment interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentCreated(ctx, payment)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentSucceeded emits a payment succeeded event.
func (r *Registry) EmitPaymentSucceeded(ctx context.Context, payment interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentSucceeded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentSucceeded(ctx, payment)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentSucceeded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentFailed emits a payment failed event.
func (r *Registry) EmitPaymentFailed(ctx context.Context, payment interface{}, reason string) {
	r.mu.RLock()
	plugins := r.onPaymentFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentFailed(ctx, payment, reason)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRefunded emits a payment refunded event.
func (r *Registry) EmitPaymentRefunded(ctx context.Context, payment interface{}, total bool) {
	r.mu.RLock()
	plugins := r.onPaymentRefunded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRefunded(ctx, payment, total)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRefunded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWebhookReceived emits a webhook received event.
func (r *Registry) EmitWebhookReceived(ctx context.Context, eventID, paymentID, status string) {
	r.mu.RLock()
	plugins := r.onWebhookReceived
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWebhookReceived(ctx, eventID, paymentID, status)
		}); err != nil {
			r.logger.Warn("plugin OnWebhookReceived failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDuplicateWebhook emits a duplicate webhook event.
func (r *Registry) EmitDuplicateWebhook(ctx context.Context, eventID string) {
	r.mu.RLock()
	plugins := r.onDuplicateWebhook
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDuplicateWebhook(ctx, eventID)
		}); err != nil {
			r.logger.Warn("plugin OnDuplicateWebhook failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReconciliationFailed emits a reconciliation failed event.
func (r *Registry) EmitReconciliationFailed(ctx context.Context, eventID string, cause error) {
	r.mu.RLock()
	plugins := r.onReconciliationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReconciliationFailed(ctx, eventID, cause)
		}); err != nil {
			r.logger.Warn("plugin OnReconciliationFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout to prevent hangs.
// The buffer on done lets a slow fn finish and exit after the timeout fires;
// only a plugin that never returns keeps its goroutine alive, one per emit.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
