package extension

import (
	"github.com/xraph/forge"

	credits "github.com/talentbase/credits"
	"github.com/talentbase/credits/plugin"
	"github.com/talentbase/credits/store"
)

// Option configures the Credits Forge extension.
type Option func(*Extension)

// WithStore sets the store for the credits engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithStoreFactory defers store construction until Register, when the Forge
// app (and its DI container) is available. It takes precedence over the
// memory fallback but not over WithStore.
func WithStoreFactory(f func(fapp forge.App) (store.Store, error)) Option {
	return func(e *Extension) {
		e.storeFactory = f
	}
}

// WithEngineOption passes a credits.Option through to the underlying engine.
func WithEngineOption(opt credits.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a credits plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, credits.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRefundPolicy sets the refund policy ("reject" or "allow_negative").
func WithRefundPolicy(policy string) Option {
	return func(e *Extension) { e.config.RefundPolicy = policy }
}

// WithCurrency sets the reporting currency.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
