package extension

// Config holds the Credits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.credits" or "credits" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// RefundPolicy controls refunds after partial spend: "reject" (default)
	// or "allow_negative".
	RefundPolicy string `json:"refund_policy" mapstructure:"refund_policy" yaml:"refund_policy"`

	// Currency is the reporting currency for zero-valued aggregates
	// (default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// DisableLowBalanceHooks turns off OnLowBalance emission after debits.
	DisableLowBalanceHooks bool `json:"disable_low_balance_hooks" mapstructure:"disable_low_balance_hooks" yaml:"disable_low_balance_hooks"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefundPolicy: "reject",
		Currency:     "usd",
	}
}
