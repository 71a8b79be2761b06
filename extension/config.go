package extension

import "time"

// Config holds the Crowdfund extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.crowdfund" or "crowdfund" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// LedgerID re-opens a persisted ledger on start. When empty a new ledger
	// is created for Owner.
	LedgerID string `json:"ledger_id" mapstructure:"ledger_id" yaml:"ledger_id"`

	// Owner is the address allowed to withdraw from a newly created ledger.
	Owner string `json:"owner" mapstructure:"owner" yaml:"owner"`

	// MinimumUSD is the smallest accepted contribution in dollars (default: "50").
	MinimumUSD string `json:"minimum_usd" mapstructure:"minimum_usd" yaml:"minimum_usd"`

	// FeedDecimals is the precision the price feed must report (default: 8).
	FeedDecimals uint8 `json:"feed_decimals" mapstructure:"feed_decimals" yaml:"feed_decimals"`

	// MaxPriceAge rejects prices older than this. Zero disables the check.
	MaxPriceAge time.Duration `json:"max_price_age" mapstructure:"max_price_age" yaml:"max_price_age"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinimumUSD:   "50",
		FeedDecimals: 8,
	}
}
