package extension

import (
	"time"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/plugin"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/store"
)

// Option configures the Crowdfund Forge extension.
type Option func(*Extension)

// WithStore sets the store backing the ledger.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPriceFeed sets the price feed used to value contributions. Required.
func WithPriceFeed(feed priceoracle.Feed) Option {
	return func(e *Extension) {
		e.feed = feed
	}
}

// WithTransferer sets where withdrawn funds are sent.
func WithTransferer(t payout.Transferer) Option {
	return func(e *Extension) {
		e.payer = t
	}
}

// WithLedgerOption passes a crowdfund.Option through to the underlying ledger.
func WithLedgerOption(opt crowdfund.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, crowdfund.WithPlugin(p))
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

// WithLedgerID re-opens an existing ledger instead of creating one.
func WithLedgerID(ledgerID string) Option {
	return func(e *Extension) { e.config.LedgerID = ledgerID }
}

// WithOwner sets the owner of a newly created ledger.
func WithOwner(owner string) Option {
	return func(e *Extension) { e.config.Owner = owner }
}

// WithMinimumUSD sets the minimum contribution in dollars, e.g. "50".
func WithMinimumUSD(usd string) Option {
	return func(e *Extension) { e.config.MinimumUSD = usd }
}

// WithFeedDecimals sets the precision the price feed must report.
func WithFeedDecimals(decimals uint8) Option {
	return func(e *Extension) { e.config.FeedDecimals = decimals }
}

// WithMaxPriceAge rejects prices older than d.
func WithMaxPriceAge(d time.Duration) Option {
	return func(e *Extension) { e.config.MaxPriceAge = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
