// Package plugin provides an extensible plugin system for Crowdfund.
// Plugins hook into ledger lifecycle events to add auditing, metrics or
// notifications without touching the engine.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when a ledger is created or opened. l is the *crowdfund.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger is closed.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Contribution hooks
// ──────────────────────────────────────────────────

// OnContributionAccepted is called after a contribution is committed.
type OnContributionAccepted interface {
	Plugin
	OnContributionAccepted(ctx context.Context, c *contribution.Contribution) error
}

// OnContributionRejected is called when a contribution fails. reason wraps
// the sentinel the caller received.
type OnContributionRejected interface {
	Plugin
	OnContributionRejected(ctx context.Context, ledgerID id.LedgerID, funder types.Address, amount types.Amount, reason error) error
}

// ──────────────────────────────────────────────────
// Withdrawal hooks
// ──────────────────────────────────────────────────

// OnWithdrawn is called after the owner has been paid.
type OnWithdrawn interface {
	Plugin
	OnWithdrawn(ctx context.Context, w *withdrawal.Withdrawal) error
}

// OnWithdrawalFailed is called when withdraw or cheaperWithdraw fails,
// including unauthorized attempts.
type OnWithdrawalFailed interface {
	Plugin
	OnWithdrawalFailed(ctx context.Context, ledgerID id.LedgerID, caller types.Address, method withdrawal.Method, reason error) error
}

// ──────────────────────────────────────────────────
// Oracle hooks
// ──────────────────────────────────────────────────

// OnPriceRead is called after every successful price feed read.
type OnPriceRead interface {
	Plugin
	OnPriceRead(ctx context.Context, ledgerID id.LedgerID, price priceoracle.Price, elapsed time.Duration) error
}
