// Package observability provides a metrics extension for Crowdfund that
// records ledger event counts and value distributions via a MetricFactory.
package observability

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/plugin"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnContributionAccepted = (*MetricsExtension)(nil)
	_ plugin.OnContributionRejected = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawn            = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawalFailed     = (*MetricsExtension)(nil)
	_ plugin.OnPriceRead            = (*MetricsExtension)(nil)
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

// MetricsExtension records ledger metrics.
// Register it as a ledger plugin to track funding and payouts.
type MetricsExtension struct {
	factory MetricFactory

	// Ledger metrics
	LedgersOpened Counter

	// Contribution metrics
	ContributionsAccepted     Counter
	ContributionsRejected     Counter
	ContributionsBelowMinimum Counter
	ContributionAmount        Histogram
	ContributionUSD           Histogram

	// Withdrawal metrics
	WithdrawalsCompleted    Counter
	WithdrawalsFailed       Counter
	WithdrawalsUnauthorized Counter
	TransferFailures        Counter
	WithdrawalAmount        Histogram
	FundersCleared          Histogram

	// Oracle metrics
	PriceReads    Counter
	OracleErrors  Counter
	PriceLatency  Histogram
	PriceObserved Histogram

	// Error metrics
	StoreErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		LedgersOpened: factory.Counter("crowdfund.ledger.opened"),

		ContributionsAccepted:     factory.Counter("crowdfund.contribution.accepted"),
		ContributionsRejected:     factory.Counter("crowdfund.contribution.rejected"),
		ContributionsBelowMinimum: factory.Counter("crowdfund.contribution.below_minimum"),
		ContributionAmount:        factory.Histogram("crowdfund.contribution.amount_native"),
		ContributionUSD:           factory.Histogram("crowdfund.contribution.amount_usd"),

		WithdrawalsCompleted:    factory.Counter("crowdfund.withdrawal.completed"),
		WithdrawalsFailed:       factory.Counter("crowdfund.withdrawal.failed"),
		WithdrawalsUnauthorized: factory.Counter("crowdfund.withdrawal.unauthorized"),
		TransferFailures:        factory.Counter("crowdfund.withdrawal.transfer_failures"),
		WithdrawalAmount:        factory.Histogram("crowdfund.withdrawal.amount_native"),
		FundersCleared:          factory.Histogram("crowdfund.withdrawal.funders_cleared"),

		PriceReads:    factory.Counter("crowdfund.oracle.reads"),
		OracleErrors:  factory.Counter("crowdfund.oracle.errors"),
		PriceLatency:  factory.Histogram("crowdfund.oracle.latency_ms"),
		PriceObserved: factory.Histogram("crowdfund.oracle.price_usd"),

		StoreErrors: factory.Counter("crowdfund.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	m.LedgersOpened.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Contribution hooks
// ──────────────────────────────────────────────────

// OnContributionAccepted implements plugin.OnContributionAccepted.
func (m *MetricsExtension) OnContributionAccepted(_ context.Context, c *contribution.Contribution) error {
	m.ContributionsAccepted.Inc()
	m.ContributionAmount.Observe(c.Amount.InexactFloat64())
	m.ContributionUSD.Observe(c.USDValue.InexactFloat64())
	return nil
}

// OnContributionRejected implements plugin.OnContributionRejected.
func (m *MetricsExtension) OnContributionRejected(_ context.Context, _ id.LedgerID, _ types.Address, _ types.Amount, reason error) error {
	m.ContributionsRejected.Inc()
	switch {
	case errors.Is(reason, crowdfund.ErrInsufficientContribution):
		m.ContributionsBelowMinimum.Inc()
	case errors.Is(reason, crowdfund.ErrOracleUnavailable):
		m.OracleErrors.Inc()
	case errors.Is(reason, crowdfund.ErrInvalidAddress), errors.Is(reason, crowdfund.ErrInvalidAmount):
	default:
		m.StoreErrors.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Withdrawal hooks
// ──────────────────────────────────────────────────

// OnWithdrawn implements plugin.OnWithdrawn.
func (m *MetricsExtension) OnWithdrawn(_ context.Context, w *withdrawal.Withdrawal) error {
	m.WithdrawalsCompleted.Inc()
	m.WithdrawalAmount.Observe(w.Amount.InexactFloat64())
	m.FundersCleared.Observe(float64(w.FundersCleared))
	return nil
}

// OnWithdrawalFailed implements plugin.OnWithdrawalFailed.
func (m *MetricsExtension) OnWithdrawalFailed(_ context.Context, _ id.LedgerID, _ types.Address, _ withdrawal.Method, reason error) error {
	switch {
	case errors.Is(reason, crowdfund.ErrNotOwner):
		m.WithdrawalsUnauthorized.Inc()
		return nil
	case errors.Is(reason, crowdfund.ErrTransferFailed):
		m.TransferFailures.Inc()
	default:
		m.StoreErrors.Inc()
	}
	m.WithdrawalsFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Oracle hooks
// ──────────────────────────────────────────────────

// OnPriceRead implements plugin.OnPriceRead.
func (m *MetricsExtension) OnPriceRead(_ context.Context, _ id.LedgerID, p priceoracle.Price, elapsed time.Duration) error {
	m.PriceReads.Inc()
	m.PriceLatency.Observe(float64(elapsed.Microseconds()) / 1000)
	if p.Answer != nil {
		m.PriceObserved.Observe(decimal.NewFromBigInt(new(big.Int).Set(p.Answer), -int32(p.Decimals)).InexactFloat64())
	}
	return nil
}
