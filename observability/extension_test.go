package observability_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/observability"
	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/store/memory"
	"github.com/xraph/crowdfund/types"
)

const (
	owner  types.Address = "0x00000000000000000000000000000000000000b1"
	funder types.Address = "0x00000000000000000000000000000000000000b2"
)

type fakeCounter struct {
	mu sync.Mutex
	v  float64
}

func (c *fakeCounter) Inc() { c.Add(1) }

func (c *fakeCounter) Add(v float64) {
	c.mu.Lock()
	c.v += v
	c.mu.Unlock()
}

func (c *fakeCounter) value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

type fakeHistogram struct {
	mu      sync.Mutex
	samples []float64
}

func (h *fakeHistogram) Observe(v float64) {
	h.mu.Lock()
	h.samples = append(h.samples, v)
	h.mu.Unlock()
}

func (h *fakeHistogram) observed() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float64(nil), h.samples...)
}

type fakeFactory struct {
	counters   map[string]*fakeCounter
	histograms map[string]*fakeHistogram
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		counters:   make(map[string]*fakeCounter),
		histograms: make(map[string]*fakeHistogram),
	}
}

func (f *fakeFactory) Counter(name string) observability.Counter {
	c := &fakeCounter{}
	f.counters[name] = c
	return c
}

func (f *fakeFactory) Histogram(name string) observability.Histogram {
	h := &fakeHistogram{}
	f.histograms[name] = h
	return h
}

// runScenario opens a ledger, rejects one contribution, accepts one, fails one
// unauthorized withdrawal, one transfer and then completes a withdrawal.
func runScenario(t *testing.T, ext *observability.MetricsExtension) {
	t.Helper()
	ctx := context.Background()
	vault := payout.NewVault()

	l, err := crowdfund.Create(ctx, memory.New(), owner, priceoracle.NewMockFeedUSD(2000), vault,
		crowdfund.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		crowdfund.WithPlugin(ext),
	)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, _ = l.Contribute(ctx, funder, types.MustParseEther("0.01"))
	if _, err := l.Contribute(ctx, funder, types.Ether(1)); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	_, _ = l.Withdraw(ctx, funder)

	vault.Reject(owner, nil)
	_, _ = l.Withdraw(ctx, owner)
	vault.Accept(owner)

	if _, err := l.CheaperWithdraw(ctx, owner); err != nil {
		t.Fatalf("CheaperWithdraw: %v", err)
	}
}

func TestMetricsExtension(t *testing.T) {
	factory := newFakeFactory()
	ext := observability.NewMetricsExtension(factory)
	runScenario(t, ext)

	counters := []struct {
		name string
		want float64
	}{
		{"crowdfund.ledger.opened", 1},
		{"crowdfund.contribution.accepted", 1},
		{"crowdfund.contribution.rejected", 1},
		{"crowdfund.contribution.below_minimum", 1},
		{"crowdfund.withdrawal.completed", 1},
		{"crowdfund.withdrawal.failed", 1},
		{"crowdfund.withdrawal.unauthorized", 1},
		{"crowdfund.withdrawal.transfer_failures", 1},
		{"crowdfund.oracle.reads", 2},
		{"crowdfund.oracle.errors", 0},
		{"crowdfund.store.errors", 0},
	}
	for _, tt := range counters {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := factory.counters[tt.name]
			if !ok {
				t.Fatalf("counter %q not created", tt.name)
			}
			if got := c.value(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	amounts := factory.histograms["crowdfund.contribution.amount_native"].observed()
	if len(amounts) != 1 || amounts[0] != 1 {
		t.Errorf("contribution amounts = %v, want [1]", amounts)
	}
	usd := factory.histograms["crowdfund.contribution.amount_usd"].observed()
	if len(usd) != 1 || usd[0] != 2000 {
		t.Errorf("contribution usd = %v, want [2000]", usd)
	}
	prices := factory.histograms["crowdfund.oracle.price_usd"].observed()
	if len(prices) != 2 || prices[0] != 2000 {
		t.Errorf("observed prices = %v, want two samples of 2000", prices)
	}
	cleared := factory.histograms["crowdfund.withdrawal.funders_cleared"].observed()
	if len(cleared) != 1 || cleared[0] != 1 {
		t.Errorf("funders cleared = %v, want [1]", cleared)
	}
}

func TestMetricsExtensionOracleFailure(t *testing.T) {
	factory := newFakeFactory()
	ext := observability.NewMetricsExtension(factory)
	ctx := context.Background()

	feed := priceoracle.NewMockFeedUSD(0)
	l, err := crowdfund.Create(ctx, memory.New(), owner, feed, payout.NewVault(),
		crowdfund.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		crowdfund.WithPlugin(ext),
	)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := l.Contribute(ctx, funder, types.Ether(1)); err == nil {
		t.Fatal("expected contribution to fail with a zero price")
	}

	if got := factory.counters["crowdfund.oracle.errors"].value(); got != 1 {
		t.Errorf("oracle errors = %v, want 1", got)
	}
	if got := factory.counters["crowdfund.contribution.below_minimum"].value(); got != 0 {
		t.Errorf("below minimum = %v, want 0", got)
	}
}

func TestMetricsExtensionRejectionReasons(t *testing.T) {
	tests := []struct {
		name        string
		reason      error
		belowMin    float64
		oracle      float64
		storeErrors float64
	}{
		{"below minimum", fmt.Errorf("%w: $20.00", crowdfund.ErrInsufficientContribution), 1, 0, 0},
		{"zero amount", fmt.Errorf("%w: %w", crowdfund.ErrInsufficientContribution, crowdfund.ErrInvalidAmount), 1, 0, 0},
		{"overflow", fmt.Errorf("%w: held balance would overflow", crowdfund.ErrInvalidAmount), 0, 0, 0},
		{"empty caller", crowdfund.ErrInvalidAddress, 0, 0, 0},
		{"oracle", crowdfund.ErrOracleUnavailable, 0, 1, 0},
		{"store", errors.New("disk full"), 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := newFakeFactory()
			ext := observability.NewMetricsExtension(factory)

			if err := ext.OnContributionRejected(context.Background(), id.NewLedgerID(), funder, types.Ether(1), tt.reason); err != nil {
				t.Fatalf("OnContributionRejected: %v", err)
			}

			got := map[string]float64{
				"rejected":    factory.counters["crowdfund.contribution.rejected"].value(),
				"belowMin":    factory.counters["crowdfund.contribution.below_minimum"].value(),
				"oracle":      factory.counters["crowdfund.oracle.errors"].value(),
				"storeErrors": factory.counters["crowdfund.store.errors"].value(),
			}
			want := map[string]float64{
				"rejected":    1,
				"belowMin":    tt.belowMin,
				"oracle":      tt.oracle,
				"storeErrors": tt.storeErrors,
			}
			for k, w := range want {
				if got[k] != w {
					t.Errorf("%s = %v, want %v", k, got[k], w)
				}
			}
		})
	}
}

func TestPrometheusFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	ext := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
	runScenario(t, ext)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	counters := make(map[string]float64)
	histograms := make(map[string]uint64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				counters[mf.GetName()] = c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				histograms[mf.GetName()] = h.GetSampleCount()
			}
		}
	}

	if got := counters["crowdfund_contribution_accepted_total"]; got != 1 {
		t.Errorf("crowdfund_contribution_accepted_total = %v, want 1", got)
	}
	if got := counters["crowdfund_oracle_reads_total"]; got != 2 {
		t.Errorf("crowdfund_oracle_reads_total = %v, want 2", got)
	}
	if got := histograms["crowdfund_withdrawal_amount_native"]; got != 1 {
		t.Errorf("crowdfund_withdrawal_amount_native samples = %v, want 1", got)
	}
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := observability.NewPrometheusFactory(reg)
	second := observability.NewPrometheusFactory(reg)

	first.Counter("crowdfund.test.hits").Inc()
	second.Counter("crowdfund.test.hits").Inc()

	if first.Counter("crowdfund.test.hits") != first.Counter("crowdfund.test.hits") {
		t.Error("factory should cache counters by name")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 1 {
		t.Fatalf("got %d families, want 1", len(families))
	}
	if got := families[0].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
}
