package extension

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/store"
	"github.com/xraph/crowdfund/store/memory"
	"github.com/xraph/crowdfund/types"
)

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name         string
		yaml         Config
		programmatic Config
		want         Config
	}{
		{
			name: "defaults fill gaps",
			want: Config{MinimumUSD: "50", FeedDecimals: 8},
		},
		{
			name:         "yaml wins",
			yaml:         Config{Owner: "0xaa", MinimumUSD: "10", FeedDecimals: 18},
			programmatic: Config{Owner: "0xbb", MinimumUSD: "20", FeedDecimals: 8},
			want:         Config{Owner: "0xaa", MinimumUSD: "10", FeedDecimals: 18},
		},
		{
			name:         "programmatic fills yaml gaps",
			yaml:         Config{LedgerID: "fund_01h455vb4pex5vsknk084sn02q"},
			programmatic: Config{DisableMigrate: true, Owner: "0xbb", MaxPriceAge: time.Hour},
			want: Config{
				DisableMigrate: true,
				LedgerID:       "fund_01h455vb4pex5vsknk084sn02q",
				Owner:          "0xbb",
				MinimumUSD:     "50",
				FeedDecimals:   8,
				MaxPriceAge:    time.Hour,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeConfigurations(tt.yaml, tt.programmatic); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildLedgerOptsRejectsBadMinimum(t *testing.T) {
	e := New(WithMinimumUSD("fifty"))
	if _, err := e.buildLedgerOpts(); err == nil {
		t.Fatal("expected an error for a non-numeric minimum")
	}
}

func TestResolveDependencies(t *testing.T) {
	feed := priceoracle.NewMockFeedUSD(2000)
	vault := payout.NewVault()

	tests := []struct {
		name    string
		opts    []Option
		wantErr string
	}{
		{"missing feed", []Option{WithTransferer(vault)}, "crowdfund: a price feed is required; use WithPriceFeed"},
		{"missing transferer", []Option{WithPriceFeed(feed)}, "crowdfund: a transferer is required; use WithTransferer"},
		{"missing both", nil, "crowdfund: a price feed is required; use WithPriceFeed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.opts...)
			err := e.resolveDependencies()
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
			if e.payer != nil && e.payer != payout.Transferer(vault) {
				t.Errorf("a transferer was substituted: %T", e.payer)
			}
		})
	}
}

func TestResolveDependenciesStore(t *testing.T) {
	feed := priceoracle.NewMockFeedUSD(2000)
	vault := payout.NewVault()

	e := New(WithPriceFeed(feed), WithTransferer(vault))
	if err := e.resolveDependencies(); err != nil {
		t.Fatalf("resolveDependencies: %v", err)
	}
	if _, ok := e.store.(*memory.Store); !ok {
		t.Errorf("default store = %T, want *memory.Store", e.store)
	}
	if e.payer != payout.Transferer(vault) {
		t.Error("transferer replaced")
	}

	s := memory.New()
	e = New(WithPriceFeed(feed), WithTransferer(vault), WithStore(s))
	if err := e.resolveDependencies(); err != nil {
		t.Fatalf("resolveDependencies: %v", err)
	}
	if e.store != store.Store(s) {
		t.Error("explicit store replaced")
	}
}

func TestOpenLedger(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	feed := priceoracle.NewMockFeedUSD(2000)
	vault := payout.NewVault()
	quiet := crowdfund.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	first := New(
		WithStore(s),
		WithPriceFeed(feed),
		WithTransferer(vault),
		WithLedgerOption(quiet),
		WithConfig(mergeWithDefaults(Config{Owner: "0xABCDEF0000000000000000000000000000000001", MinimumUSD: "100"})),
	)
	created, err := first.openLedger(ctx)
	if err != nil {
		t.Fatalf("openLedger (create): %v", err)
	}
	if created.Owner() != types.Address("0xabcdef0000000000000000000000000000000001") {
		t.Errorf("Owner() = %s, want normalized address", created.Owner())
	}
	if !created.MinimumUSD().Equal(types.Dollars(100)) {
		t.Errorf("MinimumUSD() = %s, want $100.00", created.MinimumUSD())
	}
	if _, err := created.Contribute(ctx, "0x02", types.Ether(1)); err != nil {
		t.Fatalf("Contribute: %v", err)
	}

	second := New(
		WithStore(s),
		WithPriceFeed(feed),
		WithTransferer(vault),
		WithLedgerOption(quiet),
		WithConfig(mergeWithDefaults(Config{LedgerID: created.ID().String()})),
	)
	reopened, err := second.openLedger(ctx)
	if err != nil {
		t.Fatalf("openLedger (open): %v", err)
	}
	if reopened.ID() != created.ID() {
		t.Errorf("ID() = %s, want %s", reopened.ID(), created.ID())
	}
	if !reopened.MinimumUSD().Equal(types.Dollars(100)) {
		t.Errorf("reopened MinimumUSD() = %s, want the persisted $100.00", reopened.MinimumUSD())
	}
	held, err := reopened.HeldBalance(ctx)
	if err != nil {
		t.Fatalf("HeldBalance: %v", err)
	}
	if !held.Equal(types.Ether(1)) {
		t.Errorf("HeldBalance() = %s, want 1 ETH", held)
	}
}

func TestOpenLedgerBadID(t *testing.T) {
	e := New(
		WithStore(memory.New()),
		WithPriceFeed(priceoracle.NewMockFeedUSD(2000)),
		WithTransferer(payout.NewVault()),
		WithLedgerID("not-a-ledger-id"),
	)
	if _, err := e.openLedger(context.Background()); err == nil {
		t.Fatal("expected an error for a malformed ledger id")
	}
}
