package priceoracle_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/types"
)

func TestConvertToUSD(t *testing.T) {
	feed := priceoracle.NewMockFeedUSD(2000)
	adapter := priceoracle.NewAdapter(feed)
	ctx := context.Background()

	tests := []struct {
		name   string
		amount types.Amount
		want   types.USD
	}{
		{"one hundredth", types.MustParseEther("0.01"), types.Dollars(20)},
		{"one unit", types.Ether(1), types.Dollars(2000)},
		{"six units", types.Ether(6), types.Dollars(12000)},
		{"one wei", types.Wei(1), types.MustParseUSD("0.000000000000002")},
		{"zero", types.Wei(0), types.Dollars(0)},
		{"fractional dollars", types.MustParseEther("0.0251"), types.MustParseUSD("50.2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := adapter.ConvertToUSD(ctx, tt.amount)
			if err != nil {
				t.Fatalf("ConvertToUSD: %v", err)
			}
			if !conv.USD.Equal(tt.want) {
				t.Errorf("usd = %s (%s), want %s (%s)", conv.USD, conv.USD.RawString(), tt.want, tt.want.RawString())
			}
			if !conv.Amount.Equal(tt.amount) {
				t.Errorf("amount = %s, want %s", conv.Amount, tt.amount)
			}
			if conv.Price.Decimals != priceoracle.DefaultDecimals {
				t.Errorf("decimals = %d, want %d", conv.Price.Decimals, priceoracle.DefaultDecimals)
			}
		})
	}
}

func TestConvertToUSDEighteenDecimalFeed(t *testing.T) {
	answer, _ := new(big.Int).SetString("2000000000000000000000", 10)
	feed := priceoracle.NewMockFeed(18, answer)
	adapter := priceoracle.NewAdapter(feed, priceoracle.WithExpectedDecimals(18))

	conv, err := adapter.ConvertToUSD(context.Background(), types.MustParseEther("0.01"))
	if err != nil {
		t.Fatalf("ConvertToUSD: %v", err)
	}
	if !conv.USD.Equal(types.Dollars(20)) {
		t.Errorf("usd = %s, want $20.00", conv.USD)
	}
}

func TestConvertToUSDReadsFeedEveryCall(t *testing.T) {
	feed := priceoracle.NewMockFeedUSD(2000)
	adapter := priceoracle.NewAdapter(feed)
	ctx := context.Background()

	if _, err := adapter.ConvertToUSD(ctx, types.Ether(1)); err != nil {
		t.Fatalf("first conversion: %v", err)
	}

	feed.UpdateAnswer(big.NewInt(4000_00000000))
	conv, err := adapter.ConvertToUSD(ctx, types.Ether(1))
	if err != nil {
		t.Fatalf("second conversion: %v", err)
	}
	if !conv.USD.Equal(types.Dollars(4000)) {
		t.Errorf("usd = %s, want $4000.00", conv.USD)
	}
	if conv.Price.RoundID != 2 {
		t.Errorf("round = %d, want 2", conv.Price.RoundID)
	}
	if feed.Reads() != 2 {
		t.Errorf("reads = %d, want 2", feed.Reads())
	}
}

func TestConvertToUSDUnavailable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	feedDown := errors.New("rpc: connection refused")

	tests := []struct {
		name    string
		setup   func(f *priceoracle.MockFeed)
		opts    []priceoracle.AdapterOption
		wantErr error
	}{
		{
			name:    "feed error",
			setup:   func(f *priceoracle.MockFeed) { f.SetError(feedDown) },
			wantErr: feedDown,
		},
		{
			name:  "zero answer",
			setup: func(f *priceoracle.MockFeed) { f.UpdateAnswer(big.NewInt(0)) },
		},
		{
			name:  "negative answer",
			setup: func(f *priceoracle.MockFeed) { f.UpdateAnswer(big.NewInt(-1)) },
		},
		{
			name:  "unexpected decimals",
			setup: func(f *priceoracle.MockFeed) { f.SetDecimals(18) },
		},
		{
			name:  "expected decimals above 18",
			setup: func(f *priceoracle.MockFeed) { f.SetDecimals(19) },
			opts:  []priceoracle.AdapterOption{priceoracle.WithExpectedDecimals(19)},
		},
		{
			name: "incomplete round",
			setup: func(f *priceoracle.MockFeed) {
				f.UpdateRoundData(priceoracle.Price{RoundID: 3, Answer: big.NewInt(2000_00000000), Decimals: 8, AnsweredInRound: 3})
			},
		},
		{
			name: "answered in earlier round",
			setup: func(f *priceoracle.MockFeed) {
				f.UpdateRoundData(priceoracle.Price{RoundID: 3, Answer: big.NewInt(2000_00000000), Decimals: 8, UpdatedAt: now, AnsweredInRound: 2})
			},
		},
		{
			name: "older than max age",
			setup: func(f *priceoracle.MockFeed) {
				f.UpdateRoundData(priceoracle.Price{RoundID: 3, Answer: big.NewInt(2000_00000000), Decimals: 8, UpdatedAt: now.Add(-2 * time.Hour), AnsweredInRound: 3})
			},
			opts: []priceoracle.AdapterOption{
				priceoracle.WithMaxAge(time.Hour),
				priceoracle.WithClock(func() time.Time { return now }),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := priceoracle.NewMockFeedUSD(2000)
			tt.setup(feed)
			adapter := priceoracle.NewAdapter(feed, tt.opts...)

			_, err := adapter.ConvertToUSD(context.Background(), types.Ether(1))
			if !errors.Is(err, priceoracle.ErrOracleUnavailable) {
				t.Fatalf("expected ErrOracleUnavailable, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected wrapped %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMaxAgeAcceptsFreshRound(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	feed := priceoracle.NewMockFeedUSD(2000)
	feed.UpdateRoundData(priceoracle.Price{RoundID: 7, Answer: big.NewInt(2000_00000000), Decimals: 8, UpdatedAt: now.Add(-time.Minute), AnsweredInRound: 7})

	adapter := priceoracle.NewAdapter(feed,
		priceoracle.WithMaxAge(time.Hour),
		priceoracle.WithClock(func() time.Time { return now }),
	)
	if _, err := adapter.ConvertToUSD(context.Background(), types.Ether(1)); err != nil {
		t.Fatalf("ConvertToUSD: %v", err)
	}
}

func TestConvertOverflow(t *testing.T) {
	huge, err := types.ParseWei("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if err != nil {
		t.Fatalf("ParseWei: %v", err)
	}
	p := priceoracle.Price{RoundID: 1, Answer: big.NewInt(2000_00000000), Decimals: 8, UpdatedAt: time.Now(), AnsweredInRound: 1}

	if _, err := priceoracle.Convert(huge, p); !errors.Is(err, priceoracle.ErrConversionOverflow) {
		t.Fatalf("expected ErrConversionOverflow, got %v", err)
	}
}

func BenchmarkConvertToUSD(b *testing.B) {
	adapter := priceoracle.NewAdapter(priceoracle.NewMockFeedUSD(2000))
	ctx := context.Background()
	amount := types.MustParseEther("0.0251")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.ConvertToUSD(ctx, amount)
	}
}
