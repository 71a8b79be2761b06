package priceoracle

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/xraph/crowdfund/types"
)

// DefaultDecimals is the precision of USD aggregator feeds.
const DefaultDecimals uint8 = 8

// Conversion is the result of ConvertToUSD.
type Conversion struct {
	Amount types.Amount `json:"amount"`
	USD    types.USD    `json:"usd"`
	Price  Price        `json:"price"`
}

// Adapter wraps a Feed and converts native amounts to USD.
type Adapter struct {
	feed     Feed
	decimals uint8
	maxAge   time.Duration
	now      func() time.Time
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithExpectedDecimals sets the decimals the feed must report. Any other
// precision makes the price unusable.
func WithExpectedDecimals(decimals uint8) AdapterOption {
	return func(a *Adapter) { a.decimals = decimals }
}

// WithMaxAge rejects rounds older than d. Zero disables the age check.
func WithMaxAge(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.maxAge = d }
}

// WithClock overrides the time source used for the age check.
func WithClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter creates an Adapter over feed.
func NewAdapter(feed Feed, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		feed:     feed,
		decimals: DefaultDecimals,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Feed returns the wrapped price feed.
func (a *Adapter) Feed() Feed { return a.feed }

// ExpectedDecimals returns the precision the feed must report.
func (a *Adapter) ExpectedDecimals() uint8 { return a.decimals }

// LatestPrice reads and validates the latest round.
func (a *Adapter) LatestPrice(ctx context.Context) (Price, error) {
	p, err := a.feed.LatestPrice(ctx)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	if err := a.validate(p); err != nil {
		return Price{}, err
	}
	return p, nil
}

func (a *Adapter) validate(p Price) error {
	switch {
	case p.Answer == nil || p.Answer.Sign() <= 0:
		return fmt.Errorf("%w: non-positive answer %v in round %d", ErrOracleUnavailable, p.Answer, p.RoundID)
	case p.Decimals != a.decimals:
		return fmt.Errorf("%w: feed reports %d decimals, expected %d", ErrOracleUnavailable, p.Decimals, a.decimals)
	case p.Decimals > types.USDDecimals:
		return fmt.Errorf("%w: %d decimals exceeds %d", ErrOracleUnavailable, p.Decimals, types.USDDecimals)
	case p.UpdatedAt.IsZero():
		return fmt.Errorf("%w: round %d is incomplete", ErrOracleUnavailable, p.RoundID)
	case p.AnsweredInRound < p.RoundID:
		return fmt.Errorf("%w: round %d answered in earlier round %d", ErrOracleUnavailable, p.RoundID, p.AnsweredInRound)
	case a.maxAge > 0 && a.now().Sub(p.UpdatedAt) > a.maxAge:
		return fmt.Errorf("%w: round %d is older than %s", ErrOracleUnavailable, p.RoundID, a.maxAge)
	}
	return nil
}

// ConvertToUSD returns the USD value of amount at the latest price.
//
// The price is scaled up to 18 decimals before multiplying, and the 512-bit
// product is divided by 10^18 once, so the result is truncated at the 18th
// decimal place only.
func (a *Adapter) ConvertToUSD(ctx context.Context, amount types.Amount) (Conversion, error) {
	p, err := a.LatestPrice(ctx)
	if err != nil {
		return Conversion{}, err
	}

	usd, err := Convert(amount, p)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{Amount: amount, USD: usd, Price: p}, nil
}

// Convert computes amount * price with price aligned to 18 decimals. It does
// not check staleness or the expected precision.
func Convert(amount types.Amount, p Price) (types.USD, error) {
	if p.Answer == nil || p.Answer.Sign() <= 0 || p.Decimals > types.USDDecimals {
		return types.USD{}, fmt.Errorf("%w: unusable price %v (%d decimals)", ErrOracleUnavailable, p.Answer, p.Decimals)
	}

	answer, overflow := uint256.FromBig(p.Answer)
	if overflow {
		return types.USD{}, fmt.Errorf("%w: answer %v", ErrConversionOverflow, p.Answer)
	}

	price18, overflow := new(uint256.Int).MulOverflow(answer, types.Pow10(types.USDDecimals-p.Decimals))
	if overflow {
		return types.USD{}, fmt.Errorf("%w: scaled answer %v", ErrConversionOverflow, p.Answer)
	}

	usd, overflow := new(uint256.Int).MulDivOverflow(amount.Uint256(), price18, types.Pow10(types.NativeDecimals))
	if overflow {
		return types.USD{}, fmt.Errorf("%w: amount %s", ErrConversionOverflow, amount)
	}
	return types.USDFromUint256(usd), nil
}
