package priceoracle

import (
	"context"
	"math/big"
	"sync"
	"time"
)

// MockFeed is an in-memory Feed that behaves like a mock V3 aggregator: it
// starts at round 1 with the given answer and every update opens a new round.
type MockFeed struct {
	mu       sync.Mutex
	decimals uint8
	round    Price
	err      error
	reads    int
	now      func() time.Time
}

// NewMockFeed creates a feed reporting answer with the given decimals.
func NewMockFeed(decimals uint8, answer *big.Int) *MockFeed {
	m := &MockFeed{decimals: decimals, now: time.Now}
	m.UpdateAnswer(answer)
	return m
}

// NewMockFeedUSD creates an 8-decimal feed priced at whole dollars per unit.
func NewMockFeedUSD(dollars int64) *MockFeed {
	answer := new(big.Int).Mul(big.NewInt(dollars), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(DefaultDecimals)), nil))
	return NewMockFeed(DefaultDecimals, answer)
}

// UpdateAnswer starts a new round with answer.
func (m *MockFeed) UpdateAnswer(answer *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.round.RoundID + 1
	m.round = Price{
		RoundID:         next,
		Answer:          cloneInt(answer),
		Decimals:        m.decimals,
		UpdatedAt:       m.now(),
		AnsweredInRound: next,
	}
}

// UpdateRoundData replaces the current round verbatim.
func (m *MockFeed) UpdateRoundData(p Price) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.Answer = cloneInt(p.Answer)
	m.round = p
}

// SetDecimals changes the precision reported from the next read on without
// rescaling the answer.
func (m *MockFeed) SetDecimals(decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decimals = decimals
	m.round.Decimals = decimals
}

// SetError makes every read fail with err until it is cleared with nil.
func (m *MockFeed) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}

// Reads returns how many times LatestPrice was called.
func (m *MockFeed) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.reads
}

// LatestPrice implements Feed.
func (m *MockFeed) LatestPrice(ctx context.Context) (Price, error) {
	if err := ctx.Err(); err != nil {
		return Price{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if m.err != nil {
		return Price{}, m.err
	}
	p := m.round
	p.Answer = cloneInt(p.Answer)
	return p, nil
}

// Description implements Feed.
func (m *MockFeed) Description() string { return "ETH / USD (mock)" }

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
