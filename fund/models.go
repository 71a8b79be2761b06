// Package fund holds the persisted funding ledger record and the state that
// contribute and withdraw mutate: the funder sequence, per-funder balances and
// the held balance.
package fund

import (
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
)

type Ledger struct {
	types.Entity
	ID          id.LedgerID       `json:"id"`
	Owner       types.Address     `json:"owner"`
	PriceFeed   string            `json:"price_feed"`
	MinimumUSD  types.USD         `json:"minimum_usd"`
	HeldBalance types.Amount      `json:"held_balance"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Snapshot is a point-in-time copy of a ledger's mutable state. The engine
// takes one before every mutation and restores it when a later step fails.
type Snapshot struct {
	LedgerID    id.LedgerID                    `json:"ledger_id"`
	Funders     []types.Address                `json:"funders"`
	Balances    map[types.Address]types.Amount `json:"balances"`
	HeldBalance types.Amount                   `json:"held_balance"`
}

// Total returns the sum of all balances in the snapshot.
func (s *Snapshot) Total() types.Amount {
	var total types.Amount
	for _, amt := range s.Balances {
		total = total.Add(amt)
	}
	return total
}
