package contribution

import (
	"time"

	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
)

// Contribution is the history row written for every accepted contribute call.
type Contribution struct {
	types.Entity
	ID       id.ContributionID `json:"id"`
	LedgerID id.LedgerID       `json:"ledger_id"`
	Funder   types.Address     `json:"funder"`
	Amount   types.Amount      `json:"amount"`
	USDValue types.USD         `json:"usd_value"`

	// Price the contribution was admitted at.
	PriceRoundID  uint64    `json:"price_round_id"`
	PriceAnswer   string    `json:"price_answer"`
	PriceDecimals uint8     `json:"price_decimals"`
	PriceAt       time.Time `json:"price_at"`
}
