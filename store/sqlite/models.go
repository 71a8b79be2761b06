package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/fund"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// Amounts and USD values are stored as base-10 TEXT in their raw fixed-point
// form; 256-bit values do not fit any native integer column.

// ==================== Ledger models ====================

type ledgerModel struct {
	grove.BaseModel `grove:"table:crowdfund_ledgers"`

	ID          string            `grove:"id,pk"`
	Owner       string            `grove:"owner"`
	PriceFeed   string            `grove:"price_feed"`
	MinimumUSD  string            `grove:"minimum_usd"`
	HeldBalance string            `grove:"held_balance"`
	Metadata    map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt   time.Time         `grove:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"`
}

func toLedgerModel(l *fund.Ledger) *ledgerModel {
	return &ledgerModel{
		ID:          l.ID.String(),
		Owner:       l.Owner.String(),
		PriceFeed:   l.PriceFeed,
		MinimumUSD:  l.MinimumUSD.RawString(),
		HeldBalance: l.HeldBalance.WeiString(),
		Metadata:    l.Metadata,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func fromLedgerModel(m *ledgerModel) (*fund.Ledger, error) {
	ledgerID, err := id.ParseLedgerID(m.ID)
	if err != nil {
		return nil, err
	}
	minimum, err := types.ParseUSDRaw(m.MinimumUSD)
	if err != nil {
		return nil, err
	}
	held, err := types.ParseWei(m.HeldBalance)
	if err != nil {
		return nil, err
	}

	return &fund.Ledger{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          ledgerID,
		Owner:       types.Address(m.Owner),
		PriceFeed:   m.PriceFeed,
		MinimumUSD:  minimum,
		HeldBalance: held,
		Metadata:    m.Metadata,
	}, nil
}

// ==================== Funder models ====================

type funderModel struct {
	grove.BaseModel `grove:"table:crowdfund_funders"`

	LedgerID string `grove:"ledger_id,pk"`
	Position int    `grove:"position,pk"`
	Address  string `grove:"address"`
}

type balanceModel struct {
	grove.BaseModel `grove:"table:crowdfund_balances"`

	LedgerID string `grove:"ledger_id,pk"`
	Address  string `grove:"address,pk"`
	Amount   string `grove:"amount"`
}

// ==================== Contribution models ====================

type contributionModel struct {
	grove.BaseModel `grove:"table:crowdfund_contributions"`

	ID            string    `grove:"id,pk"`
	LedgerID      string    `grove:"ledger_id"`
	Funder        string    `grove:"funder"`
	Amount        string    `grove:"amount"`
	USDValue      string    `grove:"usd_value"`
	PriceRoundID  int64     `grove:"price_round_id"`
	PriceAnswer   string    `grove:"price_answer"`
	PriceDecimals int       `grove:"price_decimals"`
	PriceAt       time.Time `grove:"price_at"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toContributionModel(c *contribution.Contribution) *contributionModel {
	return &contributionModel{
		ID:            c.ID.String(),
		LedgerID:      c.LedgerID.String(),
		Funder:        c.Funder.String(),
		Amount:        c.Amount.WeiString(),
		USDValue:      c.USDValue.RawString(),
		PriceRoundID:  int64(c.PriceRoundID), //nolint:gosec // round ids fit in 63 bits
		PriceAnswer:   c.PriceAnswer,
		PriceDecimals: int(c.PriceDecimals),
		PriceAt:       c.PriceAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func fromContributionModel(m *contributionModel) (*contribution.Contribution, error) {
	contributionID, err := id.ParseContributionID(m.ID)
	if err != nil {
		return nil, err
	}
	ledgerID, err := id.ParseLedgerID(m.LedgerID)
	if err != nil {
		return nil, err
	}
	amount, err := types.ParseWei(m.Amount)
	if err != nil {
		return nil, err
	}
	usd, err := types.ParseUSDRaw(m.USDValue)
	if err != nil {
		return nil, err
	}

	return &contribution.Contribution{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            contributionID,
		LedgerID:      ledgerID,
		Funder:        types.Address(m.Funder),
		Amount:        amount,
		USDValue:      usd,
		PriceRoundID:  uint64(m.PriceRoundID), //nolint:gosec // stored from a uint64
		PriceAnswer:   m.PriceAnswer,
		PriceDecimals: uint8(m.PriceDecimals), //nolint:gosec // stored from a uint8
		PriceAt:       m.PriceAt,
	}, nil
}

// ==================== Withdrawal models ====================

type withdrawalModel struct {
	grove.BaseModel `grove:"table:crowdfund_withdrawals"`

	ID             string    `grove:"id,pk"`
	LedgerID       string    `grove:"ledger_id"`
	Recipient      string    `grove:"recipient"`
	Amount         string    `grove:"amount"`
	Method         string    `grove:"method"`
	FundersCleared int       `grove:"funders_cleared"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toWithdrawalModel(w *withdrawal.Withdrawal) *withdrawalModel {
	return &withdrawalModel{
		ID:             w.ID.String(),
		LedgerID:       w.LedgerID.String(),
		Recipient:      w.Recipient.String(),
		Amount:         w.Amount.WeiString(),
		Method:         string(w.Method),
		FundersCleared: w.FundersCleared,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

func fromWithdrawalModel(m *withdrawalModel) (*withdrawal.Withdrawal, error) {
	withdrawalID, err := id.ParseWithdrawalID(m.ID)
	if err != nil {
		return nil, err
	}
	ledgerID, err := id.ParseLedgerID(m.LedgerID)
	if err != nil {
		return nil, err
	}
	amount, err := types.ParseWei(m.Amount)
	if err != nil {
		return nil, err
	}

	return &withdrawal.Withdrawal{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             withdrawalID,
		LedgerID:       ledgerID,
		Recipient:      types.Address(m.Recipient),
		Amount:         amount,
		Method:         withdrawal.Method(m.Method),
		FundersCleared: m.FundersCleared,
	}, nil
}
