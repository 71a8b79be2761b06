package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/fund"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// ==================== Ledger models ====================

// ledgerModel keeps the funder sequence and balances inside the ledger
// document so a restore is a single update.
type ledgerModel struct {
	grove.BaseModel `grove:"table:crowdfund_ledgers"`

	ID          string            `grove:"id,pk"        bson:"_id"`
	Owner       string            `grove:"owner"        bson:"owner"`
	PriceFeed   string            `grove:"price_feed"   bson:"price_feed"`
	MinimumUSD  string            `grove:"minimum_usd"  bson:"minimum_usd"`
	HeldBalance string            `grove:"held_balance" bson:"held_balance"`
	Funders     []string          `grove:"funders"      bson:"funders"`
	Balances    []balanceModel    `grove:"balances"     bson:"balances"`
	Metadata    map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt   time.Time         `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"   bson:"updated_at"`
}

type balanceModel struct {
	Address string `bson:"address"`
	Amount  string `bson:"amount"`
}

func toLedgerModel(l *fund.Ledger) *ledgerModel {
	return &ledgerModel{
		ID:          l.ID.String(),
		Owner:       l.Owner.String(),
		PriceFeed:   l.PriceFeed,
		MinimumUSD:  l.MinimumUSD.RawString(),
		HeldBalance: l.HeldBalance.WeiString(),
		Funders:     []string{},
		Balances:    []balanceModel{},
		Metadata:    l.Metadata,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func fromLedgerModel(m *ledgerModel) (*fund.Ledger, error) {
	ledgerID, err := id.ParseLedgerID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse ledger id %q: %w", m.ID, err)
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

func (m *ledgerModel) funderAddresses() []types.Address {
	out := make([]types.Address, len(m.Funders))
	for i, f := range m.Funders {
		out[i] = types.Address(f)
	}
	return out
}

func (m *ledgerModel) balanceMap() (map[types.Address]types.Amount, error) {
	out := make(map[types.Address]types.Amount, len(m.Balances))
	for _, b := range m.Balances {
		amt, err := types.ParseWei(b.Amount)
		if err != nil {
			return nil, err
		}
		out[types.Address(b.Address)] = amt
	}
	return out, nil
}

func toBalanceModels(balances map[types.Address]types.Amount) []balanceModel {
	out := make([]balanceModel, 0, len(balances))
	for addr, amt := range balances {
		if amt.IsZero() {
			continue
		}
		out = append(out, balanceModel{Address: addr.String(), Amount: amt.WeiString()})
	}
	return out
}

func toFunderStrings(funders []types.Address) []string {
	out := make([]string, len(funders))
	for i, f := range funders {
		out[i] = f.String()
	}
	return out
}

// ==================== Contribution models ====================

type contributionModel struct {
	grove.BaseModel `grove:"table:crowdfund_contributions"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	LedgerID      string    `grove:"ledger_id"      bson:"ledger_id"`
	Funder        string    `grove:"funder"         bson:"funder"`
	Amount        string    `grove:"amount"         bson:"amount"`
	USDValue      string    `grove:"usd_value"      bson:"usd_value"`
	PriceRoundID  int64     `grove:"price_round_id" bson:"price_round_id"`
	PriceAnswer   string    `grove:"price_answer"   bson:"price_answer"`
	PriceDecimals int       `grove:"price_decimals" bson:"price_decimals"`
	PriceAt       time.Time `grove:"price_at"       bson:"price_at"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
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
		return nil, fmt.Errorf("parse contribution id %q: %w", m.ID, err)
	}
	ledgerID, err := id.ParseLedgerID(m.LedgerID)
	if err != nil {
		return nil, fmt.Errorf("parse ledger id %q: %w", m.LedgerID, err)
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

	ID             string    `grove:"id,pk"           bson:"_id"`
	LedgerID       string    `grove:"ledger_id"       bson:"ledger_id"`
	Recipient      string    `grove:"recipient"       bson:"recipient"`
	Amount         string    `grove:"amount"          bson:"amount"`
	Method         string    `grove:"method"          bson:"method"`
	FundersCleared int       `grove:"funders_cleared" bson:"funders_cleared"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"      bson:"updated_at"`
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
		return nil, fmt.Errorf("parse withdrawal id %q: %w", m.ID, err)
	}
	ledgerID, err := id.ParseLedgerID(m.LedgerID)
	if err != nil {
		return nil, fmt.Errorf("parse ledger id %q: %w", m.LedgerID, err)
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
