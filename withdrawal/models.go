package withdrawal

import (
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
)

type Method string

const (
	MethodWithdraw        Method = "withdraw"
	MethodCheaperWithdraw Method = "cheaper_withdraw"
)

// Withdrawal records one successful owner disbursement.
type Withdrawal struct {
	types.Entity
	ID             id.WithdrawalID `json:"id"`
	LedgerID       id.LedgerID     `json:"ledger_id"`
	Recipient      types.Address   `json:"recipient"`
	Amount         types.Amount    `json:"amount"`
	Method         Method          `json:"method"`
	FundersCleared int             `json:"funders_cleared"`
}
