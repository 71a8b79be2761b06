package fund

import (
	"context"

	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
)

type Store interface {
	CreateLedger(ctx context.Context, l *Ledger) error
	GetLedger(ctx context.Context, ledgerID id.LedgerID) (*Ledger, error)
	SetHeldBalance(ctx context.Context, ledgerID id.LedgerID, amount types.Amount) error

	AppendFunder(ctx context.Context, ledgerID id.LedgerID, funder types.Address) error
	FunderCount(ctx context.Context, ledgerID id.LedgerID) (int, error)
	FunderAt(ctx context.Context, ledgerID id.LedgerID, index int) (types.Address, error)
	ListFunders(ctx context.Context, ledgerID id.LedgerID) ([]types.Address, error)
	ClearFunders(ctx context.Context, ledgerID id.LedgerID) error

	AmountFunded(ctx context.Context, ledgerID id.LedgerID, funder types.Address) (types.Amount, error)
	SetAmountFunded(ctx context.Context, ledgerID id.LedgerID, funder types.Address, amount types.Amount) error

	Snapshot(ctx context.Context, ledgerID id.LedgerID) (*Snapshot, error)
	Restore(ctx context.Context, snap *Snapshot) error
}
