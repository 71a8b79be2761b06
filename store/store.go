package store

import (
	"context"

	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/fund"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// Store is the unified storage interface for all Crowdfund entities.
// Methods are declared explicitly instead of embedding the sub-interfaces
// because contribution.Store and withdrawal.Store share method names.
type Store interface {
	// Ledger methods
	CreateLedger(ctx context.Context, l *fund.Ledger) error
	GetLedger(ctx context.Context, ledgerID id.LedgerID) (*fund.Ledger, error)
	SetHeldBalance(ctx context.Context, ledgerID id.LedgerID, amount types.Amount) error

	// Funder sequence methods
	AppendFunder(ctx context.Context, ledgerID id.LedgerID, funder types.Address) error
	FunderCount(ctx context.Context, ledgerID id.LedgerID) (int, error)
	FunderAt(ctx context.Context, ledgerID id.LedgerID, index int) (types.Address, error)
	ListFunders(ctx context.Context, ledgerID id.LedgerID) ([]types.Address, error)
	ClearFunders(ctx context.Context, ledgerID id.LedgerID) error

	// Balance methods
	AmountFunded(ctx context.Context, ledgerID id.LedgerID, funder types.Address) (types.Amount, error)
	SetAmountFunded(ctx context.Context, ledgerID id.LedgerID, funder types.Address, amount types.Amount) error

	// Rollback methods
	Snapshot(ctx context.Context, ledgerID id.LedgerID) (*fund.Snapshot, error)
	Restore(ctx context.Context, snap *fund.Snapshot) error

	// Contribution methods
	RecordContribution(ctx context.Context, c *contribution.Contribution) error
	ListContributions(ctx context.Context, ledgerID id.LedgerID, opts contribution.ListOpts) ([]*contribution.Contribution, error)
	DeleteContributions(ctx context.Context, ids []id.ContributionID) error

	// Withdrawal methods
	RecordWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error
	ListWithdrawals(ctx context.Context, ledgerID id.LedgerID, opts withdrawal.ListOpts) ([]*withdrawal.Withdrawal, error)
	DeleteWithdrawals(ctx context.Context, ids []id.WithdrawalID) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
