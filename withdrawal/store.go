package withdrawal

import (
	"context"

	"github.com/xraph/crowdfund/id"
)

type Store interface {
	Record(ctx context.Context, w *Withdrawal) error
	List(ctx context.Context, ledgerID id.LedgerID, opts ListOpts) ([]*Withdrawal, error)
	Delete(ctx context.Context, ids []id.WithdrawalID) error
}

type ListOpts struct {
	Method Method
	Limit  int
	Offset int
}
