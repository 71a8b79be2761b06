package contribution

import (
	"context"

	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
)

type Store interface {
	Record(ctx context.Context, c *Contribution) error
	List(ctx context.Context, ledgerID id.LedgerID, opts ListOpts) ([]*Contribution, error)
	Delete(ctx context.Context, ids []id.ContributionID) error
}

type ListOpts struct {
	Funder types.Address
	Limit  int
	Offset int
}
