package crowdfund

import "github.com/xraph/crowdfund/id"

// ID identifies ledgers, contributions and withdrawals.
type ID = id.ID
