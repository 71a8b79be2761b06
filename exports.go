package crowdfund

import "github.com/xraph/crowdfund/types"

// Re-export common types for convenience so users don't have to import types package.

// Address is re-exported from types package.
type Address = types.Address

// Amount is re-exported from types package.
type Amount = types.Amount

// USD is re-exported from types package.
type USD = types.USD

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export value constructors
var (
	NewAddress     = types.NewAddress
	Wei            = types.Wei
	Ether          = types.Ether
	ParseEther     = types.ParseEther
	MustParseEther = types.MustParseEther
	Dollars        = types.Dollars
	ParseUSD       = types.ParseUSD
	SumAmounts     = types.SumAmounts
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
