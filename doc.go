// Package crowdfund provides a minimal crowdfunding ledger for Go applications.
//
// Funders contribute native currency (wei-denominated amounts). Every
// contribution is priced through an external feed and rejected when it is
// worth less than a USD minimum. A single owner, fixed at creation, can
// withdraw the whole held balance, which resets every funder record.
//
//   - 256-bit integer arithmetic for amounts and USD values, never floats
//   - Two withdrawal algorithms with identical results
//   - Full rollback when the price feed, the store or the payout fails
//   - Pluggable audit and metrics hooks
//   - Memory, PostgreSQL, SQLite and MongoDB stores
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/crowdfund"
//	    "github.com/xraph/crowdfund/payout"
//	    "github.com/xraph/crowdfund/priceoracle"
//	    "github.com/xraph/crowdfund/store/memory"
//	)
//
//	feed := priceoracle.NewMockFeedUSD(2000) // $2000 per unit, 8 decimals
//	vault := payout.NewVault()
//
//	l, err := crowdfund.Create(ctx, memory.New(), owner, feed, vault)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// $20 is below the $50 minimum.
//	_, err = l.Contribute(ctx, alice, crowdfund.MustParseEther("0.01"))
//	errors.Is(err, crowdfund.ErrInsufficientContribution) // true
//
//	_, err = l.Contribute(ctx, alice, crowdfund.Ether(1))
//
//	w, err := l.Withdraw(ctx, owner)
//
// # Withdrawals
//
// Withdraw walks the stored funder sequence position by position.
// CheaperWithdraw reads the sequence once and resets balances from the
// in-memory copy. Both reject any caller but the owner with ErrNotOwner,
// clear all funder state before the transfer, and restore it if the transfer
// fails with ErrTransferFailed.
//
// # TypeID
//
// Records use TypeID identifiers:
//
//	fund_01h2xcejqtf2nbrexx3vqjhp41  // Ledger ID
//	ctb_01h2xcejqtf2nbrexx3vqjhp41   // Contribution ID
//	wdr_01h455vb4pex5vsknk084sn02q   // Withdrawal ID
package crowdfund
