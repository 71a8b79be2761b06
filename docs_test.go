package crowdfund_test

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/audit_hook"
	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/store/memory"
	"github.com/xraph/crowdfund/types"
)

// TestDocumentationExamples verifies that the examples in the package documentation work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		// Memory store for demo, use PostgreSQL in production.
		store := memory.New()
		feed := priceoracle.NewMockFeedUSD(2000)
		vault := payout.NewVault()

		owner := crowdfund.NewAddress("0x00000000000000000000000000000000000000A1")
		alice := crowdfund.NewAddress("0x00000000000000000000000000000000000000A2")

		audit := audithook.New(audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
			log.Printf("audit: %s %s", evt.Action, evt.Outcome)
			return nil
		}), audithook.WithLogger(quietLogger()))

		l, err := crowdfund.Create(ctx, store, owner, feed, vault,
			crowdfund.WithLogger(quietLogger()),
			crowdfund.WithMinimumUSD(crowdfund.Dollars(50)),
			crowdfund.WithMaxPriceAge(time.Hour),
			crowdfund.WithPlugin(audit),
		)
		if err != nil {
			t.Fatal(err)
		}
		defer l.Close(ctx)

		// $20 is below the $50 minimum.
		_, err = l.Contribute(ctx, alice, crowdfund.MustParseEther("0.01"))
		if !errors.Is(err, crowdfund.ErrInsufficientContribution) {
			t.Fatalf("expected ErrInsufficientContribution, got %v", err)
		}

		c, err := l.Contribute(ctx, alice, crowdfund.Ether(1))
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("accepted %s worth %s", c.Amount, c.USDValue)

		w, err := l.Withdraw(ctx, owner)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("withdrew %s to %s", w.Amount, w.Recipient)

		if !vault.Balance(owner).Equal(crowdfund.Ether(1)) {
			t.Errorf("owner balance = %s", vault.Balance(owner))
		}
	})

	t.Run("HistoryExample", func(t *testing.T) {
		ctx := context.Background()
		owner := crowdfund.NewAddress("0x00000000000000000000000000000000000000b1")
		bob := crowdfund.NewAddress("0x00000000000000000000000000000000000000b2")

		l, err := crowdfund.Create(ctx, memory.New(), owner, priceoracle.NewMockFeedUSD(2000), payout.NewVault(),
			crowdfund.WithLogger(quietLogger()))
		if err != nil {
			t.Fatal(err)
		}

		for _, amt := range []string{"0.5", "0.25"} {
			if _, err := l.Contribute(ctx, bob, crowdfund.MustParseEther(amt)); err != nil {
				t.Fatal(err)
			}
		}

		history, err := l.Contributions(ctx, contribution.ListOpts{Funder: bob})
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 2 {
			t.Fatalf("history = %d, want 2", len(history))
		}
	})

	t.Run("AmountExamples", func(t *testing.T) {
		_ = types.Ether(1)               // 1 ETH
		_ = types.MustParseEther("0.01") // 0.01 ETH
		_ = types.Wei(1)                 // 1 wei
		_ = types.Dollars(50)            // $50.00
		_ = types.MustParseUSD("19.999") // $20.00 when displayed

		a := types.Ether(1)
		b := types.MustParseEther("0.5")
		if got := a.Add(b).String(); got != "1.5 ETH" {
			t.Errorf("String() = %q", got)
		}
		if !b.LessThan(a) {
			t.Error("0.5 ETH should be less than 1 ETH")
		}
	})
}
