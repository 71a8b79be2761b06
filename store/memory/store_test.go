package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/fund"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/store/memory"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

const (
	alice types.Address = "0x00000000000000000000000000000000000000a1"
	bob   types.Address = "0x00000000000000000000000000000000000000b0"
)

func newLedger(t *testing.T, s *memory.Store) id.LedgerID {
	t.Helper()
	l := &fund.Ledger{
		Entity:     types.NewEntity(),
		ID:         id.NewLedgerID(),
		Owner:      "0x01",
		MinimumUSD: types.Dollars(50),
	}
	if err := s.CreateLedger(context.Background(), l); err != nil {
		t.Fatalf("CreateLedger: %v", err)
	}
	return l.ID
}

func TestCreateLedgerDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	l := &fund.Ledger{Entity: types.NewEntity(), ID: id.NewLedgerID(), Owner: "0x01"}

	if err := s.CreateLedger(ctx, l); err != nil {
		t.Fatalf("CreateLedger: %v", err)
	}
	if err := s.CreateLedger(ctx, l); !errors.Is(err, crowdfund.ErrAlreadyExists) {
		t.Errorf("second CreateLedger = %v, want ErrAlreadyExists", err)
	}
}

func TestUnknownLedger(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	missing := id.NewLedgerID()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"GetLedger", func() error { _, err := s.GetLedger(ctx, missing); return err }},
		{"SetHeldBalance", func() error { return s.SetHeldBalance(ctx, missing, types.Wei(1)) }},
		{"AppendFunder", func() error { return s.AppendFunder(ctx, missing, alice) }},
		{"FunderCount", func() error { _, err := s.FunderCount(ctx, missing); return err }},
		{"FunderAt", func() error { _, err := s.FunderAt(ctx, missing, 0); return err }},
		{"AmountFunded", func() error { _, err := s.AmountFunded(ctx, missing, alice); return err }},
		{"Snapshot", func() error { _, err := s.Snapshot(ctx, missing); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, crowdfund.ErrLedgerNotFound) {
				t.Errorf("got %v, want ErrLedgerNotFound", err)
			}
		})
	}
}

func TestFunderSequence(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	ledgerID := newLedger(t, s)

	for _, f := range []types.Address{alice, bob, alice} {
		if err := s.AppendFunder(ctx, ledgerID, f); err != nil {
			t.Fatalf("AppendFunder: %v", err)
		}
	}

	n, err := s.FunderCount(ctx, ledgerID)
	if err != nil || n != 3 {
		t.Fatalf("FunderCount = %d, %v; want 3", n, err)
	}

	got, err := s.FunderAt(ctx, ledgerID, 2)
	if err != nil || got != alice {
		t.Errorf("FunderAt(2) = %s, %v; want %s", got, err, alice)
	}
	for _, idx := range []int{-1, 3} {
		if _, err := s.FunderAt(ctx, ledgerID, idx); !errors.Is(err, crowdfund.ErrIndexOutOfRange) {
			t.Errorf("FunderAt(%d) = %v, want ErrIndexOutOfRange", idx, err)
		}
	}

	list, _ := s.ListFunders(ctx, ledgerID)
	list[0] = "mutated"
	again, _ := s.FunderAt(ctx, ledgerID, 0)
	if again != alice {
		t.Error("ListFunders should return a copy")
	}

	if err := s.ClearFunders(ctx, ledgerID); err != nil {
		t.Fatalf("ClearFunders: %v", err)
	}
	if n, _ := s.FunderCount(ctx, ledgerID); n != 0 {
		t.Errorf("FunderCount after clear = %d, want 0", n)
	}
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	ledgerID := newLedger(t, s)

	_ = s.AppendFunder(ctx, ledgerID, alice)
	_ = s.SetAmountFunded(ctx, ledgerID, alice, types.Ether(1))
	_ = s.SetHeldBalance(ctx, ledgerID, types.Ether(1))

	snap, err := s.Snapshot(ctx, ledgerID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	_ = s.AppendFunder(ctx, ledgerID, bob)
	_ = s.SetAmountFunded(ctx, ledgerID, bob, types.Ether(2))
	_ = s.SetAmountFunded(ctx, ledgerID, alice, types.Wei(0))
	_ = s.SetHeldBalance(ctx, ledgerID, types.Ether(3))

	if err := s.Restore(ctx, snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	funders, _ := s.ListFunders(ctx, ledgerID)
	if len(funders) != 1 || funders[0] != alice {
		t.Errorf("funders = %v, want [%s]", funders, alice)
	}
	if amt, _ := s.AmountFunded(ctx, ledgerID, alice); !amt.Equal(types.Ether(1)) {
		t.Errorf("alice = %s, want 1 ETH", amt)
	}
	if amt, _ := s.AmountFunded(ctx, ledgerID, bob); !amt.IsZero() {
		t.Errorf("bob = %s, want 0", amt)
	}
	l, _ := s.GetLedger(ctx, ledgerID)
	if !l.HeldBalance.Equal(types.Ether(1)) {
		t.Errorf("held = %s, want 1 ETH", l.HeldBalance)
	}
}

func TestHistoryFiltersAndPagination(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	ledgerID := newLedger(t, s)
	other := newLedger(t, s)

	for i, f := range []types.Address{alice, bob, alice, alice} {
		c := &contribution.Contribution{
			Entity:   types.NewEntity(),
			ID:       id.NewContributionID(),
			LedgerID: ledgerID,
			Funder:   f,
			Amount:   types.Ether(uint64(i + 1)),
		}
		if err := s.RecordContribution(ctx, c); err != nil {
			t.Fatalf("RecordContribution: %v", err)
		}
	}
	_ = s.RecordContribution(ctx, &contribution.Contribution{ID: id.NewContributionID(), LedgerID: other, Funder: alice})

	tests := []struct {
		name string
		opts contribution.ListOpts
		want []uint64
	}{
		{"all", contribution.ListOpts{}, []uint64{1, 2, 3, 4}},
		{"by funder", contribution.ListOpts{Funder: alice}, []uint64{1, 3, 4}},
		{"limit", contribution.ListOpts{Limit: 2}, []uint64{1, 2}},
		{"offset", contribution.ListOpts{Offset: 3}, []uint64{4}},
		{"offset past end", contribution.ListOpts{Offset: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListContributions(ctx, ledgerID, tt.opts)
			if err != nil {
				t.Fatalf("ListContributions: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d contributions, want %d", len(got), len(tt.want))
			}
			for i, c := range got {
				if !c.Amount.Equal(types.Ether(tt.want[i])) {
					t.Errorf("[%d] amount = %s, want %d ETH", i, c.Amount, tt.want[i])
				}
			}
		})
	}

	for _, m := range []withdrawal.Method{withdrawal.MethodWithdraw, withdrawal.MethodCheaperWithdraw, withdrawal.MethodWithdraw} {
		w := &withdrawal.Withdrawal{ID: id.NewWithdrawalID(), LedgerID: ledgerID, Method: m}
		if err := s.RecordWithdrawal(ctx, w); err != nil {
			t.Fatalf("RecordWithdrawal: %v", err)
		}
	}
	cheap, _ := s.ListWithdrawals(ctx, ledgerID, withdrawal.ListOpts{Method: withdrawal.MethodCheaperWithdraw})
	if len(cheap) != 1 {
		t.Errorf("cheaper withdrawals = %d, want 1", len(cheap))
	}
	if err := s.RecordWithdrawal(ctx, &withdrawal.Withdrawal{ID: id.NewWithdrawalID(), LedgerID: id.NewLedgerID()}); !errors.Is(err, crowdfund.ErrLedgerNotFound) {
		t.Errorf("RecordWithdrawal on unknown ledger = %v, want ErrLedgerNotFound", err)
	}
}

func TestDeleteHistory(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	ledgerID := newLedger(t, s)

	var contributions []id.ContributionID
	for i := range 3 {
		c := &contribution.Contribution{
			ID:       id.NewContributionID(),
			LedgerID: ledgerID,
			Funder:   alice,
			Amount:   types.Ether(uint64(i + 1)),
		}
		if err := s.RecordContribution(ctx, c); err != nil {
			t.Fatalf("RecordContribution: %v", err)
		}
		contributions = append(contributions, c.ID)
	}
	var withdrawals []id.WithdrawalID
	for range 2 {
		w := &withdrawal.Withdrawal{ID: id.NewWithdrawalID(), LedgerID: ledgerID, Method: withdrawal.MethodWithdraw}
		if err := s.RecordWithdrawal(ctx, w); err != nil {
			t.Fatalf("RecordWithdrawal: %v", err)
		}
		withdrawals = append(withdrawals, w.ID)
	}

	if err := s.DeleteContributions(ctx, []id.ContributionID{contributions[1], id.NewContributionID()}); err != nil {
		t.Fatalf("DeleteContributions: %v", err)
	}
	if err := s.DeleteWithdrawals(ctx, withdrawals[:1]); err != nil {
		t.Fatalf("DeleteWithdrawals: %v", err)
	}

	got, _ := s.ListContributions(ctx, ledgerID, contribution.ListOpts{})
	if len(got) != 2 || !got[0].Amount.Equal(types.Ether(1)) || !got[1].Amount.Equal(types.Ether(3)) {
		t.Errorf("contributions after delete = %d rows", len(got))
	}
	ws, _ := s.ListWithdrawals(ctx, ledgerID, withdrawal.ListOpts{})
	if len(ws) != 1 || ws[0].ID.String() != withdrawals[1].String() {
		t.Errorf("withdrawals after delete = %d rows", len(ws))
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	ledgerID := newLedger(t, s)

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping before Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Ping", func() error { return s.Ping(ctx) }},
		{"CreateLedger", func() error {
			return s.CreateLedger(ctx, &fund.Ledger{Entity: types.NewEntity(), ID: id.NewLedgerID(), Owner: "0x01"})
		}},
		{"GetLedger", func() error { _, err := s.GetLedger(ctx, ledgerID); return err }},
		{"SetHeldBalance", func() error { return s.SetHeldBalance(ctx, ledgerID, types.Wei(1)) }},
		{"AppendFunder", func() error { return s.AppendFunder(ctx, ledgerID, alice) }},
		{"Snapshot", func() error { _, err := s.Snapshot(ctx, ledgerID); return err }},
		{"RecordContribution", func() error {
			return s.RecordContribution(ctx, &contribution.Contribution{ID: id.NewContributionID(), LedgerID: ledgerID})
		}},
		{"ListContributions", func() error { _, err := s.ListContributions(ctx, ledgerID, contribution.ListOpts{}); return err }},
		{"ListWithdrawals", func() error { _, err := s.ListWithdrawals(ctx, ledgerID, withdrawal.ListOpts{}); return err }},
		{"DeleteContributions", func() error { return s.DeleteContributions(ctx, nil) }},
		{"DeleteWithdrawals", func() error { return s.DeleteWithdrawals(ctx, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, crowdfund.ErrStoreClosed) {
				t.Errorf("got %v, want ErrStoreClosed", err)
			}
		})
	}
}
