package payout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/types"
)

const (
	owner    types.Address = "0x00000000000000000000000000000000000000aa"
	attacker types.Address = "0x00000000000000000000000000000000000000bb"
)

func TestVaultTransfer(t *testing.T) {
	v := payout.NewVault()
	v.Credit(owner, types.Ether(10))

	if err := v.Transfer(context.Background(), owner, types.Ether(6)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := v.Balance(owner); !got.Equal(types.Ether(16)) {
		t.Errorf("balance = %s, want 16 ETH", got)
	}

	receipts := v.Receipts()
	if len(receipts) != 1 {
		t.Fatalf("receipts = %d, want 1", len(receipts))
	}
	if receipts[0].To != owner || !receipts[0].Amount.Equal(types.Ether(6)) {
		t.Errorf("unexpected receipt %+v", receipts[0])
	}
}

func TestVaultReject(t *testing.T) {
	v := payout.NewVault()
	v.Reject(owner, nil)

	err := v.Transfer(context.Background(), owner, types.Ether(1))
	if !errors.Is(err, payout.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if !v.Balance(owner).IsZero() {
		t.Error("rejected transfer must not credit the recipient")
	}

	v.Accept(owner)
	if err := v.Transfer(context.Background(), owner, types.Ether(1)); err != nil {
		t.Fatalf("Transfer after Accept: %v", err)
	}
}

func TestVaultHook(t *testing.T) {
	v := payout.NewVault()
	hookErr := errors.New("fallback reverted")

	var seen []types.Address
	v.OnTransfer(func(_ context.Context, to types.Address, _ types.Amount) error {
		seen = append(seen, to)
		if to == attacker {
			return hookErr
		}
		// The hook runs unlocked, so reading the vault here must not deadlock.
		_ = v.Balance(to)
		return nil
	})

	ctx := context.Background()
	if err := v.Transfer(ctx, owner, types.Ether(1)); err != nil {
		t.Fatalf("Transfer(owner): %v", err)
	}
	if err := v.Transfer(ctx, attacker, types.Ether(1)); !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("hook calls = %d, want 2", len(seen))
	}
	if !v.Balance(attacker).IsZero() {
		t.Error("attacker should not be credited")
	}
}

func TestTransferFunc(t *testing.T) {
	var got types.Amount
	var tr payout.Transferer = payout.TransferFunc(func(_ context.Context, _ types.Address, amount types.Amount) error {
		got = amount
		return nil
	})

	if err := tr.Transfer(context.Background(), owner, types.Wei(42)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if !got.Equal(types.Wei(42)) {
		t.Errorf("amount = %s, want 42 wei", got)
	}
}
