// Package payout moves withdrawn value out of a ledger.
//
// The ledger only needs a Transferer. Vault is an in-memory account book that
// implements it for tests and single-process deployments.
package payout

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/xraph/crowdfund/types"
)

// ErrRejected is returned when a recipient refuses a transfer.
var ErrRejected = errors.New("payout: recipient rejected transfer")

// Transferer sends amount to a recipient. A non-nil error means nothing was sent.
type Transferer interface {
	Transfer(ctx context.Context, to types.Address, amount types.Amount) error
}

// TransferFunc adapts a function to the Transferer interface.
type TransferFunc func(ctx context.Context, to types.Address, amount types.Amount) error

// Transfer calls f(ctx, to, amount).
func (f TransferFunc) Transfer(ctx context.Context, to types.Address, amount types.Amount) error {
	return f(ctx, to, amount)
}

// Receipt is one completed Vault transfer.
type Receipt struct {
	To     types.Address `json:"to"`
	Amount types.Amount  `json:"amount"`
	At     time.Time     `json:"at"`
}

// Vault keeps balances for recipients in memory.
type Vault struct {
	mu       sync.Mutex
	balances map[types.Address]types.Amount
	rejected map[types.Address]error
	receipts []Receipt
	hook     func(ctx context.Context, to types.Address, amount types.Amount) error
}

// NewVault creates an empty Vault.
func NewVault() *Vault {
	return &Vault{
		balances: make(map[types.Address]types.Amount),
		rejected: make(map[types.Address]error),
	}
}

// Credit adds amount to addr without going through Transfer.
func (v *Vault) Credit(addr types.Address, amount types.Amount) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.balances[addr] = v.balances[addr].Add(amount)
}

// Balance returns what addr has received.
func (v *Vault) Balance(addr types.Address) types.Amount {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.balances[addr]
}

// Reject makes transfers to addr fail with err, or ErrRejected when err is nil.
func (v *Vault) Reject(addr types.Address, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err == nil {
		err = ErrRejected
	}
	v.rejected[addr] = err
}

// Accept undoes Reject.
func (v *Vault) Accept(addr types.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.rejected, addr)
}

// OnTransfer installs fn to run before each transfer is credited, the way a
// receiving contract's fallback runs. An error from fn rejects the transfer.
// fn runs without the vault lock held and may call back into the ledger.
func (v *Vault) OnTransfer(fn func(ctx context.Context, to types.Address, amount types.Amount) error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.hook = fn
}

// Receipts returns all completed transfers in order.
func (v *Vault) Receipts() []Receipt {
	v.mu.Lock()
	defer v.mu.Unlock()

	return slices.Clone(v.receipts)
}

// Transfer implements Transferer.
func (v *Vault) Transfer(ctx context.Context, to types.Address, amount types.Amount) error {
	v.mu.Lock()
	rejectErr := v.rejected[to]
	hook := v.hook
	v.mu.Unlock()

	if rejectErr != nil {
		return rejectErr
	}
	if hook != nil {
		if err := hook(ctx, to, amount); err != nil {
			return err
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.balances[to] = v.balances[to].Add(amount)
	v.receipts = append(v.receipts, Receipt{To: to, Amount: amount, At: time.Now().UTC()})
	return nil
}
