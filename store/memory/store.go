package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/fund"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

type ledgerState struct {
	ledger   fund.Ledger
	funders  []types.Address
	balances map[types.Address]types.Amount
}

type Store struct {
	mu sync.RWMutex

	// Ledger storage, keyed by ledger ID
	ledgers map[string]*ledgerState

	// History
	contributions []*contribution.Contribution
	withdrawals   []*withdrawal.Withdrawal

	closed bool
}

func New() *Store {
	return &Store{
		ledgers:       make(map[string]*ledgerState),
		contributions: make([]*contribution.Contribution, 0),
		withdrawals:   make([]*withdrawal.Withdrawal, 0),
	}
}

// state must be called with s.mu held.
func (s *Store) state(ledgerID id.LedgerID) (*ledgerState, error) {
	if s.closed {
		return nil, crowdfund.ErrStoreClosed
	}
	st, ok := s.ledgers[ledgerID.String()]
	if !ok {
		return nil, crowdfund.ErrLedgerNotFound
	}
	return st, nil
}

// Ledger Store implementation
func (s *Store) CreateLedger(_ context.Context, l *fund.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return crowdfund.ErrStoreClosed
	}
	if _, exists := s.ledgers[l.ID.String()]; exists {
		return crowdfund.ErrAlreadyExists
	}
	s.ledgers[l.ID.String()] = &ledgerState{
		ledger:   *l,
		balances: make(map[types.Address]types.Amount),
	}
	return nil
}

func (s *Store) GetLedger(_ context.Context, ledgerID id.LedgerID) (*fund.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return nil, err
	}
	l := st.ledger
	return &l, nil
}

func (s *Store) SetHeldBalance(_ context.Context, ledgerID id.LedgerID, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return err
	}
	st.ledger.HeldBalance = amount
	st.ledger.Touch()
	return nil
}

// Funder sequence
func (s *Store) AppendFunder(_ context.Context, ledgerID id.LedgerID, funder types.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return err
	}
	st.funders = append(st.funders, funder)
	return nil
}

func (s *Store) FunderCount(_ context.Context, ledgerID id.LedgerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return 0, err
	}
	return len(st.funders), nil
}

func (s *Store) FunderAt(_ context.Context, ledgerID id.LedgerID, index int) (types.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(st.funders) {
		return "", crowdfund.ErrIndexOutOfRange
	}
	return st.funders[index], nil
}

func (s *Store) ListFunders(_ context.Context, ledgerID id.LedgerID) ([]types.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.funders), nil
}

func (s *Store) ClearFunders(_ context.Context, ledgerID id.LedgerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return err
	}
	st.funders = nil
	return nil
}

// Balances
func (s *Store) AmountFunded(_ context.Context, ledgerID id.LedgerID, funder types.Address) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return types.Amount{}, err
	}
	return st.balances[funder], nil
}

func (s *Store) SetAmountFunded(_ context.Context, ledgerID id.LedgerID, funder types.Address, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return err
	}
	st.balances[funder] = amount
	return nil
}

// Snapshot / restore
func (s *Store) Snapshot(_ context.Context, ledgerID id.LedgerID) (*fund.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(ledgerID)
	if err != nil {
		return nil, err
	}
	return &fund.Snapshot{
		LedgerID:    ledgerID,
		Funders:     slices.Clone(st.funders),
		Balances:    maps.Clone(st.balances),
		HeldBalance: st.ledger.HeldBalance,
	}, nil
}

func (s *Store) Restore(_ context.Context, snap *fund.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(snap.LedgerID)
	if err != nil {
		return err
	}
	st.funders = slices.Clone(snap.Funders)
	st.balances = maps.Clone(snap.Balances)
	if st.balances == nil {
		st.balances = make(map[types.Address]types.Amount)
	}
	st.ledger.HeldBalance = snap.HeldBalance
	return nil
}

// Contribution history
func (s *Store) RecordContribution(_ context.Context, c *contribution.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.state(c.LedgerID); err != nil {
		return err
	}
	s.contributions = append(s.contributions, c)
	return nil
}

func (s *Store) ListContributions(_ context.Context, ledgerID id.LedgerID, opts contribution.ListOpts) ([]*contribution.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, crowdfund.ErrStoreClosed
	}

	result := make([]*contribution.Contribution, 0)
	for _, c := range s.contributions {
		if c.LedgerID.String() != ledgerID.String() {
			continue
		}
		if opts.Funder != "" && c.Funder != opts.Funder {
			continue
		}
		result = append(result, c)
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) DeleteContributions(_ context.Context, ids []id.ContributionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return crowdfund.ErrStoreClosed
	}
	drop := make(map[string]bool, len(ids))
	for _, cid := range ids {
		drop[cid.String()] = true
	}
	s.contributions = slices.DeleteFunc(s.contributions, func(c *contribution.Contribution) bool {
		return drop[c.ID.String()]
	})
	return nil
}

// Withdrawal history
func (s *Store) RecordWithdrawal(_ context.Context, w *withdrawal.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.state(w.LedgerID); err != nil {
		return err
	}
	s.withdrawals = append(s.withdrawals, w)
	return nil
}

func (s *Store) ListWithdrawals(_ context.Context, ledgerID id.LedgerID, opts withdrawal.ListOpts) ([]*withdrawal.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, crowdfund.ErrStoreClosed
	}

	result := make([]*withdrawal.Withdrawal, 0)
	for _, w := range s.withdrawals {
		if w.LedgerID.String() != ledgerID.String() {
			continue
		}
		if opts.Method != "" && w.Method != opts.Method {
			continue
		}
		result = append(result, w)
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) DeleteWithdrawals(_ context.Context, ids []id.WithdrawalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return crowdfund.ErrStoreClosed
	}
	drop := make(map[string]bool, len(ids))
	for _, wid := range ids {
		drop[wid.String()] = true
	}
	s.withdrawals = slices.DeleteFunc(s.withdrawals, func(w *withdrawal.Withdrawal) bool {
		return drop[w.ID.String()]
	})
	return nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return crowdfund.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Every later call fails with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Helper functions
func paginate[T any](items []T, offset, limit int) []T {
	start := max(offset, 0)
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
