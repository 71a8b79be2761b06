package crowdfund

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/fund"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/plugin"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/store"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// DefaultMinimumUSD is the smallest accepted contribution, in whole dollars.
const DefaultMinimumUSD = 50

// Ledger is a handle to one funding ledger.
//
// A Ledger serializes its own state-changing operations. Calls made from
// inside the payout transfer with the context the Ledger passed to the
// Transferer are treated as reentrant: they run immediately and observe the
// already-settled state.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	oracle  *priceoracle.Adapter
	payer   payout.Transferer

	id    id.LedgerID
	owner types.Address

	mu sync.Mutex

	// Configuration
	minimumUSD   types.USD
	maxPriceAge  time.Duration
	feedDecimals uint8
	metadata     map[string]string
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithMinimumUSD sets the admission threshold for new ledgers. Opened
// ledgers keep the threshold they were created with.
func WithMinimumUSD(usd types.USD) Option {
	return func(l *Ledger) {
		l.minimumUSD = usd
	}
}

// WithMaxPriceAge rejects price rounds older than d. Zero disables the check.
func WithMaxPriceAge(d time.Duration) Option {
	return func(l *Ledger) {
		l.maxPriceAge = d
	}
}

// WithFeedDecimals sets the precision the price feed must report.
func WithFeedDecimals(decimals uint8) Option {
	return func(l *Ledger) {
		l.feedDecimals = decimals
	}
}

// WithMetadata attaches metadata to a new ledger record.
func WithMetadata(md map[string]string) Option {
	return func(l *Ledger) {
		l.metadata = maps.Clone(md)
	}
}

func newLedger(s store.Store, feed priceoracle.Feed, payer payout.Transferer, opts []Option) (*Ledger, error) {
	if s == nil {
		return nil, ValidationError{Field: "store", Message: "is required"}
	}
	if feed == nil {
		return nil, ValidationError{Field: "price_feed", Message: "is required"}
	}
	if payer == nil {
		return nil, ValidationError{Field: "transferer", Message: "is required"}
	}

	l := &Ledger{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		payer:        payer,
		minimumUSD:   types.Dollars(DefaultMinimumUSD),
		feedDecimals: priceoracle.DefaultDecimals,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.oracle = priceoracle.NewAdapter(feed,
		priceoracle.WithExpectedDecimals(l.feedDecimals),
		priceoracle.WithMaxAge(l.maxPriceAge),
	)
	return l, nil
}

// Create persists a new ledger owned by owner and returns a handle to it.
func Create(ctx context.Context, s store.Store, owner types.Address, feed priceoracle.Feed, payer payout.Transferer, opts ...Option) (*Ledger, error) {
	owner = types.NewAddress(string(owner))
	if owner.IsZero() {
		return nil, ValidationError{Field: "owner", Message: "is required"}
	}

	l, err := newLedger(s, feed, payer, opts)
	if err != nil {
		return nil, err
	}

	rec := &fund.Ledger{
		Entity:     types.NewEntity(),
		ID:         id.NewLedgerID(),
		Owner:      owner,
		PriceFeed:  feed.Description(),
		MinimumUSD: l.minimumUSD,
		Metadata:   l.metadata,
	}
	if err := s.CreateLedger(ctx, rec); err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	l.id = rec.ID
	l.owner = rec.Owner

	l.logger.Info("ledger created",
		"ledger_id", l.id,
		"owner", l.owner,
		"price_feed", rec.PriceFeed,
		"minimum_usd", l.minimumUSD,
	)
	l.plugins.EmitInit(ctx, l)

	return l, nil
}

// Open returns a handle to a ledger previously persisted with Create.
func Open(ctx context.Context, s store.Store, ledgerID id.LedgerID, feed priceoracle.Feed, payer payout.Transferer, opts ...Option) (*Ledger, error) {
	l, err := newLedger(s, feed, payer, opts)
	if err != nil {
		return nil, err
	}

	rec, err := s.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", ledgerID, err)
	}

	l.id = rec.ID
	l.owner = rec.Owner
	l.minimumUSD = rec.MinimumUSD
	l.metadata = rec.Metadata

	l.logger.Info("ledger opened",
		"ledger_id", l.id,
		"owner", l.owner,
		"held_balance", rec.HeldBalance,
	)
	l.plugins.EmitInit(ctx, l)

	return l, nil
}

// Close notifies plugins that the ledger is going away. It does not close
// the store.
func (l *Ledger) Close(ctx context.Context) error {
	l.plugins.EmitShutdown(ctx)
	l.logger.Info("ledger closed", "ledger_id", l.id)
	return nil
}

// ──────────────────────────────────────────────────
// Serialization
// ──────────────────────────────────────────────────

type reentryKey struct{ l *Ledger }

// journal records what happened under one acquisition of the ledger lock.
// Nested calls made with the marked context share the outermost journal.
type journal struct {
	mu            sync.Mutex
	contributions []id.ContributionID
	withdrawals   []id.WithdrawalID
	events        []event
}

// event is a plugin notification held until the lock is released. Effect
// events report state changes and are dropped when those changes are rolled
// back.
type event struct {
	emit   func(ctx context.Context)
	effect bool
}

type journalMark struct {
	contributions, withdrawals, events int
}

func (j *journal) mark() journalMark {
	j.mu.Lock()
	defer j.mu.Unlock()
	return journalMark{len(j.contributions), len(j.withdrawals), len(j.events)}
}

func (j *journal) notify(emit func(ctx context.Context)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event{emit: emit})
}

func (j *journal) commit(emit func(ctx context.Context)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event{emit: emit, effect: true})
}

func (j *journal) contributed(cid id.ContributionID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.contributions = append(j.contributions, cid)
}

func (j *journal) withdrew(wid id.WithdrawalID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.withdrawals = append(j.withdrawals, wid)
}

// undo forgets everything recorded since m except notices and returns the
// history rows that must be deleted.
func (j *journal) undo(m journalMark) ([]id.ContributionID, []id.WithdrawalID) {
	j.mu.Lock()
	defer j.mu.Unlock()

	contributions := slices.Clone(j.contributions[m.contributions:])
	withdrawals := slices.Clone(j.withdrawals[m.withdrawals:])
	j.contributions = j.contributions[:m.contributions]
	j.withdrawals = j.withdrawals[:m.withdrawals]

	kept := j.events[:m.events]
	for _, e := range j.events[m.events:] {
		if !e.effect {
			kept = append(kept, e)
		}
	}
	j.events = kept
	return contributions, withdrawals
}

func (j *journal) drain() []event {
	j.mu.Lock()
	defer j.mu.Unlock()
	events := j.events
	j.events = nil
	return events
}

// enter acquires the ledger lock unless ctx already holds it. The returned
// context marks the holder and must be passed to everything called under it.
// Leaving the outermost call releases the lock and then delivers the queued
// events with the caller's original context.
func (l *Ledger) enter(ctx context.Context) (context.Context, *journal, func()) {
	if j, ok := ctx.Value(reentryKey{l}).(*journal); ok {
		return ctx, j, func() {}
	}
	l.mu.Lock()
	j := &journal{}
	leave := func() {
		l.mu.Unlock()
		for _, e := range j.drain() {
			e.emit(ctx)
		}
	}
	return context.WithValue(ctx, reentryKey{l}, j), j, leave
}

// rollback restores snap, deletes the history rows recorded since m, and
// returns the error to report for cause.
func (l *Ledger) rollback(ctx context.Context, j *journal, m journalMark, snap *fund.Snapshot, cause error) error {
	var failures MultiError
	if err := l.store.Restore(ctx, snap); err != nil {
		failures.Add(err)
	}

	contributions, withdrawals := j.undo(m)
	if len(contributions) > 0 {
		if err := l.store.DeleteContributions(ctx, contributions); err != nil {
			failures.Add(fmt.Errorf("delete contributions: %w", err))
		}
	}
	if len(withdrawals) > 0 {
		if err := l.store.DeleteWithdrawals(ctx, withdrawals); err != nil {
			failures.Add(fmt.Errorf("delete withdrawals: %w", err))
		}
	}

	if !failures.HasErrors() {
		return cause
	}
	l.logger.Error("rollback failed",
		"ledger_id", l.id,
		"cause", cause,
		"error", failures,
	)
	var merr MultiError
	merr.Add(cause)
	for _, err := range failures.Errors {
		merr.Add(fmt.Errorf("%w: %w", ErrRollbackFailed, err))
	}
	return merr
}

// ──────────────────────────────────────────────────
// Contributions
// ──────────────────────────────────────────────────

// Contribute records amount from caller if it is worth at least the minimum
// USD value at the current price.
func (l *Ledger) Contribute(ctx context.Context, caller types.Address, amount types.Amount) (*contribution.Contribution, error) {
	caller = types.NewAddress(string(caller))

	ctx, j, leave := l.enter(ctx)
	defer leave()

	c, err := l.contribute(ctx, j, caller, amount)
	if err != nil {
		l.logger.Warn("contribution rejected",
			"ledger_id", l.id,
			"funder", caller,
			"amount", amount,
			"error", err,
		)
		j.notify(func(ctx context.Context) {
			l.plugins.EmitContributionRejected(ctx, l.id, caller, amount, err)
		})
		return nil, err
	}

	l.logger.Debug("contribution accepted",
		"ledger_id", l.id,
		"contribution_id", c.ID,
		"funder", caller,
		"amount", amount,
		"usd_value", c.USDValue,
	)
	j.commit(func(ctx context.Context) {
		l.plugins.EmitContributionAccepted(ctx, c)
	})

	return c, nil
}

func (l *Ledger) contribute(ctx context.Context, j *journal, caller types.Address, amount types.Amount) (*contribution.Contribution, error) {
	if caller.IsZero() {
		return nil, ErrInvalidAddress
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientContribution, ErrInvalidAmount)
	}

	conv, err := l.convert(ctx, j, amount)
	if err != nil {
		return nil, err
	}
	if conv.USD.LessThan(l.minimumUSD) {
		return nil, fmt.Errorf("%w: %s is worth %s, minimum is %s",
			ErrInsufficientContribution, amount, conv.USD, l.minimumUSD)
	}

	m := j.mark()
	snap, err := l.store.Snapshot(ctx, l.id)
	if err != nil {
		return nil, err
	}

	funded, overflow := snap.Balances[caller].AddOverflow(amount)
	held, heldOverflow := snap.HeldBalance.AddOverflow(amount)
	if overflow || heldOverflow {
		return nil, fmt.Errorf("%w: %s would overflow the held balance of %s",
			ErrInvalidAmount, amount, snap.HeldBalance)
	}

	c := &contribution.Contribution{
		Entity:        types.NewEntity(),
		ID:            id.NewContributionID(),
		LedgerID:      l.id,
		Funder:        caller,
		Amount:        amount,
		USDValue:      conv.USD,
		PriceRoundID:  conv.Price.RoundID,
		PriceAnswer:   conv.Price.Answer.String(),
		PriceDecimals: conv.Price.Decimals,
		PriceAt:       conv.Price.UpdatedAt,
	}

	if err := l.applyContribution(ctx, c, funded, held); err != nil {
		return nil, l.rollback(ctx, j, m, snap, err)
	}
	j.contributed(c.ID)
	return c, nil
}

// applyContribution writes the new balances computed from the snapshot and
// then the history row.
func (l *Ledger) applyContribution(ctx context.Context, c *contribution.Contribution, funded, held types.Amount) error {
	if err := l.store.AppendFunder(ctx, l.id, c.Funder); err != nil {
		return err
	}
	if err := l.store.SetAmountFunded(ctx, l.id, c.Funder, funded); err != nil {
		return err
	}
	if err := l.store.SetHeldBalance(ctx, l.id, held); err != nil {
		return err
	}
	return l.store.RecordContribution(ctx, c)
}

func (l *Ledger) convert(ctx context.Context, j *journal, amount types.Amount) (priceoracle.Conversion, error) {
	start := time.Now()
	conv, err := l.oracle.ConvertToUSD(ctx, amount)
	if err != nil {
		return priceoracle.Conversion{}, err
	}
	elapsed := time.Since(start)
	j.notify(func(ctx context.Context) {
		l.plugins.EmitPriceRead(ctx, l.id, conv.Price, elapsed)
	})
	return conv, nil
}

// ──────────────────────────────────────────────────
// Withdrawals
// ──────────────────────────────────────────────────

// Withdraw resets every funder and pays the held balance to the owner.
// Funders are visited by position, re-reading the stored sequence each step.
func (l *Ledger) Withdraw(ctx context.Context, caller types.Address) (*withdrawal.Withdrawal, error) {
	return l.disburse(ctx, caller, withdrawal.MethodWithdraw, l.resetByPosition)
}

// CheaperWithdraw has the same contract as Withdraw but reads the funder
// sequence once into memory and resets balances from that copy.
func (l *Ledger) CheaperWithdraw(ctx context.Context, caller types.Address) (*withdrawal.Withdrawal, error) {
	return l.disburse(ctx, caller, withdrawal.MethodCheaperWithdraw, l.resetFromCopy)
}

// resetFunc zeroes the balance of every funder and reports how many
// sequence entries it visited.
type resetFunc func(ctx context.Context) (int, error)

func (l *Ledger) resetByPosition(ctx context.Context) (int, error) {
	for i := 0; ; i++ {
		n, err := l.store.FunderCount(ctx, l.id)
		if err != nil {
			return i, err
		}
		if i >= n {
			return i, nil
		}
		funder, err := l.store.FunderAt(ctx, l.id, i)
		if err != nil {
			return i, err
		}
		if err := l.store.SetAmountFunded(ctx, l.id, funder, types.Amount{}); err != nil {
			return i, err
		}
	}
}

func (l *Ledger) resetFromCopy(ctx context.Context) (int, error) {
	funders, err := l.store.ListFunders(ctx, l.id)
	if err != nil {
		return 0, err
	}
	for i, funder := range funders {
		if err := l.store.SetAmountFunded(ctx, l.id, funder, types.Amount{}); err != nil {
			return i, err
		}
	}
	return len(funders), nil
}

func (l *Ledger) disburse(ctx context.Context, caller types.Address, method withdrawal.Method, reset resetFunc) (*withdrawal.Withdrawal, error) {
	caller = types.NewAddress(string(caller))

	ctx, j, leave := l.enter(ctx)
	defer leave()

	w, err := l.settle(ctx, j, caller, method, reset)
	if err != nil {
		if errors.Is(err, ErrNotOwner) {
			l.logger.Warn("unauthorized withdrawal",
				"ledger_id", l.id,
				"caller", caller,
				"method", method,
			)
		} else {
			l.logger.Error("withdrawal failed",
				"ledger_id", l.id,
				"method", method,
				"error", err,
			)
		}
		j.notify(func(ctx context.Context) {
			l.plugins.EmitWithdrawalFailed(ctx, l.id, caller, method, err)
		})
		return nil, err
	}

	l.logger.Info("withdrawal completed",
		"ledger_id", l.id,
		"withdrawal_id", w.ID,
		"method", method,
		"amount", w.Amount,
		"funders_cleared", w.FundersCleared,
	)
	j.commit(func(ctx context.Context) {
		l.plugins.EmitWithdrawn(ctx, w)
	})

	return w, nil
}

// settle is shared by both withdrawal variants: check the caller, clear all
// state, then transfer. State and any history written by reentrant calls are
// restored if a step, the transfer included, fails.
func (l *Ledger) settle(ctx context.Context, j *journal, caller types.Address, method withdrawal.Method, reset resetFunc) (*withdrawal.Withdrawal, error) {
	if caller != l.owner {
		return nil, ErrNotOwner
	}

	m := j.mark()
	snap, err := l.store.Snapshot(ctx, l.id)
	if err != nil {
		return nil, err
	}
	held := snap.HeldBalance

	cleared, err := reset(ctx)
	if err == nil {
		err = l.store.ClearFunders(ctx, l.id)
	}
	if err == nil {
		err = l.store.SetHeldBalance(ctx, l.id, types.Amount{})
	}
	if err != nil {
		return nil, l.rollback(ctx, j, m, snap, err)
	}

	// State is settled; only now does value leave the ledger.
	if held.IsPositive() {
		if err := l.payer.Transfer(ctx, l.owner, held); err != nil {
			return nil, l.rollback(ctx, j, m, snap, fmt.Errorf("%w: %w", ErrTransferFailed, err))
		}
	}

	w := &withdrawal.Withdrawal{
		Entity:         types.NewEntity(),
		ID:             id.NewWithdrawalID(),
		LedgerID:       l.id,
		Recipient:      l.owner,
		Amount:         held,
		Method:         method,
		FundersCleared: cleared,
	}
	if err := l.store.RecordWithdrawal(ctx, w); err != nil {
		// The owner has been paid; the history row is best-effort.
		l.logger.Error("failed to record withdrawal",
			"ledger_id", l.id,
			"withdrawal_id", w.ID,
			"error", err,
		)
	} else {
		j.withdrew(w.ID)
	}

	return w, nil
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// ID returns the ledger identifier.
func (l *Ledger) ID() id.LedgerID { return l.id }

// Owner returns the only address allowed to withdraw.
func (l *Ledger) Owner() types.Address { return l.owner }

// PriceFeed returns the feed the ledger was created with.
func (l *Ledger) PriceFeed() priceoracle.Feed { return l.oracle.Feed() }

// MinimumUSD returns the admission threshold.
func (l *Ledger) MinimumUSD() types.USD { return l.minimumUSD }

// AmountFunded returns the cumulative amount funder has contributed since
// the last withdrawal.
func (l *Ledger) AmountFunded(ctx context.Context, funder types.Address) (types.Amount, error) {
	ctx, _, leave := l.enter(ctx)
	defer leave()

	return l.store.AmountFunded(ctx, l.id, types.NewAddress(string(funder)))
}

// Funder returns the funder at position index of the funder sequence.
func (l *Ledger) Funder(ctx context.Context, index int) (types.Address, error) {
	if index < 0 {
		return "", ErrIndexOutOfRange
	}

	ctx, _, leave := l.enter(ctx)
	defer leave()

	return l.store.FunderAt(ctx, l.id, index)
}

// FunderCount returns the length of the funder sequence.
func (l *Ledger) FunderCount(ctx context.Context) (int, error) {
	ctx, _, leave := l.enter(ctx)
	defer leave()

	return l.store.FunderCount(ctx, l.id)
}

// Funders returns a copy of the funder sequence, duplicates included.
func (l *Ledger) Funders(ctx context.Context) ([]types.Address, error) {
	ctx, _, leave := l.enter(ctx)
	defer leave()

	return l.store.ListFunders(ctx, l.id)
}

// HeldBalance returns the value currently custodied by the ledger.
func (l *Ledger) HeldBalance(ctx context.Context) (types.Amount, error) {
	ctx, _, leave := l.enter(ctx)
	defer leave()

	rec, err := l.store.GetLedger(ctx, l.id)
	if err != nil {
		return types.Amount{}, err
	}
	return rec.HeldBalance, nil
}

// Contributions lists accepted contributions, oldest first.
func (l *Ledger) Contributions(ctx context.Context, opts contribution.ListOpts) ([]*contribution.Contribution, error) {
	return l.store.ListContributions(ctx, l.id, opts)
}

// Withdrawals lists completed withdrawals, oldest first.
func (l *Ledger) Withdrawals(ctx context.Context, opts withdrawal.ListOpts) ([]*withdrawal.Withdrawal, error) {
	return l.store.ListWithdrawals(ctx, l.id, opts)
}

// Verify checks that the stored balances add up to the held balance and
// that the funder sequence names exactly the funders with a positive balance.
func (l *Ledger) Verify(ctx context.Context) error {
	ctx, _, leave := l.enter(ctx)
	defer leave()

	snap, err := l.store.Snapshot(ctx, l.id)
	if err != nil {
		return err
	}

	var merr MultiError
	if total := snap.Total(); !total.Equal(snap.HeldBalance) {
		merr.Add(fmt.Errorf("%w: balances sum to %s, held balance is %s", ErrInconsistentState, total, snap.HeldBalance))
	}

	listed := make(map[types.Address]bool, len(snap.Funders))
	for _, f := range snap.Funders {
		listed[f] = true
		if !snap.Balances[f].IsPositive() {
			merr.Add(fmt.Errorf("%w: funder %s is listed with a zero balance", ErrInconsistentState, f))
		}
	}
	for addr, amt := range snap.Balances {
		if amt.IsPositive() && !listed[addr] {
			merr.Add(fmt.Errorf("%w: %s holds %s but is not listed", ErrInconsistentState, addr, amt))
		}
	}

	if merr.HasErrors() {
		return merr
	}
	return nil
}
