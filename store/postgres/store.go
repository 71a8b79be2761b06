package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/fund"
	"github.com/xraph/crowdfund/id"
	cfstore "github.com/xraph/crowdfund/store"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// compile-time interface check
var _ cfstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("crowdfund/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("crowdfund/postgres: %w: %w", crowdfund.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Ledger Store ====================

func (s *Store) CreateLedger(ctx context.Context, l *fund.Ledger) error {
	_, err := s.pg.NewInsert(toLedgerModel(l)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return crowdfund.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetLedger(ctx context.Context, ledgerID id.LedgerID) (*fund.Ledger, error) {
	m := new(ledgerModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", ledgerID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, crowdfund.ErrLedgerNotFound
		}
		return nil, err
	}
	return fromLedgerModel(m)
}

func (s *Store) SetHeldBalance(ctx context.Context, ledgerID id.LedgerID, amount types.Amount) error {
	res, err := s.pg.NewUpdate((*ledgerModel)(nil)).
		Set("held_balance = $1", amount.WeiString()).
		Set("updated_at = $2", now()).
		Where("id = $3", ledgerID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return crowdfund.ErrLedgerNotFound
	}
	return nil
}

// ==================== Funder sequence ====================

func (s *Store) AppendFunder(ctx context.Context, ledgerID id.LedgerID, funder types.Address) error {
	n, err := s.FunderCount(ctx, ledgerID)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(&funderModel{
		LedgerID: ledgerID.String(),
		Position: n,
		Address:  funder.String(),
	}).Exec(ctx)
	return err
}

func (s *Store) FunderCount(ctx context.Context, ledgerID id.LedgerID) (int, error) {
	if err := s.ensureLedger(ctx, ledgerID); err != nil {
		return 0, err
	}
	var n int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM crowdfund_funders WHERE ledger_id = $1`, ledgerID.String()).
		Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) FunderAt(ctx context.Context, ledgerID id.LedgerID, index int) (types.Address, error) {
	if index < 0 {
		return "", crowdfund.ErrIndexOutOfRange
	}
	m := new(funderModel)
	err := s.pg.NewSelect(m).
		Where("ledger_id = $1", ledgerID.String()).
		Where("position = $2", index).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			if err := s.ensureLedger(ctx, ledgerID); err != nil {
				return "", err
			}
			return "", crowdfund.ErrIndexOutOfRange
		}
		return "", err
	}
	return types.Address(m.Address), nil
}

func (s *Store) ListFunders(ctx context.Context, ledgerID id.LedgerID) ([]types.Address, error) {
	if err := s.ensureLedger(ctx, ledgerID); err != nil {
		return nil, err
	}
	var models []funderModel
	err := s.pg.NewSelect(&models).
		Where("ledger_id = $1", ledgerID.String()).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	funders := make([]types.Address, len(models))
	for i := range models {
		funders[i] = types.Address(models[i].Address)
	}
	return funders, nil
}

func (s *Store) ClearFunders(ctx context.Context, ledgerID id.LedgerID) error {
	if err := s.ensureLedger(ctx, ledgerID); err != nil {
		return err
	}
	_, err := s.pg.NewDelete((*funderModel)(nil)).
		Where("ledger_id = $1", ledgerID.String()).
		Exec(ctx)
	return err
}

// ==================== Balances ====================

func (s *Store) AmountFunded(ctx context.Context, ledgerID id.LedgerID, funder types.Address) (types.Amount, error) {
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("ledger_id = $1", ledgerID.String()).
		Where("address = $2", funder.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return types.Amount{}, s.ensureLedger(ctx, ledgerID)
		}
		return types.Amount{}, err
	}
	return types.ParseWei(m.Amount)
}

// SetAmountFunded upserts the balance row. A zero amount deletes it.
func (s *Store) SetAmountFunded(ctx context.Context, ledgerID id.LedgerID, funder types.Address, amount types.Amount) error {
	if err := s.ensureLedger(ctx, ledgerID); err != nil {
		return err
	}
	if amount.IsZero() {
		_, err := s.pg.NewDelete((*balanceModel)(nil)).
			Where("ledger_id = $1", ledgerID.String()).
			Where("address = $2", funder.String()).
			Exec(ctx)
		return err
	}
	_, err := s.pg.NewInsert(&balanceModel{
		LedgerID: ledgerID.String(),
		Address:  funder.String(),
		Amount:   amount.WeiString(),
	}).
		OnConflict("(ledger_id, address) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Exec(ctx)
	return err
}

// ==================== Snapshot / restore ====================

func (s *Store) Snapshot(ctx context.Context, ledgerID id.LedgerID) (*fund.Snapshot, error) {
	l, err := s.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	funders, err := s.ListFunders(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	var models []balanceModel
	if err := s.pg.NewSelect(&models).Where("ledger_id = $1", ledgerID.String()).Scan(ctx); err != nil {
		return nil, err
	}
	balances := make(map[types.Address]types.Amount, len(models))
	for i := range models {
		amt, err := types.ParseWei(models[i].Amount)
		if err != nil {
			return nil, err
		}
		balances[types.Address(models[i].Address)] = amt
	}

	return &fund.Snapshot{
		LedgerID:    ledgerID,
		Funders:     funders,
		Balances:    balances,
		HeldBalance: l.HeldBalance,
	}, nil
}

// Restore replaces the funder sequence, balances and held balance with the
// snapshot's contents.
func (s *Store) Restore(ctx context.Context, snap *fund.Snapshot) error {
	ledgerID := snap.LedgerID.String()

	if err := s.ClearFunders(ctx, snap.LedgerID); err != nil {
		return err
	}
	if _, err := s.pg.NewDelete((*balanceModel)(nil)).Where("ledger_id = $1", ledgerID).Exec(ctx); err != nil {
		return err
	}

	if len(snap.Funders) > 0 {
		funders := make([]funderModel, len(snap.Funders))
		for i, f := range snap.Funders {
			funders[i] = funderModel{LedgerID: ledgerID, Position: i, Address: f.String()}
		}
		if _, err := s.pg.NewInsert(&funders).Exec(ctx); err != nil {
			return err
		}
	}

	balances := make([]balanceModel, 0, len(snap.Balances))
	for addr, amt := range snap.Balances {
		if amt.IsZero() {
			continue
		}
		balances = append(balances, balanceModel{LedgerID: ledgerID, Address: addr.String(), Amount: amt.WeiString()})
	}
	if len(balances) > 0 {
		if _, err := s.pg.NewInsert(&balances).Exec(ctx); err != nil {
			return err
		}
	}

	return s.SetHeldBalance(ctx, snap.LedgerID, snap.HeldBalance)
}

// ==================== Contribution Store ====================

func (s *Store) RecordContribution(ctx context.Context, c *contribution.Contribution) error {
	_, err := s.pg.NewInsert(toContributionModel(c)).Exec(ctx)
	return err
}

func (s *Store) ListContributions(ctx context.Context, ledgerID id.LedgerID, opts contribution.ListOpts) ([]*contribution.Contribution, error) {
	var models []contributionModel
	q := s.pg.NewSelect(&models).Where("ledger_id = $1", ledgerID.String())

	if opts.Funder != "" {
		q = q.Where("funder = $2", opts.Funder.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*contribution.Contribution, len(models))
	for i := range models {
		c, err := fromContributionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) DeleteContributions(ctx context.Context, ids []id.ContributionID) error {
	for _, cid := range ids {
		_, err := s.pg.NewDelete((*contributionModel)(nil)).
			Where("id = $1", cid.String()).
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// ==================== Withdrawal Store ====================

func (s *Store) RecordWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error {
	_, err := s.pg.NewInsert(toWithdrawalModel(w)).Exec(ctx)
	return err
}

func (s *Store) ListWithdrawals(ctx context.Context, ledgerID id.LedgerID, opts withdrawal.ListOpts) ([]*withdrawal.Withdrawal, error) {
	var models []withdrawalModel
	q := s.pg.NewSelect(&models).Where("ledger_id = $1", ledgerID.String())

	if opts.Method != "" {
		q = q.Where("method = $2", string(opts.Method))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*withdrawal.Withdrawal, len(models))
	for i := range models {
		w, err := fromWithdrawalModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = w
	}
	return result, nil
}

func (s *Store) DeleteWithdrawals(ctx context.Context, ids []id.WithdrawalID) error {
	for _, wid := range ids {
		_, err := s.pg.NewDelete((*withdrawalModel)(nil)).
			Where("id = $1", wid.String()).
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// ==================== Helpers ====================

// ensureLedger returns ErrLedgerNotFound when no ledger row exists.
func (s *Store) ensureLedger(ctx context.Context, ledgerID id.LedgerID) error {
	var n int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM crowdfund_ledgers WHERE id = $1`, ledgerID.String()).
		Scan(ctx, &n)
	if err != nil {
		return err
	}
	if n == 0 {
		return crowdfund.ErrLedgerNotFound
	}
	return nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports a PostgreSQL unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505")
}
