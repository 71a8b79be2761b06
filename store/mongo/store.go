package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/fund"
	"github.com/xraph/crowdfund/id"
	cfstore "github.com/xraph/crowdfund/store"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// Collection name constants.
const (
	colLedgers       = "crowdfund_ledgers"
	colContributions = "crowdfund_contributions"
	colWithdrawals   = "crowdfund_withdrawals"
)

// compile-time interface check
var _ cfstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all crowdfund collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("crowdfund/mongo: migrate %s indexes: %w: %w", col, crowdfund.ErrMigrationFailed, err)
		}
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
	_, err := s.mdb.NewInsert(toLedgerModel(l)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return crowdfund.ErrAlreadyExists
		}
		return fmt.Errorf("crowdfund/mongo: create ledger: %w", err)
	}
	return nil
}

func (s *Store) GetLedger(ctx context.Context, ledgerID id.LedgerID) (*fund.Ledger, error) {
	m, err := s.ledger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	return fromLedgerModel(m)
}

func (s *Store) SetHeldBalance(ctx context.Context, ledgerID id.LedgerID, amount types.Amount) error {
	res, err := s.mdb.NewUpdate((*ledgerModel)(nil)).
		Filter(bson.M{"_id": ledgerID.String()}).
		Set("held_balance", amount.WeiString()).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: set held balance: %w", err)
	}
	if res.MatchedCount() == 0 {
		return crowdfund.ErrLedgerNotFound
	}
	return nil
}

// ==================== Funder sequence ====================

func (s *Store) AppendFunder(ctx context.Context, ledgerID id.LedgerID, funder types.Address) error {
	res, err := s.mdb.NewUpdate((*ledgerModel)(nil)).
		Filter(bson.M{"_id": ledgerID.String()}).
		SetUpdate(bson.M{"$push": bson.M{"funders": funder.String()}}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: append funder: %w", err)
	}
	if res.MatchedCount() == 0 {
		return crowdfund.ErrLedgerNotFound
	}
	return nil
}

func (s *Store) FunderCount(ctx context.Context, ledgerID id.LedgerID) (int, error) {
	m, err := s.ledger(ctx, ledgerID)
	if err != nil {
		return 0, err
	}
	return len(m.Funders), nil
}

func (s *Store) FunderAt(ctx context.Context, ledgerID id.LedgerID, index int) (types.Address, error) {
	m, err := s.ledger(ctx, ledgerID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(m.Funders) {
		return "", crowdfund.ErrIndexOutOfRange
	}
	return types.Address(m.Funders[index]), nil
}

func (s *Store) ListFunders(ctx context.Context, ledgerID id.LedgerID) ([]types.Address, error) {
	m, err := s.ledger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	return m.funderAddresses(), nil
}

func (s *Store) ClearFunders(ctx context.Context, ledgerID id.LedgerID) error {
	res, err := s.mdb.NewUpdate((*ledgerModel)(nil)).
		Filter(bson.M{"_id": ledgerID.String()}).
		Set("funders", []string{}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: clear funders: %w", err)
	}
	if res.MatchedCount() == 0 {
		return crowdfund.ErrLedgerNotFound
	}
	return nil
}

// ==================== Balances ====================

func (s *Store) AmountFunded(ctx context.Context, ledgerID id.LedgerID, funder types.Address) (types.Amount, error) {
	m, err := s.ledger(ctx, ledgerID)
	if err != nil {
		return types.Amount{}, err
	}
	for _, b := range m.Balances {
		if b.Address == funder.String() {
			return types.ParseWei(b.Amount)
		}
	}
	return types.Amount{}, nil
}

func (s *Store) SetAmountFunded(ctx context.Context, ledgerID id.LedgerID, funder types.Address, amount types.Amount) error {
	m, err := s.ledger(ctx, ledgerID)
	if err != nil {
		return err
	}
	balances, err := m.balanceMap()
	if err != nil {
		return err
	}
	balances[funder] = amount

	_, err = s.mdb.NewUpdate((*ledgerModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("balances", toBalanceModels(balances)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: set amount funded: %w", err)
	}
	return nil
}

// ==================== Snapshot / restore ====================

func (s *Store) Snapshot(ctx context.Context, ledgerID id.LedgerID) (*fund.Snapshot, error) {
	m, err := s.ledger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	balances, err := m.balanceMap()
	if err != nil {
		return nil, err
	}
	held, err := types.ParseWei(m.HeldBalance)
	if err != nil {
		return nil, err
	}

	return &fund.Snapshot{
		LedgerID:    ledgerID,
		Funders:     m.funderAddresses(),
		Balances:    balances,
		HeldBalance: held,
	}, nil
}

// Restore writes the funder sequence, balances and held balance back in a
// single document update.
func (s *Store) Restore(ctx context.Context, snap *fund.Snapshot) error {
	res, err := s.mdb.Collection(colLedgers).UpdateOne(ctx,
		bson.M{"_id": snap.LedgerID.String()},
		bson.M{"$set": bson.M{
			"funders":      toFunderStrings(snap.Funders),
			"balances":     toBalanceModels(snap.Balances),
			"held_balance": snap.HeldBalance.WeiString(),
			"updated_at":   now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: restore: %w", err)
	}
	if res.MatchedCount == 0 {
		return crowdfund.ErrLedgerNotFound
	}
	return nil
}

// ==================== Contribution Store ====================

func (s *Store) RecordContribution(ctx context.Context, c *contribution.Contribution) error {
	_, err := s.mdb.NewInsert(toContributionModel(c)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: record contribution: %w", err)
	}
	return nil
}

func (s *Store) ListContributions(ctx context.Context, ledgerID id.LedgerID, opts contribution.ListOpts) ([]*contribution.Contribution, error) {
	var models []contributionModel

	filter := bson.M{"ledger_id": ledgerID.String()}
	if opts.Funder != "" {
		filter["funder"] = opts.Funder.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("crowdfund/mongo: list contributions: %w", err)
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
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, cid := range ids {
		keys[i] = cid.String()
	}
	_, err := s.mdb.NewDelete((*contributionModel)(nil)).
		Filter(bson.M{"_id": bson.M{"$in": keys}}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: delete contributions: %w", err)
	}
	return nil
}

// ==================== Withdrawal Store ====================

func (s *Store) RecordWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error {
	_, err := s.mdb.NewInsert(toWithdrawalModel(w)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: record withdrawal: %w", err)
	}
	return nil
}

func (s *Store) ListWithdrawals(ctx context.Context, ledgerID id.LedgerID, opts withdrawal.ListOpts) ([]*withdrawal.Withdrawal, error) {
	var models []withdrawalModel

	filter := bson.M{"ledger_id": ledgerID.String()}
	if opts.Method != "" {
		filter["method"] = string(opts.Method)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("crowdfund/mongo: list withdrawals: %w", err)
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
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, wid := range ids {
		keys[i] = wid.String()
	}
	_, err := s.mdb.NewDelete((*withdrawalModel)(nil)).
		Filter(bson.M{"_id": bson.M{"$in": keys}}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("crowdfund/mongo: delete withdrawals: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

func (s *Store) ledger(ctx context.Context, ledgerID id.LedgerID) (*ledgerModel, error) {
	var m ledgerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": ledgerID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, crowdfund.ErrLedgerNotFound
		}
		return nil, fmt.Errorf("crowdfund/mongo: get ledger: %w", err)
	}
	return &m, nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all crowdfund collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colLedgers: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
		},
		colContributions: {
			{Keys: bson.D{{Key: "ledger_id", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "ledger_id", Value: 1}, {Key: "funder", Value: 1}}},
		},
		colWithdrawals: {
			{Keys: bson.D{{Key: "ledger_id", Value: 1}, {Key: "_id", Value: 1}}},
			{
				Keys:    bson.D{{Key: "ledger_id", Value: 1}, {Key: "method", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("idx_withdrawals_method"),
			},
		},
	}
}
