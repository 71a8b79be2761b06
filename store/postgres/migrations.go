package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Crowdfund store.
var Migrations = migrate.NewGroup("crowdfund")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_crowdfund_ledgers",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS crowdfund_ledgers (
    id           TEXT PRIMARY KEY,
    owner        TEXT NOT NULL,
    price_feed   TEXT NOT NULL DEFAULT '',
    minimum_usd  TEXT NOT NULL DEFAULT '0',
    held_balance TEXT NOT NULL DEFAULT '0',
    metadata     JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_crowdfund_ledgers_owner ON crowdfund_ledgers (owner);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS crowdfund_ledgers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_crowdfund_funders",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS crowdfund_funders (
    ledger_id TEXT NOT NULL REFERENCES crowdfund_ledgers (id) ON DELETE CASCADE,
    position  INT NOT NULL,
    address   TEXT NOT NULL,
    PRIMARY KEY (ledger_id, position)
);

CREATE TABLE IF NOT EXISTS crowdfund_balances (
    ledger_id TEXT NOT NULL REFERENCES crowdfund_ledgers (id) ON DELETE CASCADE,
    address   TEXT NOT NULL,
    amount    TEXT NOT NULL DEFAULT '0',
    PRIMARY KEY (ledger_id, address)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS crowdfund_balances;
DROP TABLE IF EXISTS crowdfund_funders;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_crowdfund_history",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS crowdfund_contributions (
    id             TEXT PRIMARY KEY,
    ledger_id      TEXT NOT NULL REFERENCES crowdfund_ledgers (id) ON DELETE CASCADE,
    funder         TEXT NOT NULL,
    amount         TEXT NOT NULL,
    usd_value      TEXT NOT NULL,
    price_round_id BIGINT NOT NULL DEFAULT 0,
    price_answer   TEXT NOT NULL DEFAULT '',
    price_decimals INT NOT NULL DEFAULT 0,
    price_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_crowdfund_contributions_ledger ON crowdfund_contributions (ledger_id, created_at);
CREATE INDEX IF NOT EXISTS idx_crowdfund_contributions_funder ON crowdfund_contributions (ledger_id, funder);

CREATE TABLE IF NOT EXISTS crowdfund_withdrawals (
    id              TEXT PRIMARY KEY,
    ledger_id       TEXT NOT NULL REFERENCES crowdfund_ledgers (id) ON DELETE CASCADE,
    recipient       TEXT NOT NULL,
    amount          TEXT NOT NULL,
    method          TEXT NOT NULL,
    funders_cleared INT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_crowdfund_withdrawals_ledger ON crowdfund_withdrawals (ledger_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS crowdfund_withdrawals;
DROP TABLE IF EXISTS crowdfund_contributions;
`)
				return err
			},
		},
	)
}
