package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Credits store.
var Migrations = migrate.NewGroup("credits")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_credits_organizations",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_organizations (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    archived_at TIMESTAMPTZ,
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credits_orgs_archived ON credits_organizations (archived_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_organizations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_ledger",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_ledger (
    id              TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    credit_type     TEXT NOT NULL,
    amount          BIGINT NOT NULL,
    type            TEXT NOT NULL DEFAULT '',
    related_id      TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credits_ledger_org_type ON credits_ledger (organization_id, credit_type, created_at);
CREATE INDEX IF NOT EXISTS idx_credits_ledger_related ON credits_ledger (related_id) WHERE related_id != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_ledger`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_balances",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_balances (
    organization_id TEXT NOT NULL,
    credit_type     TEXT NOT NULL,
    balance         BIGINT NOT NULL DEFAULT 0,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (organization_id, credit_type)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_payments",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_payments (
    id                       TEXT PRIMARY KEY,
    organization_id          TEXT NOT NULL,
    package_id               TEXT NOT NULL DEFAULT '',
    kind                     TEXT NOT NULL DEFAULT 'one_time',
    status                   TEXT NOT NULL DEFAULT 'pending',
    provider_ref             TEXT NOT NULL DEFAULT '',
    invoice_ref              TEXT NOT NULL DEFAULT '',
    amount_cents             BIGINT NOT NULL DEFAULT 0,
    amount_currency          TEXT NOT NULL DEFAULT '',
    credit_type              TEXT NOT NULL DEFAULT '',
    credits_purchased        BIGINT NOT NULL DEFAULT 0,
    credits_added            BIGINT NOT NULL DEFAULT 0,
    failure_reason           TEXT NOT NULL DEFAULT '',
    refunded_amount_cents    BIGINT NOT NULL DEFAULT 0,
    refunded_amount_currency TEXT NOT NULL DEFAULT '',
    refunded_credits         BIGINT NOT NULL DEFAULT 0,
    completed_at             TIMESTAMPTZ,
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credits_payments_org ON credits_payments (organization_id, created_at);
CREATE INDEX IF NOT EXISTS idx_credits_payments_status ON credits_payments (organization_id, status);
CREATE INDEX IF NOT EXISTS idx_credits_payments_provider ON credits_payments (provider_ref) WHERE provider_ref != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_webhook_events",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_webhook_events (
    event_id       TEXT PRIMARY KEY,
    payment_id     TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT '',
    failure_reason TEXT NOT NULL DEFAULT '',
    received_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credits_webhook_payment ON credits_webhook_events (payment_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_webhook_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_packages",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_packages (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    slug            TEXT NOT NULL DEFAULT '',
    credit_type     TEXT NOT NULL DEFAULT '',
    credits_granted BIGINT NOT NULL DEFAULT 0,
    price_cents     BIGINT NOT NULL DEFAULT 0,
    price_currency  TEXT NOT NULL DEFAULT '',
    kind            TEXT NOT NULL DEFAULT 'one_time',
    archived_at     TIMESTAMPTZ,
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_credits_packages_slug ON credits_packages (slug) WHERE archived_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_credits_packages_type ON credits_packages (credit_type);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_packages`)
				return err
			},
		},
	)
}
