package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool sized for the API's short transactional
// workload and verifies connectivity before handing it back.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Migrate applies the schema. Statements are idempotent so every process
// can run this at startup without coordination.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT true,
		is_frozen    BOOLEAN NOT NULL DEFAULT false,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS account_balances (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		currency   TEXT NOT NULL,
		balance    NUMERIC(20,4) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, currency)
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		account_id    TEXT PRIMARY KEY REFERENCES accounts(id),
		energy        INT NOT NULL DEFAULT 100,
		happiness     INT NOT NULL DEFAULT 100,
		company_id    BIGINT,
		last_shift_at TIMESTAMPTZ,
		last_meal_at  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS companies (
		id           BIGSERIAL PRIMARY KEY,
		name         TEXT NOT NULL,
		owner_id     TEXT NOT NULL REFERENCES accounts(id),
		currency     TEXT NOT NULL DEFAULT 'COIN',
		wage         NUMERIC(20,4) NOT NULL DEFAULT 0,
		productivity NUMERIC(20,4) NOT NULL DEFAULT 1,
		max_employees  INT NOT NULL DEFAULT 10,
		employee_count INT NOT NULL DEFAULT 0,
		status       TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS company_funds (
		company_id BIGINT NOT NULL REFERENCES companies(id),
		currency   TEXT NOT NULL,
		balance    NUMERIC(20,4) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (company_id, currency)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		position      BIGSERIAL PRIMARY KEY,
		tx_id         TEXT NOT NULL UNIQUE,
		sender_id     TEXT NOT NULL,
		sender_name   TEXT NOT NULL DEFAULT '',
		receiver_id   TEXT NOT NULL,
		receiver_name TEXT NOT NULL DEFAULT '',
		currency      TEXT NOT NULL,
		gross         NUMERIC(20,4) NOT NULL,
		tax           NUMERIC(20,4) NOT NULL,
		net           NUMERIC(20,4) NOT NULL,
		tx_type       TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		previous_hash TEXT NOT NULL,
		current_hash  TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_sender ON ledger_entries (sender_id, position DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_receiver ON ledger_entries (receiver_id, position DESC)`,
	`CREATE TABLE IF NOT EXISTS treasury (
		category   TEXT NOT NULL,
		currency   TEXT NOT NULL,
		amount     NUMERIC(20,4) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (category, currency)
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id         BIGSERIAL PRIMARY KEY,
		seller_id  TEXT NOT NULL REFERENCES accounts(id),
		item_code  TEXT NOT NULL,
		quality    INT NOT NULL DEFAULT 1,
		quantity   INT NOT NULL,
		unit_price NUMERIC(20,4) NOT NULL,
		currency   TEXT NOT NULL DEFAULT 'COIN',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS inventories (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		item_code  TEXT NOT NULL,
		quality    INT NOT NULL DEFAULT 1,
		quantity   INT NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, item_code, quality)
	)`,
	`CREATE TABLE IF NOT EXISTS scheduler_lock (
		name             TEXT PRIMARY KEY,
		processing       BOOLEAN NOT NULL DEFAULT false,
		holder           TEXT NOT NULL DEFAULT '',
		locked_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_epoch       BIGINT NOT NULL DEFAULT 0,
		last_duration_ms BIGINT NOT NULL DEFAULT 0,
		failures         INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS world_stats (
		id             BOOLEAN PRIMARY KEY DEFAULT true,
		money_supply   JSONB NOT NULL DEFAULT '{}'::jsonb,
		accounts       INT NOT NULL DEFAULT 0,
		treasury_total NUMERIC(20,4) NOT NULL DEFAULT 0,
		computed_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT world_stats_singleton CHECK (id)
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		account_id TEXT NOT NULL,
		key        TEXT NOT NULL,
		action     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, key)
	)`,
}
