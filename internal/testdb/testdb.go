// Package testdb opens throwaway databases for repository and service tests.
package testdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/db"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/migrate"
)

// PostgresDSNEnv points integration tests at a disposable Postgres database.
const PostgresDSNEnv = "FUNDLEDGER_TEST_DB_DSN"

// schema mirrors pkg/migrate/migrations for SQLite. Amounts are TEXT so
// decimal values round-trip exactly.
var schema = []string{
	`CREATE TABLE currencies (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rate TEXT NOT NULL,
		is_base INTEGER NOT NULL DEFAULT 0,
		last_updated DATETIME NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE ledger_accounts (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		owner_ref TEXT,
		parent_id TEXT,
		currency TEXT NOT NULL,
		total_fund TEXT NOT NULL,
		used_fund TEXT NOT NULL,
		on_hold_fund TEXT NOT NULL,
		available_fund TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE currency_balances (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		total_fund TEXT NOT NULL,
		used_fund TEXT NOT NULL,
		on_hold_fund TEXT NOT NULL,
		available_fund TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_currency_balances_account_currency ON currency_balances (account_id, currency)`,
	`CREATE TABLE category_balances (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		category TEXT NOT NULL,
		total TEXT NOT NULL,
		used TEXT NOT NULL,
		on_hold TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_category_balances_account_category ON category_balances (account_id, category)`,
	`CREATE TABLE fund_transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		amount TEXT NOT NULL,
		base_amount TEXT NOT NULL,
		type TEXT NOT NULL,
		subtype TEXT NOT NULL,
		status TEXT NOT NULL,
		category TEXT,
		bucket TEXT,
		target_type TEXT,
		target_id TEXT,
		payment_sequence INTEGER,
		note TEXT,
		settled_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_fund_transactions_pending_hold ON fund_transactions (target_type, target_id) WHERE subtype = 'hold' AND status = 'pending'`,
	`CREATE TABLE allocations (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		target_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		category TEXT NOT NULL,
		initial_amount TEXT NOT NULL,
		funds_allocated TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_allocations_scope_target ON allocations (scope, target_id)`,
	`CREATE TABLE fund_release_requests (
		id TEXT PRIMARY KEY,
		allocation_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		target_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		status TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0,
		approved_at DATETIME,
		decided_by TEXT,
		decided_at DATETIME,
		reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE fund_transfer_requests (
		id TEXT PRIMARY KEY,
		from_account_id TEXT NOT NULL,
		to_account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		notes TEXT,
		requested_by TEXT NOT NULL,
		stage TEXT NOT NULL,
		approved_by TEXT,
		approved_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		fund_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		payee TEXT NOT NULL,
		method TEXT NOT NULL,
		notes TEXT,
		category TEXT,
		target_type TEXT,
		target_id TEXT,
		sequence INTEGER,
		recorded_by TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE donations (
		id TEXT PRIMARY KEY,
		donor TEXT NOT NULL,
		account_id TEXT NOT NULL,
		fund_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		category TEXT,
		target_type TEXT,
		target_id TEXT,
		recorded_by TEXT NOT NULL,
		created_at DATETIME
	)`,
}

// Open returns an isolated in-memory SQLite database with the ledger schema.
// The pool is pinned to one connection; code under test must route every
// query through the transaction it is running in.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: db.SilentLogger(), SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// Client wraps Open in a *db.Client.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}

// OpenPostgres migrates and returns the database named by FUNDLEDGER_TEST_DB_DSN,
// skipping the test when it is not set.
func OpenPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", PostgresDSNEnv)
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: db.SilentLogger(), SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	if err := migrate.Run(context.Background(), sqlDB, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// MustCurrency registers a currency row.
func MustCurrency(t *testing.T, conn *gorm.DB, code, rate string, base bool) *models.Currency {
	t.Helper()
	c := &models.Currency{
		Code:        code,
		Name:        code,
		Rate:        decimal.RequireFromString(rate),
		IsBase:      base,
		LastUpdated: Now(),
	}
	if err := conn.Create(c).Error; err != nil {
		t.Fatalf("create currency %s: %v", code, err)
	}
	return c
}

// MustAccount creates an empty account in the given currency.
func MustAccount(t *testing.T, conn *gorm.DB, kind enums.AccountKind, currency string) *models.LedgerAccount {
	t.Helper()
	acct := &models.LedgerAccount{
		Kind:          kind,
		Name:          string(kind) + "-" + uuid.NewString()[:8],
		Currency:      currency,
		TotalFund:     decimal.Zero,
		UsedFund:      decimal.Zero,
		OnHoldFund:    decimal.Zero,
		AvailableFund: decimal.Zero,
	}
	if err := conn.Create(acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}

// MustReload reads an account back from the database.
func MustReload(t *testing.T, conn *gorm.DB, id uuid.UUID) *models.LedgerAccount {
	t.Helper()
	var acct models.LedgerAccount
	if err := conn.First(&acct, "id = ?", id).Error; err != nil {
		t.Fatalf("reload account %s: %v", id, err)
	}
	return &acct
}

// D parses a decimal literal.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Now returns the current time in UTC, matching what services persist.
func Now() time.Time {
	return time.Now().UTC()
}
