// Package ledgertest builds a ledger engine over SQLite for workflow tests.
package ledgertest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/internal/currency"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/testdb"
	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/db"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

// Fixture is a wired ledger with USD as base and EUR at 0.5 per USD.
type Fixture struct {
	Client     *db.Client
	Conn       *gorm.DB
	Currencies currency.Service
	Engine     *ledger.Engine
	Ledger     ledger.Service
}

func New(t *testing.T) *Fixture {
	t.Helper()
	client, conn := testdb.Client(t)

	currencies, err := currency.NewService(currency.NewRepository(conn), client, logger.Nop())
	if err != nil {
		t.Fatalf("currency service: %v", err)
	}
	seeds := []config.SeedCurrency{{Code: "EUR", Name: "Euro", Rate: decimal.RequireFromString("0.5")}}
	if err := currencies.EnsureBase(context.Background(), "USD", seeds); err != nil {
		t.Fatalf("ensure base: %v", err)
	}

	repo := ledger.NewRepository(conn)
	engine, err := ledger.NewEngine(repo, currencies)
	if err != nil {
		t.Fatalf("ledger engine: %v", err)
	}
	svc, err := ledger.NewService(ledger.ServiceParams{
		Repo:              repo,
		Engine:            engine,
		Currencies:        currencies,
		TxRunner:          client,
		BaseCurrency:      "USD",
		BudgetPercentages: config.DefaultPolicy().BudgetPercentages,
	})
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	return &Fixture{Client: client, Conn: conn, Currencies: currencies, Engine: engine, Ledger: svc}
}

// Account creates an account of kind and deposits amount USD into it,
// earmarked for category when one is given.
func (f *Fixture) Account(t *testing.T, kind enums.AccountKind, amount string, category *enums.Category) *models.LedgerAccount {
	t.Helper()
	acct := testdb.MustAccount(t, f.Conn, kind, "USD")
	if amount != "" && amount != "0" {
		f.Deposit(t, acct.ID, amount, category)
	}
	return testdb.MustReload(t, f.Conn, acct.ID)
}

// Deposit adds amount USD to an account.
func (f *Fixture) Deposit(t *testing.T, accountID uuid.UUID, amount string, category *enums.Category) {
	t.Helper()
	_, err := f.Ledger.AddFund(context.Background(), ledger.FundInput{
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "USD",
		Category:  category,
	})
	if err != nil {
		t.Fatalf("deposit %s: %v", amount, err)
	}
}

// Reload reads an account back.
func (f *Fixture) Reload(t *testing.T, id uuid.UUID) *models.LedgerAccount {
	t.Helper()
	return testdb.MustReload(t, f.Conn, id)
}

// Category reads a category bucket, failing when it does not exist.
func (f *Fixture) Category(t *testing.T, accountID uuid.UUID, category enums.Category) *models.CategoryBalance {
	t.Helper()
	var row models.CategoryBalance
	if err := f.Conn.Where("account_id = ? AND category = ?", accountID, category).Take(&row).Error; err != nil {
		t.Fatalf("load %s bucket: %v", category, err)
	}
	return &row
}

// CountTransactions counts log entries for an account.
func (f *Fixture) CountTransactions(t *testing.T, accountID uuid.UUID) int64 {
	t.Helper()
	var n int64
	if err := f.Conn.Model(&models.FundTransaction{}).Where("account_id = ?", accountID).Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

// AssertIdentity fails unless total == used + onHold + available.
func AssertIdentity(t *testing.T, acct *models.LedgerAccount) {
	t.Helper()
	sum := acct.UsedFund.Add(acct.OnHoldFund).Add(acct.AvailableFund)
	if !acct.TotalFund.Equal(sum) {
		t.Fatalf("balance identity broken for %s: total=%s used=%s on_hold=%s available=%s",
			acct.ID, acct.TotalFund, acct.UsedFund, acct.OnHoldFund, acct.AvailableFund)
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
