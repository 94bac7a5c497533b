package ledger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return conn, mock
}

func accountRow(id uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "kind", "name", "currency", "total_fund", "used_fund", "on_hold_fund", "available_fund", "version"}).
		AddRow(id.String(), "financial_fund", "fund", "USD", "0", "0", "0", "0", 3)
}

type noCurrencies struct{}

func (noCurrencies) Lookup(context.Context, *gorm.DB, string) (*models.Currency, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnknownCurrency, "unused")
}

func TestLockAccountsLocksInIDOrder(t *testing.T) {
	conn, mock := newMockDB(t)
	engine, err := NewEngine(NewRepository(conn), noCurrencies{})
	require.NoError(t, err)

	low, high := uuid.New(), uuid.New()
	if bytes.Compare(low[:], high[:]) > 0 {
		low, high = high, low
	}

	lockQuery := `SELECT \* FROM "ledger_accounts" WHERE id = \$1 LIMIT \$2 FOR UPDATE`
	mock.ExpectQuery(lockQuery).WithArgs(low, 1).WillReturnRows(accountRow(low))
	mock.ExpectQuery(lockQuery).WithArgs(high, 1).WillReturnRows(accountRow(high))

	locked, err := engine.LockAccounts(context.Background(), conn, high, low, high)
	require.NoError(t, err)
	assert.Len(t, locked, 2)
	assert.Equal(t, int64(3), locked[low].Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAccountsUnknownAccount(t *testing.T) {
	conn, mock := newMockDB(t)
	engine, err := NewEngine(NewRepository(conn), noCurrencies{})
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = engine.LockAccounts(context.Background(), conn, id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnknownAccount))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAccountBalancesVersionGuard(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRepository(conn)

	acct := &models.LedgerAccount{
		ID:            uuid.New(),
		TotalFund:     decimal.NewFromInt(10),
		UsedFund:      decimal.Zero,
		OnHoldFund:    decimal.Zero,
		AvailableFund: decimal.NewFromInt(10),
	}
	update := `UPDATE "ledger_accounts" SET .* WHERE id = \$\d+ AND version = \$\d+`
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateAccountBalances(context.Background(), acct, 4, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateAccountBalances(context.Background(), acct, 4, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistReportsConcurrencyConflict(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRepository(conn)

	acct := &models.LedgerAccount{
		ID:            uuid.New(),
		Kind:          enums.AccountKindFinancialFund,
		TotalFund:     decimal.Zero,
		UsedFund:      decimal.Zero,
		OnHoldFund:    decimal.Zero,
		AvailableFund: decimal.Zero,
		Version:       7,
	}
	row := &models.CurrencyBalance{ID: uuid.New(), AccountID: acct.ID, Currency: "USD"}
	mock.ExpectExec(`UPDATE "currency_balances"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "ledger_accounts"`).WillReturnResult(sqlmock.NewResult(0, 0))

	d := postShifts[enums.TransactionSubtypeDeposit].delta(decimal.NewFromInt(5))
	err := persist(context.Background(), repo, acct, row, nil, d, time.Now().UTC())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}
