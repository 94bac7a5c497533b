package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefbridge/fundledger/internal/currency"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/testdb"
	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/db"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

// Runs only when FUNDLEDGER_TEST_DB_DSN points at a disposable database.
func TestConcurrentUseFundNeverOverdraws(t *testing.T) {
	conn := testdb.OpenPostgres(t)
	ctx := context.Background()
	client := db.NewFromConn(conn)
	runner := db.NewRetryingRunner(client, 3, 0)

	currencies, err := currency.NewService(currency.NewRepository(conn), runner, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, currencies.EnsureBase(ctx, "USD", nil))

	repo := ledger.NewRepository(conn)
	engine, err := ledger.NewEngine(repo, currencies)
	require.NoError(t, err)
	svc, err := ledger.NewService(ledger.ServiceParams{
		Repo:              repo,
		Engine:            engine,
		Currencies:        currencies,
		TxRunner:          runner,
		BaseCurrency:      "USD",
		BudgetPercentages: config.DefaultPolicy().BudgetPercentages,
	})
	require.NoError(t, err)

	acct, err := svc.CreateAccount(ctx, ledger.CreateAccountInput{Kind: enums.AccountKindRegionAccount, Name: "race"})
	require.NoError(t, err)
	_, err = svc.AddFund(ctx, ledger.FundInput{AccountID: acct.ID, Amount: testdb.D("100"), Currency: "USD"})
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UseFund(ctx, ledger.FundInput{AccountID: acct.ID, Amount: testdb.D("30"), Currency: "USD"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	got, err := svc.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.AvailableFund.Equal(testdb.D("10")))
	assert.True(t, got.UsedFund.Equal(testdb.D("90")))
}
