package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefbridge/fundledger/internal/currency"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/requirements"
	"github.com/reliefbridge/fundledger/internal/testdb"
	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		Ledger: config.LedgerConfig{
			BaseCurrency:     "USD",
			ReconcileEpsilon: "0.05",
			ConflictRetries:  2,
			ConflictBackoff:  time.Millisecond,
		},
	}
}

func TestBuildWiresServicesEndToEnd(t *testing.T) {
	client, _ := testdb.Client(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	svc, err := Build(ctx, testConfig(), logger.Nop(), client, metrics.NewLedgerMetrics(reg))
	require.NoError(t, err)

	base, err := svc.Currencies.Base(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", base.Code)

	_, err = svc.Currencies.Upsert(ctx, currencyInput("EUR", "0.5"))
	require.NoError(t, err)

	budget, err := svc.Ledger.CreateAccount(ctx, ledger.CreateAccountInput{Kind: enums.AccountKindUserBudget, Name: "Officer budget"})
	require.NoError(t, err)
	region, err := svc.Ledger.CreateAccount(ctx, ledger.CreateAccountInput{Kind: enums.AccountKindRegionAccount, Name: "North"})
	require.NoError(t, err)

	_, err = svc.Ledger.AddFund(ctx, ledger.FundInput{AccountID: budget.ID, Amount: testdb.D("100"), Currency: "EUR"})
	require.NoError(t, err)

	health := enums.CategoryHealth
	req := requirements.Request{
		Scope:     enums.AllocationScopeCase,
		TargetID:  "case-1",
		Actor:     uuid.New(),
		BudgetID:  budget.ID,
		AccountID: region.ID,
		Amount:    testdb.D("50"),
		Category:  &health,
	}
	_, err = svc.Requirements.Process(ctx, requirements.HoldBudget, req)
	require.NoError(t, err)

	bal, err := svc.Ledger.GetBalance(ctx, budget.ID, "")
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(testdb.D("200")))
	assert.True(t, bal.OnHold.Equal(testdb.D("50")))
	assert.True(t, bal.Available.Equal(testdb.D("150")))

	report, err := svc.Reporting.Reconcile(ctx, budget.ID)
	require.NoError(t, err)
	assert.True(t, report.OK(), "violations: %v", report.Violations)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "fundledger_ledger_mutations_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildRejectsMissingPolicyFile(t *testing.T) {
	client, _ := testdb.Client(t)
	cfg := testConfig()
	cfg.Ledger.PolicyFile = "/does/not/exist.yaml"

	_, err := Build(context.Background(), cfg, logger.Nop(), client, nil)
	require.Error(t, err)
}

func currencyInput(code, rate string) currency.UpsertInput {
	return currency.UpsertInput{Code: code, Name: code, Rate: testdb.D(rate)}
}
