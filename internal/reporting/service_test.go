package reporting

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/ledger/ledgertest"
	"github.com/reliefbridge/fundledger/internal/testdb"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
)

func newTestService(t *testing.T) (Service, *ledgertest.Fixture) {
	t.Helper()
	f := ledgertest.New(t)
	svc, err := NewService(NewRepository(f.Conn), f.Ledger, f.Currencies, testdb.D("0.05"))
	require.NoError(t, err)
	return svc, f
}

func spend(t *testing.T, f *ledgertest.Fixture, accountID uuid.UUID, amount string, category enums.Category) {
	t.Helper()
	_, err := f.Ledger.UseFund(context.Background(), ledger.FundInput{
		AccountID: accountID,
		Amount:    testdb.D(amount),
		Currency:  "USD",
		Category:  &category,
	})
	require.NoError(t, err)
}

func rules(report *Report) []Rule {
	out := make([]Rule, 0, len(report.Violations))
	for _, v := range report.Violations {
		out = append(out, v.Rule)
	}
	return out
}

func TestScopePercentagesZeroWithoutUse(t *testing.T) {
	svc, f := newTestService(t)
	acct := f.Account(t, enums.AccountKindFinancialFund, "1000", ledgertest.Ptr(enums.CategoryHealth))

	pct, err := svc.ScopePercentages(context.Background(), acct.ID)
	require.NoError(t, err)
	require.Len(t, pct, len(enums.Categories()))
	for category, value := range pct {
		assert.True(t, value.IsZero(), "%s should be zero, got %s", category, value)
	}
}

func TestScopePercentagesSplitUsedFund(t *testing.T) {
	svc, f := newTestService(t)
	acct := f.Account(t, enums.AccountKindFinancialFund, "0", nil)
	f.Deposit(t, acct.ID, "600", ledgertest.Ptr(enums.CategoryHealth))
	f.Deposit(t, acct.ID, "400", ledgertest.Ptr(enums.CategoryEducation))
	spend(t, f, acct.ID, "200", enums.CategoryHealth)
	spend(t, f, acct.ID, "100", enums.CategoryEducation)

	pct, err := svc.ScopePercentages(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "66.67", pct[enums.CategoryHealth].StringFixed(2))
	assert.Equal(t, "33.33", pct[enums.CategoryEducation].StringFixed(2))
	assert.True(t, pct[enums.CategoryShelter].IsZero())
}

func TestScopePercentagesUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ScopePercentages(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnknownAccount), "got %v", err)
}

func TestDashboardCombinesViews(t *testing.T) {
	svc, f := newTestService(t)
	acct := f.Account(t, enums.AccountKindFinancialFund, "1000", ledgertest.Ptr(enums.CategoryHealth))
	spend(t, f, acct.ID, "250", enums.CategoryHealth)

	dash, err := svc.Dashboard(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, dash.Account.ID)
	assert.True(t, dash.Balance.Total.Equal(testdb.D("1000")))
	assert.True(t, dash.Balance.Used.Equal(testdb.D("250")))
	require.Len(t, dash.Currencies, 1)
	assert.True(t, dash.Categories[enums.CategoryHealth].Available.Equal(testdb.D("750")))
	assert.Equal(t, "100.00", dash.ScopePercentages[enums.CategoryHealth].StringFixed(2))
}

func TestReconcileCleanLedger(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	acct := f.Account(t, enums.AccountKindFinancialFund, "1000", ledgertest.Ptr(enums.CategoryHealth))
	_, err := f.Ledger.AddFund(ctx, ledger.FundInput{AccountID: acct.ID, Amount: testdb.D("100"), Currency: "EUR"})
	require.NoError(t, err)
	spend(t, f, acct.ID, "300", enums.CategoryHealth)

	report, err := svc.Reconcile(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, report.OK(), "unexpected violations: %v", report.Violations)
	assert.Equal(t, acct.ID, report.AccountID)
}

func TestReconcileCleanAfterHoldsFundedOutsideTheirTag(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	hold := func(accountID uuid.UUID, target, amount string, category *enums.Category) {
		t.Helper()
		targetType := enums.TargetTypeCase
		err := f.Client.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := f.Engine.Post(ctx, tx, ledger.Entry{
				AccountID:  accountID,
				Subtype:    enums.TransactionSubtypeHold,
				Amount:     testdb.D(amount),
				Category:   category,
				TargetType: &targetType,
				TargetID:   &target,
			})
			return err
		})
		require.NoError(t, err)
	}

	budget := f.Account(t, enums.AccountKindUserBudget, "100", nil)
	f.Deposit(t, budget.ID, "900", ledgertest.Ptr(enums.CategoryHealth))
	hold(budget.ID, "a", "80", ledgertest.Ptr(enums.CategoryEducation))
	hold(budget.ID, "b", "400", nil)

	foreign := testdb.MustAccount(t, f.Conn, enums.AccountKindUserBudget, "USD")
	_, err := f.Ledger.AddFund(ctx, ledger.FundInput{AccountID: foreign.ID, Amount: testdb.D("100"), Currency: "EUR"})
	require.NoError(t, err)
	hold(foreign.ID, "c", "50", nil)

	for _, id := range []uuid.UUID{budget.ID, foreign.ID} {
		report, err := svc.Reconcile(ctx, id)
		require.NoError(t, err)
		assert.True(t, report.OK(), "unexpected violations: %v", report.Violations)
	}
}

func TestReconcileDetectsTamperedTotals(t *testing.T) {
	svc, f := newTestService(t)
	acct := f.Account(t, enums.AccountKindFinancialFund, "1000", nil)

	require.NoError(t, f.Conn.Model(&models.LedgerAccount{}).
		Where("id = ?", acct.ID).
		Update("total_fund", testdb.D("999")).Error)

	report, err := svc.Reconcile(context.Background(), acct.ID)
	require.NoError(t, err)
	got := rules(report)
	assert.Contains(t, got, RuleBalanceIdentity)
	assert.Contains(t, got, RuleCurrencyReconciliation)
	assert.Contains(t, got, RuleAccountReplay)
	assert.NotContains(t, got, RuleCurrencyReplay)
}

func TestReconcileDetectsOverEarmarkedBucket(t *testing.T) {
	svc, f := newTestService(t)
	acct := f.Account(t, enums.AccountKindFinancialFund, "500", ledgertest.Ptr(enums.CategoryRelief))

	require.NoError(t, f.Conn.Model(&models.CategoryBalance{}).
		Where("account_id = ? AND category = ?", acct.ID, enums.CategoryRelief).
		Update("amount", testdb.D("800")).Error)

	report, err := svc.Reconcile(context.Background(), acct.ID)
	require.NoError(t, err)
	got := rules(report)
	assert.Contains(t, got, RuleCategorySum)
	assert.Contains(t, got, RuleCategoryReplay)
	for _, v := range report.Violations {
		if v.Rule == RuleCategoryReplay {
			assert.Equal(t, enums.CategoryRelief, v.Category)
			assert.Equal(t, "available", v.Field)
			assert.Contains(t, v.String(), "relief.available")
		}
	}
}
