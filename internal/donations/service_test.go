package donations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefbridge/fundledger/internal/ledger/ledgertest"
	"github.com/reliefbridge/fundledger/internal/testdb"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
)

func newTestService(t *testing.T) (Service, *ledgertest.Fixture) {
	t.Helper()
	f := ledgertest.New(t)
	svc, err := NewService(NewRepository(f.Conn), f.Engine, f.Client, nil, "USD")
	require.NoError(t, err)
	return svc, f
}

func TestRecordDonationCreditsAccountAndFund(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	budget := f.Account(t, enums.AccountKindUserBudget, "0", nil)
	fund := f.Account(t, enums.AccountKindFinancialFund, "100", nil)
	health := enums.CategoryHealth

	receipt, err := svc.RecordDonation(ctx, RecordInput{
		Donor:      "A. Donor",
		AccountID:  budget.ID,
		FundID:     fund.ID,
		Amount:     testdb.D("50"),
		Currency:   "eur",
		Category:   &health,
		RecordedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", receipt.Donation.Currency)
	assert.Equal(t, enums.TransactionSubtypeDonation, receipt.AccountEntry.Subtype)
	assert.Equal(t, budget.ID, receipt.AccountEntry.AccountID)
	assert.Equal(t, fund.ID, receipt.FundEntry.AccountID)
	assert.True(t, receipt.FundEntry.BaseAmount.Equal(testdb.D("100")))

	acct := f.Reload(t, budget.ID)
	assert.True(t, acct.TotalFund.Equal(testdb.D("100")))
	assert.True(t, acct.AvailableFund.Equal(testdb.D("100")))
	ledgertest.AssertIdentity(t, acct)

	fundAcct := f.Reload(t, fund.ID)
	assert.True(t, fundAcct.TotalFund.Equal(testdb.D("200")))
	assert.True(t, fundAcct.AvailableFund.Equal(testdb.D("200")))

	assert.True(t, f.Category(t, budget.ID, enums.CategoryHealth).Amount.Equal(testdb.D("100")))

	list, err := svc.ListDonations(ctx, fund.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A. Donor", list[0].Donor)
}

func TestRecordDonationRules(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	budget := f.Account(t, enums.AccountKindUserBudget, "0", nil)
	fund := f.Account(t, enums.AccountKindFinancialFund, "0", nil)
	valid := RecordInput{Donor: "d", AccountID: budget.ID, FundID: fund.ID, Amount: testdb.D("10"), RecordedBy: uuid.New()}

	cases := []struct {
		name   string
		mutate func(in *RecordInput)
		code   pkgerrors.Code
	}{
		{"no donor", func(in *RecordInput) { in.Donor = "" }, pkgerrors.CodeValidation},
		{"same account", func(in *RecordInput) { in.FundID = in.AccountID }, pkgerrors.CodeValidation},
		{"no recorder", func(in *RecordInput) { in.RecordedBy = uuid.Nil }, pkgerrors.CodeValidation},
		{"zero amount", func(in *RecordInput) { in.Amount = testdb.D("0") }, pkgerrors.CodeInvalidAmount},
		{"unknown currency", func(in *RecordInput) { in.Currency = "XYZ" }, pkgerrors.CodeUnknownCurrency},
		{"unknown fund", func(in *RecordInput) { in.FundID = uuid.New() }, pkgerrors.CodeUnknownAccount},
		{"unknown category", func(in *RecordInput) { c := enums.Category("space"); in.Category = &c }, pkgerrors.CodeUnknownCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := svc.RecordDonation(ctx, in)
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	var n int64
	require.NoError(t, f.Conn.Model(&models.Donation{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.True(t, f.Reload(t, budget.ID).TotalFund.IsZero())
}
