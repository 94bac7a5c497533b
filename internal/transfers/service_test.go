package transfers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefbridge/fundledger/internal/ledger/ledgertest"
	"github.com/reliefbridge/fundledger/internal/testdb"
	"github.com/reliefbridge/fundledger/pkg/auth"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
)

var (
	admin = auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	staff = auth.Actor{UserID: uuid.New(), Role: enums.RoleStaff}
)

func newTestService(t *testing.T) (Service, *ledgertest.Fixture) {
	t.Helper()
	f := ledgertest.New(t)
	svc, err := NewService(ServiceParams{
		Repo:         NewRepository(f.Conn),
		Engine:       f.Engine,
		Currencies:   f.Currencies,
		TxRunner:     f.Client,
		BaseCurrency: "USD",
	})
	require.NoError(t, err)
	return svc, f
}

func request(t *testing.T, svc Service, from, to *models.LedgerAccount, amount string) *models.TransferRequest {
	t.Helper()
	req, err := svc.RequestTransfer(context.Background(), RequestInput{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        testdb.D(amount),
		RequestedBy:   staff.UserID,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStagePendingAssessment, req.Stage)
	return req
}

func TestApproveTransferMovesFundsOnce(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	f1 := f.Account(t, enums.AccountKindFinancialFund, "1000", nil)
	f2 := f.Account(t, enums.AccountKindFinancialFund, "500", nil)

	req := request(t, svc, f1, f2, "300")
	// creating the request moves nothing
	assert.True(t, f.Reload(t, f1.ID).TotalFund.Equal(testdb.D("1000")))

	_, err := svc.AdvanceStage(ctx, req.ID, enums.TransferStageOnGoing, staff)
	require.NoError(t, err)

	approved, err := svc.AdvanceStage(ctx, req.ID, enums.TransferStageApproved, admin)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStageApproved, approved.Stage)
	require.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, admin.UserID, *approved.ApprovedBy)

	src, dst := f.Reload(t, f1.ID), f.Reload(t, f2.ID)
	assert.True(t, src.TotalFund.Equal(testdb.D("700")))
	assert.True(t, src.UsedFund.Equal(testdb.D("300")))
	assert.True(t, dst.TotalFund.Equal(testdb.D("800")))
	assert.True(t, src.TotalFund.Add(dst.TotalFund).Equal(testdb.D("1500")))
	ledgertest.AssertIdentity(t, src)
	ledgertest.AssertIdentity(t, dst)

	again, err := svc.AdvanceStage(ctx, req.ID, enums.TransferStageApproved, admin)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStageApproved, again.Stage)

	src2, dst2 := f.Reload(t, f1.ID), f.Reload(t, f2.ID)
	assert.True(t, src2.TotalFund.Equal(src.TotalFund))
	assert.True(t, dst2.TotalFund.Equal(dst.TotalFund))
	assert.Equal(t, src.Version, src2.Version)
	assert.Equal(t, int64(2), f.CountTransactions(t, f1.ID))
}

func TestApprovalRequiresAdministrator(t *testing.T) {
	svc, f := newTestService(t)
	f1 := f.Account(t, enums.AccountKindFinancialFund, "100", nil)
	f2 := f.Account(t, enums.AccountKindFinancialFund, "0", nil)
	req := request(t, svc, f1, f2, "50")

	_, err := svc.AdvanceStage(context.Background(), req.ID, enums.TransferStageApproved, staff)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.True(t, f.Reload(t, f1.ID).TotalFund.Equal(testdb.D("100")))
}

func TestLeavingApprovedIsRefused(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	f1 := f.Account(t, enums.AccountKindFinancialFund, "100", nil)
	f2 := f.Account(t, enums.AccountKindFinancialFund, "0", nil)
	req := request(t, svc, f1, f2, "50")

	_, err := svc.AdvanceStage(ctx, req.ID, enums.TransferStageApproved, admin)
	require.NoError(t, err)
	_, err = svc.AdvanceStage(ctx, req.ID, enums.TransferStageOnGoing, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestFailedApprovalRollsBack(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	f1 := f.Account(t, enums.AccountKindFinancialFund, "100", nil)
	f2 := f.Account(t, enums.AccountKindFinancialFund, "10", nil)

	// transfer_out takes the amount from available twice, so 60 of 100 cannot go
	req := request(t, svc, f1, f2, "60")
	_, err := svc.AdvanceStage(ctx, req.ID, enums.TransferStageApproved, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds), "got %v", err)

	stored, err := svc.GetTransfer(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStagePendingAssessment, stored.Stage)
	assert.Nil(t, stored.ApprovedAt)
	assert.True(t, f.Reload(t, f1.ID).TotalFund.Equal(testdb.D("100")))
	assert.True(t, f.Reload(t, f2.ID).TotalFund.Equal(testdb.D("10")))
	assert.Equal(t, int64(1), f.CountTransactions(t, f2.ID))
}

func TestRequestTransferValidation(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	f1 := f.Account(t, enums.AccountKindFinancialFund, "100", nil)
	f2 := f.Account(t, enums.AccountKindFinancialFund, "0", nil)

	_, err := svc.RequestTransfer(ctx, RequestInput{FromAccountID: f1.ID, ToAccountID: f1.ID, Amount: testdb.D("5"), RequestedBy: staff.UserID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.RequestTransfer(ctx, RequestInput{FromAccountID: f1.ID, ToAccountID: f2.ID, Amount: testdb.D("-5"), RequestedBy: staff.UserID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidAmount))

	_, err = svc.RequestTransfer(ctx, RequestInput{FromAccountID: f1.ID, ToAccountID: uuid.New(), Amount: testdb.D("5"), RequestedBy: staff.UserID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnknownAccount))

	_, err = svc.RequestTransfer(ctx, RequestInput{FromAccountID: f1.ID, ToAccountID: f2.ID, Amount: testdb.D("5"), Currency: "JPY", RequestedBy: staff.UserID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnknownCurrency))

	_, err = svc.AdvanceStage(ctx, uuid.New(), enums.TransferStageOnGoing, staff)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.AdvanceStage(ctx, uuid.New(), "Done", admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListTransfersByAccount(t *testing.T) {
	svc, f := newTestService(t)
	f1 := f.Account(t, enums.AccountKindFinancialFund, "100", nil)
	f2 := f.Account(t, enums.AccountKindFinancialFund, "0", nil)
	f3 := f.Account(t, enums.AccountKindFinancialFund, "0", nil)
	request(t, svc, f1, f2, "5")
	request(t, svc, f3, f2, "5")

	out, err := svc.ListTransfers(context.Background(), Filter{AccountID: &f1.ID})
	require.NoError(t, err)
	require.Len(t, out, 1)

	stage := enums.TransferStagePendingAssessment
	out, err = svc.ListTransfers(context.Background(), Filter{AccountID: &f2.ID, Stage: &stage})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
