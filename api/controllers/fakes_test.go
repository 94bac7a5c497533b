package controllers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/internal/holds"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/payments"
	"github.com/reliefbridge/fundledger/internal/requirements"
	"github.com/reliefbridge/fundledger/internal/transfers"
	"github.com/reliefbridge/fundledger/pkg/auth"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/pagination"
)

var errNotStubbed = errors.New("not stubbed")

type fakeLedger struct {
	getAccountFn func(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error)
	addFundFn    func(ctx context.Context, input ledger.FundInput) (*models.FundTransaction, error)
	balanceFn    func(ctx context.Context, accountID uuid.UUID, currency string) (*ledger.Balance, error)
}

func (f fakeLedger) CreateAccount(context.Context, ledger.CreateAccountInput) (*models.LedgerAccount, error) {
	return nil, errNotStubbed
}

func (f fakeLedger) GetAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error) {
	if f.getAccountFn == nil {
		return nil, errNotStubbed
	}
	return f.getAccountFn(ctx, id)
}

func (f fakeLedger) ListAccounts(context.Context, ledger.AccountFilter) ([]models.LedgerAccount, error) {
	return nil, errNotStubbed
}

func (f fakeLedger) DeleteAccount(context.Context, uuid.UUID) error {
	return errNotStubbed
}

func (f fakeLedger) AddFund(ctx context.Context, input ledger.FundInput) (*models.FundTransaction, error) {
	if f.addFundFn == nil {
		return nil, errNotStubbed
	}
	return f.addFundFn(ctx, input)
}

func (f fakeLedger) UseFund(context.Context, ledger.FundInput) (*models.FundTransaction, error) {
	return nil, errNotStubbed
}

func (f fakeLedger) GetBalance(ctx context.Context, accountID uuid.UUID, currency string) (*ledger.Balance, error) {
	if f.balanceFn == nil {
		return nil, errNotStubbed
	}
	return f.balanceFn(ctx, accountID, currency)
}

func (f fakeLedger) ListCurrencyBalances(context.Context, uuid.UUID) ([]ledger.Balance, error) {
	return nil, errNotStubbed
}

func (f fakeLedger) GetCategoryBalances(context.Context, uuid.UUID) (map[enums.Category]ledger.CategoryView, error) {
	return nil, errNotStubbed
}

func (f fakeLedger) ListTransactions(context.Context, uuid.UUID, pagination.Params) (pagination.Page[models.FundTransaction], error) {
	return pagination.Page[models.FundTransaction]{}, errNotStubbed
}

type fakeHolds struct {
	commitFn func(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error)
}

func (f fakeHolds) Hold(context.Context, holds.HoldInput) (*models.FundTransaction, error) {
	return nil, errNotStubbed
}

func (f fakeHolds) Commit(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error) {
	return f.commitFn(ctx, scope, targetID)
}

func (f fakeHolds) Reverse(context.Context, enums.AllocationScope, string) (*models.FundTransaction, error) {
	return nil, errNotStubbed
}

func (f fakeHolds) Settle(context.Context, *gorm.DB, enums.AllocationScope, string, enums.TransactionStatus) (*models.FundTransaction, error) {
	return nil, errNotStubbed
}

type fakeTransfers struct {
	advanceFn func(ctx context.Context, id uuid.UUID, stage enums.TransferStage, actor auth.Actor) (*models.TransferRequest, error)
}

func (f fakeTransfers) RequestTransfer(context.Context, transfers.RequestInput) (*models.TransferRequest, error) {
	return nil, errNotStubbed
}

func (f fakeTransfers) AdvanceStage(ctx context.Context, id uuid.UUID, stage enums.TransferStage, actor auth.Actor) (*models.TransferRequest, error) {
	return f.advanceFn(ctx, id, stage, actor)
}

func (f fakeTransfers) GetTransfer(context.Context, uuid.UUID) (*models.TransferRequest, error) {
	return nil, errNotStubbed
}

func (f fakeTransfers) ListTransfers(context.Context, transfers.Filter) ([]models.TransferRequest, error) {
	return nil, errNotStubbed
}

type fakePayments struct {
	recordFn func(ctx context.Context, input payments.RecordInput, actor auth.Actor) (*payments.Receipt, error)
}

func (f fakePayments) RecordPayment(ctx context.Context, input payments.RecordInput, actor auth.Actor) (*payments.Receipt, error) {
	return f.recordFn(ctx, input, actor)
}

func (f fakePayments) GetPayment(context.Context, uuid.UUID) (*models.Payment, error) {
	return nil, errNotStubbed
}

func (f fakePayments) ListPayments(context.Context, uuid.UUID) ([]models.Payment, error) {
	return nil, errNotStubbed
}

type fakeProcessor struct {
	processFn func(ctx context.Context, id requirements.ID, req requirements.Request) (*requirements.Result, error)
}

func (f fakeProcessor) Requirements() []requirements.ID {
	return []requirements.ID{requirements.Approve, requirements.HoldBudget}
}

func (f fakeProcessor) Process(ctx context.Context, id requirements.ID, req requirements.Request) (*requirements.Result, error) {
	return f.processFn(ctx, id, req)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
