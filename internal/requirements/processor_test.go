package requirements

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/internal/allocations"
	"github.com/reliefbridge/fundledger/internal/holds"
	"github.com/reliefbridge/fundledger/internal/testdb"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

type fakeHolds struct {
	holdFn    func(ctx context.Context, input holds.HoldInput) (*models.FundTransaction, error)
	reverseFn func(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error)
	settleFn  func(ctx context.Context, tx *gorm.DB, scope enums.AllocationScope, targetID string, outcome enums.TransactionStatus) (*models.FundTransaction, error)
}

func (f *fakeHolds) Hold(ctx context.Context, input holds.HoldInput) (*models.FundTransaction, error) {
	return f.holdFn(ctx, input)
}

func (f *fakeHolds) Commit(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error) {
	return f.settleFn(ctx, nil, scope, targetID, enums.TransactionStatusCompleted)
}

func (f *fakeHolds) Reverse(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error) {
	return f.reverseFn(ctx, scope, targetID)
}

func (f *fakeHolds) Settle(ctx context.Context, tx *gorm.DB, scope enums.AllocationScope, targetID string, outcome enums.TransactionStatus) (*models.FundTransaction, error) {
	return f.settleFn(ctx, tx, scope, targetID, outcome)
}

type fakeAllocations struct {
	allocations.Service
	allocateTxFn func(ctx context.Context, tx *gorm.DB, input allocations.AllocateInput) (*models.Allocation, error)
	releaseFn    func(ctx context.Context, input allocations.ReleaseInput) (*models.ReleaseRequest, error)
}

func (f *fakeAllocations) AllocateTx(ctx context.Context, tx *gorm.DB, input allocations.AllocateInput) (*models.Allocation, error) {
	return f.allocateTxFn(ctx, tx, input)
}

func (f *fakeAllocations) Allocate(ctx context.Context, input allocations.AllocateInput) (*models.Allocation, error) {
	return f.allocateTxFn(ctx, nil, input)
}

func (f *fakeAllocations) RequestRelease(ctx context.Context, input allocations.ReleaseInput) (*models.ReleaseRequest, error) {
	return f.releaseFn(ctx, input)
}

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(nil)
}

func newProcessor(t *testing.T, h *fakeHolds, a *fakeAllocations) (*Processor, *fakeTx) {
	t.Helper()
	tx := &fakeTx{}
	p, err := NewProcessor(h, a, tx, nil, logger.Nop())
	require.NoError(t, err)
	return p, tx
}

func TestRequirementsAreRegistered(t *testing.T) {
	p, _ := newProcessor(t, &fakeHolds{}, &fakeAllocations{})
	assert.Equal(t, []ID{Allocate, Approve, HoldBudget, Reject, RequestRelease}, p.Requirements())
}

func TestUnknownRequirement(t *testing.T) {
	p, _ := newProcessor(t, &fakeHolds{}, &fakeAllocations{})
	_, err := p.Process(context.Background(), "requirement_7", Request{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, p.Requirements(), details["known"])
}

func TestHoldBudgetDispatch(t *testing.T) {
	budget := uuid.New()
	var got holds.HoldInput
	h := &fakeHolds{holdFn: func(_ context.Context, input holds.HoldInput) (*models.FundTransaction, error) {
		got = input
		return &models.FundTransaction{Status: enums.TransactionStatusPending}, nil
	}}
	p, _ := newProcessor(t, h, &fakeAllocations{})

	result, err := p.Process(context.Background(), " HOLD_BUDGET ", Request{
		Scope:    enums.AllocationScopeCase,
		TargetID: "case-1",
		BudgetID: budget,
		Amount:   testdb.D("25"),
	})
	require.NoError(t, err)
	assert.Equal(t, HoldBudget, result.Requirement)
	assert.Equal(t, budget, got.BudgetID)
	assert.Equal(t, "case-1", got.TargetID)
	assert.True(t, got.Amount.Equal(testdb.D("25")))
}

func TestApproveCommitsAndAllocatesInOneTransaction(t *testing.T) {
	region := uuid.New()
	var order []string
	h := &fakeHolds{settleFn: func(_ context.Context, _ *gorm.DB, scope enums.AllocationScope, targetID string, outcome enums.TransactionStatus) (*models.FundTransaction, error) {
		order = append(order, "settle")
		assert.Equal(t, enums.TransactionStatusCompleted, outcome)
		return &models.FundTransaction{Status: outcome}, nil
	}}
	a := &fakeAllocations{allocateTxFn: func(_ context.Context, _ *gorm.DB, input allocations.AllocateInput) (*models.Allocation, error) {
		order = append(order, "allocate")
		assert.Equal(t, region, input.AccountID)
		return &models.Allocation{AccountID: input.AccountID, FundsAllocated: input.Amount}, nil
	}}
	p, tx := newProcessor(t, h, a)

	result, err := p.Process(context.Background(), Approve, Request{
		Scope:     enums.AllocationScopeProject,
		TargetID:  "p-1",
		AccountID: region,
		Amount:    testdb.D("900"),
		Category:  ptr(enums.CategoryShelter),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tx.calls)
	assert.Equal(t, []string{"settle", "allocate"}, order)
	require.NotNil(t, result.Transaction)
	require.NotNil(t, result.Allocation)
}

func TestApproveFailsWhenAllocationFails(t *testing.T) {
	h := &fakeHolds{settleFn: func(context.Context, *gorm.DB, enums.AllocationScope, string, enums.TransactionStatus) (*models.FundTransaction, error) {
		return &models.FundTransaction{}, nil
	}}
	a := &fakeAllocations{allocateTxFn: func(context.Context, *gorm.DB, allocations.AllocateInput) (*models.Allocation, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateAllocation, "dup")
	}}
	p, _ := newProcessor(t, h, a)
	req := Request{Scope: enums.AllocationScopeCase, TargetID: "c", AccountID: uuid.New(), Amount: testdb.D("40"), Category: ptr(enums.CategoryHealth)}

	_, err := p.Process(context.Background(), Approve, req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicateAllocation))

	req.Category = nil
	_, err = p.Process(context.Background(), Approve, req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApproveWithoutAllocationDataOnlyCommits(t *testing.T) {
	h := &fakeHolds{settleFn: func(_ context.Context, _ *gorm.DB, _ enums.AllocationScope, _ string, outcome enums.TransactionStatus) (*models.FundTransaction, error) {
		return &models.FundTransaction{Status: outcome}, nil
	}}
	a := &fakeAllocations{allocateTxFn: func(context.Context, *gorm.DB, allocations.AllocateInput) (*models.Allocation, error) {
		t.Fatalf("allocation must not be recorded without an account and amount")
		return nil, nil
	}}
	p, tx := newProcessor(t, h, a)

	cases := map[string]Request{
		"no account": {Scope: enums.AllocationScopeCase, TargetID: "c", Amount: testdb.D("10")},
		"no amount":  {Scope: enums.AllocationScopeCase, TargetID: "c", AccountID: uuid.New()},
		"bare":       {Scope: enums.AllocationScopeCase, TargetID: "c"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := p.Process(context.Background(), Approve, req)
			require.NoError(t, err)
			require.NotNil(t, result.Transaction)
			assert.Equal(t, enums.TransactionStatusCompleted, result.Transaction.Status)
			assert.Nil(t, result.Allocation)
		})
	}
	assert.Equal(t, len(cases), tx.calls)
}

func TestRejectAndReleaseDispatch(t *testing.T) {
	actor := uuid.New()
	h := &fakeHolds{reverseFn: func(context.Context, enums.AllocationScope, string) (*models.FundTransaction, error) {
		return nil, nil
	}}
	a := &fakeAllocations{releaseFn: func(_ context.Context, input allocations.ReleaseInput) (*models.ReleaseRequest, error) {
		if input.RequestedBy != actor {
			return nil, errors.New("wrong requester")
		}
		return &models.ReleaseRequest{Status: enums.ReleaseStatusPending}, nil
	}}
	p, _ := newProcessor(t, h, a)

	result, err := p.Process(context.Background(), Reject, Request{Scope: enums.AllocationScopeCase, TargetID: "c"})
	require.NoError(t, err)
	assert.Nil(t, result.Transaction)

	result, err = p.Process(context.Background(), RequestRelease, Request{Scope: enums.AllocationScopeCase, TargetID: "c", Actor: actor, Amount: testdb.D("5")})
	require.NoError(t, err)
	require.NotNil(t, result.Release)
}

func ptr[T any](v T) *T { return &v }
