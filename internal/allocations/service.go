package allocations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/db"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/metrics"
	"github.com/reliefbridge/fundledger/pkg/money"
)

const allocationIndex = "ux_allocations_scope_target"

// State is the derived lifecycle position of a case or project allocation.
type State string

const (
	StateNoAllocation      State = "no_allocation"
	StateAllocated         State = "allocated"
	StatePartiallyReleased State = "partially_released"
	StateExhausted         State = "exhausted"
)

// minimumRelease is the smallest amount a release can draw.
var minimumRelease = decimal.New(1, -money.Scale)

// Service manages committed allocations and the release requests drawn
// against them. Allocations are bookkeeping records and never move ledger
// balances.
type Service interface {
	Allocate(ctx context.Context, input AllocateInput) (*models.Allocation, error)
	AllocateTx(ctx context.Context, tx *gorm.DB, input AllocateInput) (*models.Allocation, error)
	RequestRelease(ctx context.Context, input ReleaseInput) (*models.ReleaseRequest, error)
	ApproveRelease(ctx context.Context, requestID, actor uuid.UUID) (*models.ReleaseRequest, error)
	RejectRelease(ctx context.Context, requestID, actor uuid.UUID, reason string) (*models.ReleaseRequest, error)
	GetAllocation(ctx context.Context, scope enums.AllocationScope, targetID string) (*View, error)
	ListReleaseRequests(ctx context.Context, filter ReleaseFilter) ([]models.ReleaseRequest, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type AllocateInput struct {
	Scope     enums.AllocationScope
	TargetID  string
	AccountID uuid.UUID
	Amount    decimal.Decimal
	Category  enums.Category
	Actor     *uuid.UUID
}

type ReleaseInput struct {
	Scope       enums.AllocationScope
	TargetID    string
	Amount      decimal.Decimal
	RequestedBy uuid.UUID
}

// View pairs an allocation with its derived state. Allocation is nil in the
// no_allocation state.
type View struct {
	State      State              `json:"state"`
	Allocation *models.Allocation `json:"allocation,omitempty"`
	Released   decimal.Decimal    `json:"released"`
}

type service struct {
	repo    Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

func NewService(repo Repository, tx txRunner, logg *logger.Logger, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("allocation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg, metrics: m, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Allocate(ctx context.Context, input AllocateInput) (*models.Allocation, error) {
	var allocation *models.Allocation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		allocation, err = s.AllocateTx(ctx, tx, input)
		return err
	})
	s.observe(ctx, "allocate", err)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"allocation_id": allocation.ID.String(),
		"scope":         allocation.Scope,
		"target_id":     allocation.TargetID,
		"amount":        allocation.InitialAmount.String(),
	}), "allocations.created")
	return allocation, nil
}

func (s *service) AllocateTx(ctx context.Context, tx *gorm.DB, input AllocateInput) (*models.Allocation, error) {
	targetID, err := validateTarget(input.Scope, input.TargetID)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownCategory, fmt.Sprintf("unknown category %q", input.Category))
	}

	repo := s.repo.WithTx(tx)
	acct, err := repo.FindAccount(ctx, input.AccountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load account")
	}
	if acct == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownAccount, "account not found")
	}
	if acct.Kind != enums.AccountKindRegionAccount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocations are recorded against region accounts")
	}

	existing, err := repo.FindAllocation(ctx, input.Scope, targetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load allocation")
	}
	if existing != nil {
		return nil, duplicate(input.Scope, targetID)
	}

	now := s.now()
	allocation := &models.Allocation{
		Scope:          input.Scope,
		TargetID:       targetID,
		AccountID:      acct.ID,
		Category:       input.Category,
		InitialAmount:  input.Amount,
		FundsAllocated: input.Amount,
		CreatedBy:      input.Actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.CreateAllocation(ctx, allocation); err != nil {
		if db.IsUniqueViolation(err, allocationIndex) {
			return nil, duplicate(input.Scope, targetID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create allocation")
	}
	return allocation, nil
}

func (s *service) RequestRelease(ctx context.Context, input ReleaseInput) (*models.ReleaseRequest, error) {
	targetID, err := validateTarget(input.Scope, input.TargetID)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.RequestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester is required")
	}

	var req *models.ReleaseRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		allocation, err := repo.FindAllocation(ctx, input.Scope, targetID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load allocation")
		}
		if allocation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no allocation for target")
		}
		now := s.now()
		req = &models.ReleaseRequest{
			AllocationID: allocation.ID,
			Scope:        allocation.Scope,
			TargetID:     allocation.TargetID,
			Amount:       input.Amount,
			RequestedBy:  input.RequestedBy,
			Status:       enums.ReleaseStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.CreateRelease(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create release request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveRelease draws the request amount from its allocation. Approving an
// already approved request returns it unchanged.
func (s *service) ApproveRelease(ctx context.Context, requestID, actor uuid.UUID) (*models.ReleaseRequest, error) {
	var (
		req     *models.ReleaseRequest
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		req, err = lockRelease(ctx, repo, requestID)
		if err != nil {
			return err
		}
		switch req.Status {
		case enums.ReleaseStatusApproved:
			return nil
		case enums.ReleaseStatusRejected:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "release request was rejected")
		}

		allocation, err := repo.LockAllocation(ctx, req.AllocationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock allocation")
		}
		if allocation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "allocation not found")
		}
		if !req.Amount.LessThan(allocation.FundsAllocated) {
			return pkgerrors.New(pkgerrors.CodeInsufficientAllocation, "release must be less than the remaining allocation").
				WithDetails(map[string]any{"requested": req.Amount, "remaining": allocation.FundsAllocated})
		}

		now := s.now()
		allocation.FundsAllocated = allocation.FundsAllocated.Sub(req.Amount)
		allocation.UpdatedAt = now
		if err := repo.UpdateFundsAllocated(ctx, allocation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update allocation")
		}

		req.Status = enums.ReleaseStatusApproved
		req.Approved = true
		req.ApprovedAt = &now
		req.DecidedBy = &actor
		req.DecidedAt = &now
		req.UpdatedAt = now
		if err := repo.UpdateRelease(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "approve release request")
		}
		applied = true
		return nil
	})
	s.observe(ctx, "approve_release", err)
	if err != nil {
		return nil, err
	}
	if applied {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"release_id":    req.ID.String(),
			"allocation_id": req.AllocationID.String(),
			"amount":        req.Amount.String(),
		}), "allocations.release_approved")
	}
	return req, nil
}

// RejectRelease closes a pending request without touching the allocation.
func (s *service) RejectRelease(ctx context.Context, requestID, actor uuid.UUID, reason string) (*models.ReleaseRequest, error) {
	var req *models.ReleaseRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		req, err = lockRelease(ctx, repo, requestID)
		if err != nil {
			return err
		}
		switch req.Status {
		case enums.ReleaseStatusRejected:
			return nil
		case enums.ReleaseStatusApproved:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "release request is already approved")
		}
		now := s.now()
		req.Status = enums.ReleaseStatusRejected
		req.DecidedBy = &actor
		req.DecidedAt = &now
		req.UpdatedAt = now
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			req.Reason = &trimmed
		}
		if err := repo.UpdateRelease(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reject release request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *service) GetAllocation(ctx context.Context, scope enums.AllocationScope, targetID string) (*View, error) {
	targetID, err := validateTarget(scope, targetID)
	if err != nil {
		return nil, err
	}
	allocation, err := s.repo.FindAllocation(ctx, scope, targetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load allocation")
	}
	return viewOf(allocation), nil
}

func (s *service) ListReleaseRequests(ctx context.Context, filter ReleaseFilter) ([]models.ReleaseRequest, error) {
	if filter.Scope != nil && !filter.Scope.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid scope %q", *filter.Scope))
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid release status %q", *filter.Status))
	}
	out, err := s.repo.ListReleases(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list release requests")
	}
	return out, nil
}

func (s *service) observe(ctx context.Context, operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			result = string(typed.Code())
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"operation": operation, "code": result}), "allocations.rejected")
	}
	s.metrics.ObserveMutation(operation, result)
}

func viewOf(allocation *models.Allocation) *View {
	if allocation == nil {
		return &View{State: StateNoAllocation, Released: decimal.Zero}
	}
	released := allocation.InitialAmount.Sub(allocation.FundsAllocated)
	view := &View{Allocation: allocation, Released: released}
	switch {
	case allocation.FundsAllocated.LessThanOrEqual(minimumRelease):
		view.State = StateExhausted
	case released.IsPositive():
		view.State = StatePartiallyReleased
	default:
		view.State = StateAllocated
	}
	return view
}

func lockRelease(ctx context.Context, repo Repository, id uuid.UUID) (*models.ReleaseRequest, error) {
	req, err := repo.LockRelease(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock release request")
	}
	if req == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "release request not found")
	}
	return req, nil
}

func duplicate(scope enums.AllocationScope, targetID string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateAllocation, "target already has an allocation").
		WithDetails(map[string]any{"scope": scope, "target_id": targetID})
}

func validateTarget(scope enums.AllocationScope, targetID string) (string, error) {
	if !scope.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid scope %q", scope))
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "target id is required")
	}
	return targetID, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if !amount.Equal(money.Round(amount)) {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must have at most two decimal places")
	}
	return nil
}
