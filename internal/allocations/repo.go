package allocations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
)

// Repository persists allocations and their release requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error)
	FindAllocation(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.Allocation, error)
	LockAllocation(ctx context.Context, id uuid.UUID) (*models.Allocation, error)
	CreateAllocation(ctx context.Context, allocation *models.Allocation) error
	UpdateFundsAllocated(ctx context.Context, allocation *models.Allocation) error
	CreateRelease(ctx context.Context, req *models.ReleaseRequest) error
	LockRelease(ctx context.Context, id uuid.UUID) (*models.ReleaseRequest, error)
	UpdateRelease(ctx context.Context, req *models.ReleaseRequest) error
	ListReleases(ctx context.Context, filter ReleaseFilter) ([]models.ReleaseRequest, error)
}

// ReleaseFilter narrows ListReleaseRequests. CreatedBefore selects requests
// older than the given instant.
type ReleaseFilter struct {
	Scope         *enums.AllocationScope
	TargetID      *string
	Status        *enums.ReleaseStatus
	CreatedBefore *time.Time
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error) {
	var acct models.LedgerAccount
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *repository) FindAllocation(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.Allocation, error) {
	var allocation models.Allocation
	err := r.db.WithContext(ctx).Where("scope = ? AND target_id = ?", scope, targetID).Take(&allocation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *repository) LockAllocation(ctx context.Context, id uuid.UUID) (*models.Allocation, error) {
	var allocation models.Allocation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&allocation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *repository) CreateAllocation(ctx context.Context, allocation *models.Allocation) error {
	return r.db.WithContext(ctx).Create(allocation).Error
}

func (r *repository) UpdateFundsAllocated(ctx context.Context, allocation *models.Allocation) error {
	return r.db.WithContext(ctx).
		Model(&models.Allocation{}).
		Where("id = ?", allocation.ID).
		Updates(map[string]any{
			"funds_allocated": allocation.FundsAllocated,
			"updated_at":      allocation.UpdatedAt,
		}).Error
}

func (r *repository) CreateRelease(ctx context.Context, req *models.ReleaseRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) LockRelease(ctx context.Context, id uuid.UUID) (*models.ReleaseRequest, error) {
	var req models.ReleaseRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) UpdateRelease(ctx context.Context, req *models.ReleaseRequest) error {
	return r.db.WithContext(ctx).
		Model(&models.ReleaseRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]any{
			"status":      req.Status,
			"approved":    req.Approved,
			"approved_at": req.ApprovedAt,
			"decided_by":  req.DecidedBy,
			"decided_at":  req.DecidedAt,
			"reason":      req.Reason,
			"updated_at":  req.UpdatedAt,
		}).Error
}

func (r *repository) ListReleases(ctx context.Context, filter ReleaseFilter) ([]models.ReleaseRequest, error) {
	q := r.db.WithContext(ctx).Model(&models.ReleaseRequest{})
	if filter.Scope != nil {
		q = q.Where("scope = ?", *filter.Scope)
	}
	if filter.TargetID != nil {
		q = q.Where("target_id = ?", *filter.TargetID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.CreatedBefore != nil {
		q = q.Where("created_at < ?", *filter.CreatedBefore)
	}
	var out []models.ReleaseRequest
	if err := q.Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
