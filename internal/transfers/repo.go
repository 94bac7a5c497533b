package transfers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
)

// Repository persists fund transfer requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AccountExists(ctx context.Context, id uuid.UUID) (bool, error)
	Create(ctx context.Context, req *models.TransferRequest) error
	Find(ctx context.Context, id uuid.UUID) (*models.TransferRequest, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.TransferRequest, error)
	UpdateStage(ctx context.Context, req *models.TransferRequest) error
	List(ctx context.Context, filter Filter) ([]models.TransferRequest, error)
}

// Filter narrows List. AccountID matches either side of the transfer.
type Filter struct {
	Stage     *enums.TransferStage
	AccountID *uuid.UUID
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

func (r *repository) AccountExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LedgerAccount{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *repository) Create(ctx context.Context, req *models.TransferRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.TransferRequest, error) {
	var req models.TransferRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.TransferRequest, error) {
	var req models.TransferRequest
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

func (r *repository) UpdateStage(ctx context.Context, req *models.TransferRequest) error {
	return r.db.WithContext(ctx).
		Model(&models.TransferRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]any{
			"stage":       req.Stage,
			"approved_by": req.ApprovedBy,
			"approved_at": req.ApprovedAt,
			"updated_at":  req.UpdatedAt,
		}).Error
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.TransferRequest, error) {
	q := r.db.WithContext(ctx).Model(&models.TransferRequest{})
	if filter.Stage != nil {
		q = q.Where("stage = ?", *filter.Stage)
	}
	if filter.AccountID != nil {
		q = q.Where("from_account_id = ? OR to_account_id = ?", *filter.AccountID, *filter.AccountID)
	}
	var out []models.TransferRequest
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
