package donations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/db/models"
)

// Repository persists donation records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, donation *models.Donation) error
	// List returns donations credited to accountID on either side, newest first.
	List(ctx context.Context, accountID uuid.UUID) ([]models.Donation, error)
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

func (r *repository) Create(ctx context.Context, donation *models.Donation) error {
	return r.db.WithContext(ctx).Create(donation).Error
}

func (r *repository) List(ctx context.Context, accountID uuid.UUID) ([]models.Donation, error) {
	var out []models.Donation
	err := r.db.WithContext(ctx).
		Where("account_id = ? OR fund_id = ?", accountID, accountID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error
	return out, err
}
