package currency

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reliefbridge/fundledger/pkg/db/models"
)

// Repository persists registered currencies.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, code string) (*models.Currency, error)
	FindBase(ctx context.Context) (*models.Currency, error)
	List(ctx context.Context) ([]models.Currency, error)
	Upsert(ctx context.Context, c *models.Currency) error
	Delete(ctx context.Context, code string) error
	IsReferenced(ctx context.Context, code string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a currency repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Find returns nil, nil when the code is not registered.
func (r *repository) Find(ctx context.Context, code string) (*models.Currency, error) {
	var c models.Currency
	err := r.db.WithContext(ctx).Where("code = ?", code).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) FindBase(ctx context.Context) (*models.Currency, error) {
	var c models.Currency
	err := r.db.WithContext(ctx).Where("is_base = ?", true).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context) ([]models.Currency, error) {
	var out []models.Currency
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) Upsert(ctx context.Context, c *models.Currency) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "rate", "last_updated"}),
	}).Create(c).Error
}

func (r *repository) Delete(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Where("code = ?", code).Delete(&models.Currency{}).Error
}

// IsReferenced reports whether any balance, account or transaction uses the code.
func (r *repository) IsReferenced(ctx context.Context, code string) (bool, error) {
	for _, model := range []any{&models.LedgerAccount{}, &models.CurrencyBalance{}, &models.FundTransaction{}} {
		var count int64
		if err := r.db.WithContext(ctx).Model(model).Where("currency = ?", code).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
