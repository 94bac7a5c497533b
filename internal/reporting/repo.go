package reporting

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
)

// Repository runs read-only aggregate queries over the transaction log.
type Repository interface {
	UsedByCategory(ctx context.Context, accountID uuid.UUID) ([]CategoryTotal, error)
	Transactions(ctx context.Context, accountID uuid.UUID) ([]models.FundTransaction, error)
}

// CategoryTotal is a base currency sum for one category.
type CategoryTotal struct {
	Category enums.Category  `gorm:"column:category"`
	Total    decimal.Decimal `gorm:"column:total"`
}

// usedSubtypes are the entries that end up in usedFund once completed.
var usedSubtypes = []enums.TransactionSubtype{
	enums.TransactionSubtypeSpend,
	enums.TransactionSubtypeTransferOut,
	enums.TransactionSubtypeHold,
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) UsedByCategory(ctx context.Context, accountID uuid.UUID) ([]CategoryTotal, error) {
	var out []CategoryTotal
	err := r.db.WithContext(ctx).
		Model(&models.FundTransaction{}).
		Select("category, COALESCE(SUM(base_amount), 0) AS total").
		Where("account_id = ?", accountID).
		Where("category IS NOT NULL").
		Where("subtype IN ?", usedSubtypes).
		Where("status = ?", enums.TransactionStatusCompleted).
		Group("category").
		Scan(&out).Error
	return out, err
}

func (r *repository) Transactions(ctx context.Context, accountID uuid.UUID) ([]models.FundTransaction, error) {
	var out []models.FundTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	return out, err
}
