package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/pagination"
)

// Repository manages persistence for accounts, their balance breakdowns and
// the transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateAccount(ctx context.Context, acct *models.LedgerAccount) error
	FindAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error)
	LockAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]models.LedgerAccount, error)
	UpdateAccountBalances(ctx context.Context, acct *models.LedgerAccount, version int64, at time.Time) (bool, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	HasDependents(ctx context.Context, id uuid.UUID) (bool, error)

	FindCurrencyBalance(ctx context.Context, accountID uuid.UUID, currency string) (*models.CurrencyBalance, error)
	ListCurrencyBalances(ctx context.Context, accountID uuid.UUID) ([]models.CurrencyBalance, error)
	SaveCurrencyBalance(ctx context.Context, row *models.CurrencyBalance) error

	FindCategoryBalance(ctx context.Context, accountID uuid.UUID, category enums.Category) (*models.CategoryBalance, error)
	ListCategoryBalances(ctx context.Context, accountID uuid.UUID) ([]models.CategoryBalance, error)
	SaveCategoryBalance(ctx context.Context, row *models.CategoryBalance) error

	CreateTransaction(ctx context.Context, txn *models.FundTransaction) error
	ListTransactions(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.FundTransaction, error)
	FindPendingHold(ctx context.Context, targetType enums.TargetType, targetID string) (*models.FundTransaction, error)
	SettleTransaction(ctx context.Context, id uuid.UUID, status enums.TransactionStatus, at time.Time) (int64, error)
	LatestDonationAt(ctx context.Context, accountID uuid.UUID, category enums.Category) (*time.Time, error)
}

// AccountFilter narrows ListAccounts.
type AccountFilter struct {
	Kind     *enums.AccountKind
	ParentID *uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAccount(ctx context.Context, acct *models.LedgerAccount) error {
	return r.db.WithContext(ctx).Create(acct).Error
}

func (r *repository) FindAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error) {
	var acct models.LedgerAccount
	return takeOrNil(&acct, r.db.WithContext(ctx).Where("id = ?", id).Take(&acct).Error)
}

// LockAccount reads the account with SELECT ... FOR UPDATE.
func (r *repository) LockAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error) {
	var acct models.LedgerAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&acct).Error
	return takeOrNil(&acct, err)
}

func (r *repository) ListAccounts(ctx context.Context, filter AccountFilter) ([]models.LedgerAccount, error) {
	q := r.db.WithContext(ctx).Model(&models.LedgerAccount{})
	if filter.Kind != nil {
		q = q.Where("kind = ?", *filter.Kind)
	}
	if filter.ParentID != nil {
		q = q.Where("parent_id = ?", *filter.ParentID)
	}
	var out []models.LedgerAccount
	if err := q.Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAccountBalances writes the balance columns only if the row is still at
// version. It reports false when another writer got there first.
func (r *repository) UpdateAccountBalances(ctx context.Context, acct *models.LedgerAccount, version int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerAccount{}).
		Where("id = ? AND version = ?", acct.ID, version).
		Updates(map[string]any{
			"total_fund":     acct.TotalFund,
			"used_fund":      acct.UsedFund,
			"on_hold_fund":   acct.OnHoldFund,
			"available_fund": acct.AvailableFund,
			"version":        version + 1,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("account_id = ?", id).Delete(&models.CurrencyBalance{}).Error; err != nil {
		return err
	}
	if err := db.Where("account_id = ?", id).Delete(&models.CategoryBalance{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.LedgerAccount{}).Error
}

// HasDependents reports whether the account has transactions, sub-funds,
// allocations or workflow records pointing at it.
func (r *repository) HasDependents(ctx context.Context, id uuid.UUID) (bool, error) {
	checks := []struct {
		model any
		where string
		args  []any
	}{
		{&models.FundTransaction{}, "account_id = ?", []any{id}},
		{&models.LedgerAccount{}, "parent_id = ?", []any{id}},
		{&models.Allocation{}, "account_id = ?", []any{id}},
		{&models.TransferRequest{}, "from_account_id = ? OR to_account_id = ?", []any{id, id}},
		{&models.Payment{}, "fund_id = ?", []any{id}},
		{&models.Donation{}, "account_id = ? OR fund_id = ?", []any{id, id}},
	}
	for _, check := range checks {
		var count int64
		if err := r.db.WithContext(ctx).Model(check.model).Where(check.where, check.args...).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *repository) FindCurrencyBalance(ctx context.Context, accountID uuid.UUID, currency string) (*models.CurrencyBalance, error) {
	var row models.CurrencyBalance
	err := r.db.WithContext(ctx).Where("account_id = ? AND currency = ?", accountID, currency).Take(&row).Error
	return takeOrNil(&row, err)
}

func (r *repository) ListCurrencyBalances(ctx context.Context, accountID uuid.UUID) ([]models.CurrencyBalance, error) {
	var out []models.CurrencyBalance
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("currency ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) SaveCurrencyBalance(ctx context.Context, row *models.CurrencyBalance) error {
	if row.ID == uuid.Nil {
		return r.db.WithContext(ctx).Create(row).Error
	}
	return r.db.WithContext(ctx).Model(&models.CurrencyBalance{}).Where("id = ?", row.ID).Updates(map[string]any{
		"total_fund":     row.TotalFund,
		"used_fund":      row.UsedFund,
		"on_hold_fund":   row.OnHoldFund,
		"available_fund": row.AvailableFund,
		"updated_at":     row.UpdatedAt,
	}).Error
}

func (r *repository) FindCategoryBalance(ctx context.Context, accountID uuid.UUID, category enums.Category) (*models.CategoryBalance, error) {
	var row models.CategoryBalance
	err := r.db.WithContext(ctx).Where("account_id = ? AND category = ?", accountID, category).Take(&row).Error
	return takeOrNil(&row, err)
}

func (r *repository) ListCategoryBalances(ctx context.Context, accountID uuid.UUID) ([]models.CategoryBalance, error) {
	var out []models.CategoryBalance
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("category ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) SaveCategoryBalance(ctx context.Context, row *models.CategoryBalance) error {
	if row.ID == uuid.Nil {
		return r.db.WithContext(ctx).Create(row).Error
	}
	return r.db.WithContext(ctx).Model(&models.CategoryBalance{}).Where("id = ?", row.ID).Updates(map[string]any{
		"total":      row.Total,
		"used":       row.Used,
		"on_hold":    row.OnHold,
		"amount":     row.Amount,
		"updated_at": row.UpdatedAt,
	}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.FundTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.FundTransaction, error) {
	q := r.db.WithContext(ctx).Model(&models.FundTransaction{}).Where("account_id = ?", accountID)
	var out []models.FundTransaction
	if err := pagination.Ascending(q, cursor, limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindPendingHold locks the pending hold for a target, if any.
func (r *repository) FindPendingHold(ctx context.Context, targetType enums.TargetType, targetID string) (*models.FundTransaction, error) {
	var txn models.FundTransaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("subtype = ? AND status = ? AND target_type = ? AND target_id = ?",
			enums.TransactionSubtypeHold, enums.TransactionStatusPending, targetType, targetID).
		Take(&txn).Error
	return takeOrNil(&txn, err)
}

// SettleTransaction moves a pending transaction to status and returns the rows touched.
func (r *repository) SettleTransaction(ctx context.Context, id uuid.UUID, status enums.TransactionStatus, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FundTransaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{"status": status, "settled_at": at})
	return res.RowsAffected, res.Error
}

// LatestDonationAt returns the creation time of the newest money-in
// transaction for a category, or nil when there is none.
func (r *repository) LatestDonationAt(ctx context.Context, accountID uuid.UUID, category enums.Category) (*time.Time, error) {
	var txn models.FundTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND category = ? AND type = ? AND status = ?",
			accountID, category, enums.TransactionTypeAdd, enums.TransactionStatusCompleted).
		Order("created_at DESC").Order("id DESC").
		Take(&txn).Error
	found, err := takeOrNil(&txn, err)
	if err != nil || found == nil {
		return nil, err
	}
	at := found.CreatedAt
	return &at, nil
}

func takeOrNil[T any](row *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
