package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/enums"
)

// LedgerAccount is any balance holder: region account, financial fund,
// sub-fund or user budget. Balances are in the base currency.
type LedgerAccount struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Kind          enums.AccountKind `gorm:"column:kind;type:text;not null"`
	Name          string            `gorm:"column:name;not null"`
	OwnerRef      *string           `gorm:"column:owner_ref"`
	ParentID      *uuid.UUID        `gorm:"column:parent_id;type:uuid"`
	Currency      string            `gorm:"column:currency;not null"`
	TotalFund     decimal.Decimal   `gorm:"column:total_fund;type:numeric(20,2);not null"`
	UsedFund      decimal.Decimal   `gorm:"column:used_fund;type:numeric(20,2);not null"`
	OnHoldFund    decimal.Decimal   `gorm:"column:on_hold_fund;type:numeric(20,2);not null"`
	AvailableFund decimal.Decimal   `gorm:"column:available_fund;type:numeric(20,2);not null"`
	Version       int64             `gorm:"column:version;not null;default:0"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (LedgerAccount) TableName() string { return "ledger_accounts" }

func (a *LedgerAccount) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = newID()
	}
	return nil
}

// CurrencyBalance is the native-currency breakdown of an account.
type CurrencyBalance struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AccountID     uuid.UUID       `gorm:"column:account_id;type:uuid;not null"`
	Currency      string          `gorm:"column:currency;not null"`
	TotalFund     decimal.Decimal `gorm:"column:total_fund;type:numeric(20,2);not null"`
	UsedFund      decimal.Decimal `gorm:"column:used_fund;type:numeric(20,2);not null"`
	OnHoldFund    decimal.Decimal `gorm:"column:on_hold_fund;type:numeric(20,2);not null"`
	AvailableFund decimal.Decimal `gorm:"column:available_fund;type:numeric(20,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CurrencyBalance) TableName() string { return "currency_balances" }

func (b *CurrencyBalance) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = newID()
	}
	return nil
}

// CategoryBalance is a per-category bucket in base currency. Amount is what
// can still be spent from the bucket.
type CategoryBalance struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AccountID uuid.UUID       `gorm:"column:account_id;type:uuid;not null"`
	Category  enums.Category  `gorm:"column:category;type:text;not null"`
	Total     decimal.Decimal `gorm:"column:total;type:numeric(20,2);not null"`
	Used      decimal.Decimal `gorm:"column:used;type:numeric(20,2);not null"`
	OnHold    decimal.Decimal `gorm:"column:on_hold;type:numeric(20,2);not null"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CategoryBalance) TableName() string { return "category_balances" }

func (b *CategoryBalance) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = newID()
	}
	return nil
}
