package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/enums"
)

// Payment is money leaving the organisation from a fund.
type Payment struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	FundID     uuid.UUID           `gorm:"column:fund_id;type:uuid;not null"`
	Amount     decimal.Decimal     `gorm:"column:amount;type:numeric(20,2);not null"`
	Currency   string              `gorm:"column:currency;not null"`
	Payee      string              `gorm:"column:payee;not null"`
	Method     enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Notes      *string             `gorm:"column:notes"`
	Category   *enums.Category     `gorm:"column:category;type:text"`
	TargetType *enums.TargetType   `gorm:"column:target_type;type:text"`
	TargetID   *string             `gorm:"column:target_id"`
	Sequence   *int                `gorm:"column:sequence"`
	RecordedBy uuid.UUID           `gorm:"column:recorded_by;type:uuid;not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = newID()
	}
	return nil
}

// Donation is money received from a donor into an account and a fund.
type Donation struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Donor      string            `gorm:"column:donor;not null"`
	AccountID  uuid.UUID         `gorm:"column:account_id;type:uuid;not null"`
	FundID     uuid.UUID         `gorm:"column:fund_id;type:uuid;not null"`
	Amount     decimal.Decimal   `gorm:"column:amount;type:numeric(20,2);not null"`
	Currency   string            `gorm:"column:currency;not null"`
	Category   *enums.Category   `gorm:"column:category;type:text"`
	TargetType *enums.TargetType `gorm:"column:target_type;type:text"`
	TargetID   *string           `gorm:"column:target_id"`
	RecordedBy uuid.UUID         `gorm:"column:recorded_by;type:uuid;not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (Donation) TableName() string { return "donations" }

func (d *Donation) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = newID()
	}
	return nil
}
