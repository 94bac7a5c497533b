package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/enums"
)

// FundTransaction is one append-only entry of the transaction log. Only hold
// entries change afterwards, moving from pending to completed or reversed.
type FundTransaction struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	AccountID       uuid.UUID                `gorm:"column:account_id;type:uuid;not null"`
	Currency        string                   `gorm:"column:currency;not null"`
	Amount          decimal.Decimal          `gorm:"column:amount;type:numeric(20,2);not null"`
	BaseAmount      decimal.Decimal          `gorm:"column:base_amount;type:numeric(20,2);not null"`
	Type            enums.TransactionType    `gorm:"column:type;type:text;not null"`
	Subtype         enums.TransactionSubtype `gorm:"column:subtype;type:text;not null"`
	Status          enums.TransactionStatus  `gorm:"column:status;type:text;not null"`
	Category        *enums.Category          `gorm:"column:category;type:text"`
	// Bucket is the category bucket the entry moved. It equals Category except
	// for holds that were funded outside their tagged bucket.
	Bucket          *enums.Category          `gorm:"column:bucket;type:text"`
	TargetType      *enums.TargetType        `gorm:"column:target_type;type:text"`
	TargetID        *string                  `gorm:"column:target_id"`
	PaymentSequence *int                     `gorm:"column:payment_sequence"`
	Note            *string                  `gorm:"column:note"`
	SettledAt       *time.Time               `gorm:"column:settled_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (FundTransaction) TableName() string { return "fund_transactions" }

func (t *FundTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = newID()
	}
	return nil
}
