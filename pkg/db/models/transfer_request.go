package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/enums"
)

// TransferRequest moves money between two ledger accounts once approved.
type TransferRequest struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	FromAccountID uuid.UUID           `gorm:"column:from_account_id;type:uuid;not null"`
	ToAccountID   uuid.UUID           `gorm:"column:to_account_id;type:uuid;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(20,2);not null"`
	Currency      string              `gorm:"column:currency;not null"`
	Notes         *string             `gorm:"column:notes"`
	RequestedBy   uuid.UUID           `gorm:"column:requested_by;type:uuid;not null"`
	Stage         enums.TransferStage `gorm:"column:stage;type:text;not null"`
	ApprovedBy    *uuid.UUID          `gorm:"column:approved_by;type:uuid"`
	ApprovedAt    *time.Time          `gorm:"column:approved_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (TransferRequest) TableName() string { return "fund_transfer_requests" }

func (r *TransferRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = newID()
	}
	return nil
}
