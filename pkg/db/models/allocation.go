package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/enums"
)

// Allocation is the committed amount earmarked for one case or project.
type Allocation struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Scope          enums.AllocationScope `gorm:"column:scope;type:text;not null"`
	TargetID       string                `gorm:"column:target_id;not null"`
	AccountID      uuid.UUID             `gorm:"column:account_id;type:uuid;not null"`
	Category       enums.Category        `gorm:"column:category;type:text;not null"`
	InitialAmount  decimal.Decimal       `gorm:"column:initial_amount;type:numeric(20,2);not null"`
	FundsAllocated decimal.Decimal       `gorm:"column:funds_allocated;type:numeric(20,2);not null"`
	CreatedBy      *uuid.UUID            `gorm:"column:created_by;type:uuid"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Allocation) TableName() string { return "allocations" }

func (a *Allocation) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = newID()
	}
	return nil
}

// ReleaseRequest asks for part of an allocation to be drawn down.
type ReleaseRequest struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	AllocationID uuid.UUID             `gorm:"column:allocation_id;type:uuid;not null"`
	Scope        enums.AllocationScope `gorm:"column:scope;type:text;not null"`
	TargetID     string                `gorm:"column:target_id;not null"`
	Amount       decimal.Decimal       `gorm:"column:amount;type:numeric(20,2);not null"`
	RequestedBy  uuid.UUID             `gorm:"column:requested_by;type:uuid;not null"`
	Status       enums.ReleaseStatus   `gorm:"column:status;type:text;not null"`
	Approved     bool                  `gorm:"column:approved;not null;default:false"`
	ApprovedAt   *time.Time            `gorm:"column:approved_at"`
	DecidedBy    *uuid.UUID            `gorm:"column:decided_by;type:uuid"`
	DecidedAt    *time.Time            `gorm:"column:decided_at"`
	Reason       *string               `gorm:"column:reason"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReleaseRequest) TableName() string { return "fund_release_requests" }

func (r *ReleaseRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = newID()
	}
	return nil
}
