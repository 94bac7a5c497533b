package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a registered denomination and its rate against the base currency.
type Currency struct {
	Code        string          `gorm:"column:code;primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Rate        decimal.Decimal `gorm:"column:rate;type:numeric(20,8);not null"`
	IsBase      bool            `gorm:"column:is_base;not null;default:false"`
	LastUpdated time.Time       `gorm:"column:last_updated;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Currency) TableName() string { return "currencies" }
