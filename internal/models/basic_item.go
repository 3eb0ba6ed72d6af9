package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BasicItem: atomic inventory unit (raw ingredient), tracked per branch
type BasicItem struct {
	ID        uint            `gorm:"primaryKey"`
	Name      string          `gorm:"size:200;not null;unique"`
	Unit      string          `gorm:"size:32;not null"` // kg, litre, piece ...
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;check:chk_basic_items_unit_price,unit_price >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
