package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentMode string

const (
	ModeSet   AdjustmentMode = "set"
	ModeDelta AdjustmentMode = "delta"
)

func (m AdjustmentMode) Valid() bool { return m == ModeSet || m == ModeDelta }

// InventoryAdjustment is the append-only stock log. Exactly one of BasicItemID
// and RecipeID is set, matching ItemType (check constraint
// chk_inventory_adjustments_item, see database.Migrate). Rows are never updated
// or deleted.
type InventoryAdjustment struct {
	ID          uint           `gorm:"primaryKey"`
	BranchID    uint           `gorm:"not null;index:idx_adjustments_branch_created"`
	Branch      Branch         `gorm:"constraint:OnDelete:RESTRICT"`
	ItemType    ItemType       `gorm:"size:16;not null"`
	BasicItemID *uint          `gorm:"index"`
	BasicItem   *BasicItem     `gorm:"constraint:OnDelete:RESTRICT"`
	RecipeID    *uint          `gorm:"index"`
	Recipe      *Recipe        `gorm:"constraint:OnDelete:RESTRICT"`
	Mode        AdjustmentMode `gorm:"size:16;not null"`

	Quantity    decimal.Decimal `gorm:"type:numeric(12,3);not null"` // requested value (target or delta)
	StockBefore decimal.Decimal `gorm:"type:numeric(12,3);not null;check:chk_inventory_adjustments_before,stock_before >= 0"`
	StockAfter  decimal.Decimal `gorm:"type:numeric(12,3);not null;check:chk_inventory_adjustments_after,stock_after >= 0"`

	Note         string    `gorm:"size:255;not null;default:''"`
	RecordedByID *uint     `gorm:"index"`
	RecordedBy   *Staff    `gorm:"constraint:OnDelete:SET NULL"`
	CreatedAt    time.Time `gorm:"index:idx_adjustments_branch_created"`
}

// ItemID returns the populated item reference.
func (a *InventoryAdjustment) ItemID() uint {
	if a.ItemType == ItemTypeRecipe && a.RecipeID != nil {
		return *a.RecipeID
	}
	if a.BasicItemID != nil {
		return *a.BasicItemID
	}
	return 0
}
