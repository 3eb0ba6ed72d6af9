package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemType string

const (
	ItemTypeBasic  ItemType = "basic"
	ItemTypeRecipe ItemType = "recipe"
)

func (t ItemType) Valid() bool { return t == ItemTypeBasic || t == ItemTypeRecipe }

// BranchBasicItemStock: on-hand quantity of one basic item at one branch.
// Written only by the adjustment service.
type BranchBasicItemStock struct {
	ID        uint            `gorm:"primaryKey"`
	BranchID  uint            `gorm:"not null;uniqueIndex:ux_branch_basic_item"`
	Branch    Branch          `gorm:"constraint:OnDelete:RESTRICT"`
	ItemID    uint            `gorm:"not null;uniqueIndex:ux_branch_basic_item;index"`
	Item      BasicItem       `gorm:"constraint:OnDelete:RESTRICT"`
	Quantity  decimal.Decimal `gorm:"type:numeric(12,3);not null;default:0;check:chk_branch_basic_item_stocks_quantity,quantity >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BranchRecipeStock: on-hand quantity of one recipe at one branch.
type BranchRecipeStock struct {
	ID        uint            `gorm:"primaryKey"`
	BranchID  uint            `gorm:"not null;uniqueIndex:ux_branch_recipe"`
	Branch    Branch          `gorm:"constraint:OnDelete:RESTRICT"`
	RecipeID  uint            `gorm:"not null;uniqueIndex:ux_branch_recipe;index"`
	Recipe    Recipe          `gorm:"constraint:OnDelete:RESTRICT"`
	Quantity  decimal.Decimal `gorm:"type:numeric(12,3);not null;default:0;check:chk_branch_recipe_stocks_quantity,quantity >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
