package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe: sellable item composed of weighted basic items
type Recipe struct {
	ID        uint            `gorm:"primaryKey"`
	Name      string          `gorm:"size:200;not null;unique"`
	Price     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;check:chk_recipes_price,price >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE"`
}

type RecipeIngredient struct {
	ID          uint      `gorm:"primaryKey"`
	RecipeID    uint      `gorm:"not null;uniqueIndex:ux_recipe_ingredient"`
	BasicItemID uint      `gorm:"not null;uniqueIndex:ux_recipe_ingredient;index"`
	BasicItem   BasicItem `gorm:"constraint:OnDelete:RESTRICT"`
	// amount of the basic item per recipe unit, in the basic item's unit
	Amount    decimal.Decimal `gorm:"type:numeric(12,3);not null;check:chk_recipe_ingredients_amount,amount > 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
