package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/audit"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/models"
	"miyan-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BasicItemRequest struct {
	Name      string           `json:"name" validate:"required,max=200"`
	Unit      string           `json:"unit" validate:"required,max=32"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type BasicItemResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	UnitPrice string `json:"unit_price"`
	UpdatedAt string `json:"updated_at"`
}

type IngredientRequest struct {
	BasicItemID uint             `json:"basic_item_id" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
}

type RecipeRequest struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Price       *decimal.Decimal    `json:"price"`
	Ingredients []IngredientRequest `json:"ingredients" validate:"dive"`
}

type IngredientResponse struct {
	BasicItemID uint   `json:"basic_item_id"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	Amount      string `json:"amount"`
}

type RecipeResponse struct {
	ID          uint                 `json:"id"`
	Name        string               `json:"name"`
	Price       string               `json:"price"`
	Ingredients []IngredientResponse `json:"ingredients"`
	UpdatedAt   string               `json:"updated_at"`
}

func toBasicItemResponse(b models.BasicItem) BasicItemResponse {
	return BasicItemResponse{
		ID:        b.ID,
		Name:      b.Name,
		Unit:      b.Unit,
		UnitPrice: b.UnitPrice.StringFixed(2),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
}

func toRecipeResponse(r models.Recipe) RecipeResponse {
	resp := RecipeResponse{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price.StringFixed(2),
		Ingredients: make([]IngredientResponse, 0, len(r.Ingredients)),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
	for _, ing := range r.Ingredients {
		resp.Ingredients = append(resp.Ingredients, IngredientResponse{
			BasicItemID: ing.BasicItemID,
			Name:        ing.BasicItem.Name,
			Unit:        ing.BasicItem.Unit,
			Amount:      ing.Amount.StringFixed(quantityScale),
		})
	}
	return resp
}

// price validates an optional non-negative money amount with two decimals.
func price(field string, v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	if v.IsNegative() {
		return decimal.Zero, apperr.Invalid(field, "Ensure this value is greater than or equal to 0.")
	}
	if !v.Equal(v.Round(2)) {
		return decimal.Zero, apperr.Invalid(field, "Ensure that there are no more than 2 decimal places.")
	}
	return *v, nil
}

// checkIngredients rejects duplicates and non-positive amounts.
func checkIngredients(list []IngredientRequest) error {
	v := &apperr.ValidationError{}
	seen := make(map[uint]bool, len(list))
	for i, ing := range list {
		field := fmt.Sprintf("ingredients[%d]", i)
		switch {
		case seen[ing.BasicItemID]:
			v.Add(field, "Duplicate basic item.")
		case !ing.Amount.IsPositive():
			v.Add(field, "Amount must be greater than 0.")
		case !ing.Amount.Equal(ing.Amount.Round(quantityScale)):
			v.Add(field, "Ensure that there are no more than 3 decimal places.")
		}
		seen[ing.BasicItemID] = true
	}
	return v.OrNil()
}

func duplicateName(err error, what string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Invalid("name", what+" with this name already exists.")
	}
	return err
}

// ----------------------------------------
// BASIC ITEMS
// ----------------------------------------

// GET /api/inventory/basic-items
func ListBasicItemsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var items []models.BasicItem
		if err := db.WithContext(c.UserContext()).Order("name").Find(&items).Error; err != nil {
			return err
		}
		resp := make([]BasicItemResponse, 0, len(items))
		for _, it := range items {
			resp = append(resp, toBasicItemResponse(it))
		}
		return c.JSON(resp)
	}
}

// GET /api/inventory/basic-items/:id
func GetBasicItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}
		var item models.BasicItem
		if err := db.WithContext(c.UserContext()).First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("basic item", "")
			}
			return err
		}
		return c.JSON(toBasicItemResponse(item))
	}
}

// POST /api/inventory/basic-items
func CreateBasicItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		var body BasicItemRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		unitPrice, err := price("unit_price", body.UnitPrice)
		if err != nil {
			return err
		}

		item := models.BasicItem{
			Name:      strings.TrimSpace(body.Name),
			Unit:      strings.TrimSpace(body.Unit),
			UnitPrice: unitPrice,
		}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&item).Error; err != nil {
				return duplicateName(err, "Basic item")
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Caller:      caller,
				EntityType:  "basic_item",
				EntityID:    item.ID,
				Action:      models.AuditActionCreate,
				Description: "Basic item created: " + item.Name,
				After:       toBasicItemResponse(item),
			})
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toBasicItemResponse(item))
	}
}

// PUT /api/inventory/basic-items/:id
func UpdateBasicItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}
		var body BasicItemRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		unitPrice, err := price("unit_price", body.UnitPrice)
		if err != nil {
			return err
		}

		var item models.BasicItem
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&item, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("basic item", "")
				}
				return err
			}
			before := toBasicItemResponse(item)

			item.Name = strings.TrimSpace(body.Name)
			item.Unit = strings.TrimSpace(body.Unit)
			item.UnitPrice = unitPrice
			if err := tx.Save(&item).Error; err != nil {
				return duplicateName(err, "Basic item")
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Caller:      caller,
				EntityType:  "basic_item",
				EntityID:    item.ID,
				Action:      models.AuditActionUpdate,
				Description: "Basic item updated: " + item.Name,
				Before:      before,
				After:       toBasicItemResponse(item),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(toBasicItemResponse(item))
	}
}

// DELETE /api/inventory/basic-items/:id
// Refused while recipes, stock rows or adjustments reference the item.
func DeleteBasicItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var item models.BasicItem
			if err := tx.First(&item, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("basic item", "")
				}
				return err
			}
			if err := tx.Delete(&item).Error; err != nil {
				if errors.Is(err, gorm.ErrForeignKeyViolated) {
					return apperr.Conflict("Basic item is used by recipes, stock or adjustments.")
				}
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Caller:      caller,
				EntityType:  "basic_item",
				EntityID:    item.ID,
				Action:      models.AuditActionDelete,
				Description: "Basic item deleted: " + item.Name,
				Before:      toBasicItemResponse(item),
			})
		})
		if err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----------------------------------------
// RECIPES
// ----------------------------------------

func loadRecipe(tx *gorm.DB, id uint) (models.Recipe, error) {
	var recipe models.Recipe
	err := tx.Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Preload("Ingredients.BasicItem").First(&recipe, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return recipe, apperr.NotFound("recipe", "")
	}
	return recipe, err
}

// syncIngredients makes the stored ingredient set equal to list: listed items
// are upserted, omitted ones deleted.
func syncIngredients(tx *gorm.DB, recipeID uint, list []IngredientRequest) error {
	ids := make([]uint, 0, len(list))
	for _, ing := range list {
		ids = append(ids, ing.BasicItemID)
	}

	if len(ids) > 0 {
		var found int64
		if err := tx.Model(&models.BasicItem{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
			return err
		}
		if int(found) != len(ids) {
			return apperr.Invalid("ingredients", "Unknown basic item.")
		}
	}

	prune := tx.Where("recipe_id = ?", recipeID)
	if len(ids) > 0 {
		prune = prune.Where("basic_item_id NOT IN ?", ids)
	}
	if err := prune.Delete(&models.RecipeIngredient{}).Error; err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]models.RecipeIngredient, 0, len(list))
	for _, ing := range list {
		rows = append(rows, models.RecipeIngredient{
			RecipeID:    recipeID,
			BasicItemID: ing.BasicItemID,
			Amount:      *ing.Amount,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipe_id"}, {Name: "basic_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&rows).Error
}

// GET /api/inventory/recipes
func ListRecipesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var recipes []models.Recipe
		err := db.WithContext(c.UserContext()).
			Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
			Preload("Ingredients.BasicItem").
			Order("name").
			Find(&recipes).Error
		if err != nil {
			return err
		}
		resp := make([]RecipeResponse, 0, len(recipes))
		for _, r := range recipes {
			resp = append(resp, toRecipeResponse(r))
		}
		return c.JSON(resp)
	}
}

// GET /api/inventory/recipes/:id
func GetRecipeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}
		recipe, err := loadRecipe(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toRecipeResponse(recipe))
	}
}

// POST /api/inventory/recipes
func CreateRecipeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		var body RecipeRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		recipePrice, err := price("price", body.Price)
		if err != nil {
			return err
		}
		if err := checkIngredients(body.Ingredients); err != nil {
			return err
		}

		var recipe models.Recipe
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			created := models.Recipe{Name: strings.TrimSpace(body.Name), Price: recipePrice}
			if err := tx.Omit(clause.Associations).Create(&created).Error; err != nil {
				return duplicateName(err, "Recipe")
			}
			if err := syncIngredients(tx, created.ID, body.Ingredients); err != nil {
				return err
			}
			recipe, err = loadRecipe(tx, created.ID)
			if err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Caller:      caller,
				EntityType:  "recipe",
				EntityID:    recipe.ID,
				Action:      models.AuditActionCreate,
				Description: "Recipe created: " + recipe.Name,
				After:       toRecipeResponse(recipe),
			})
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toRecipeResponse(recipe))
	}
}

// PUT /api/inventory/recipes/:id
// The ingredient list replaces the stored one.
func UpdateRecipeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}
		var body RecipeRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		recipePrice, err := price("price", body.Price)
		if err != nil {
			return err
		}
		if err := checkIngredients(body.Ingredients); err != nil {
			return err
		}

		var recipe models.Recipe
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			current, err := loadRecipe(tx, id)
			if err != nil {
				return err
			}
			before := toRecipeResponse(current)

			if err := tx.Model(&models.Recipe{}).Where("id = ?", id).Updates(map[string]any{
				"name":       strings.TrimSpace(body.Name),
				"price":      recipePrice,
				"updated_at": time.Now(),
			}).Error; err != nil {
				return duplicateName(err, "Recipe")
			}
			if err := syncIngredients(tx, id, body.Ingredients); err != nil {
				return err
			}
			recipe, err = loadRecipe(tx, id)
			if err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Caller:      caller,
				EntityType:  "recipe",
				EntityID:    recipe.ID,
				Action:      models.AuditActionUpdate,
				Description: "Recipe updated: " + recipe.Name,
				Before:      before,
				After:       toRecipeResponse(recipe),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(toRecipeResponse(recipe))
	}
}

// DELETE /api/inventory/recipes/:id
// Ingredients cascade; stock rows and adjustments block the delete.
func DeleteRecipeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			recipe, err := loadRecipe(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Delete(&models.Recipe{}, id).Error; err != nil {
				if errors.Is(err, gorm.ErrForeignKeyViolated) {
					return apperr.Conflict("Recipe is used by stock or adjustments.")
				}
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Caller:      caller,
				EntityType:  "recipe",
				EntityID:    recipe.ID,
				Action:      models.AuditActionDelete,
				Description: "Recipe deleted: " + recipe.Name,
				Before:      toRecipeResponse(recipe),
			})
		})
		if err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
