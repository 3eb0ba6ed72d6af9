package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
)

const msgStockBusy = "Stock row is busy, retry the adjustment."

// Repository is the Postgres Store.
type Repository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewRepository(db *gorm.DB, lockTimeout time.Duration) *Repository {
	return &Repository{db: db, lockTimeout: lockTimeout}
}

// WithTx runs fn in one transaction with lock_timeout applied, so a writer
// stuck behind another holder gives up instead of waiting forever.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx StockTx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			// SET does not take bind parameters; the value is an integer
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(ctx, &txRepo{db: tx})
	})
	if isLockFailure(err) {
		return apperr.Conflict(msgStockBusy)
	}
	return err
}

func isLockFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgLockNotAvailable || pgErr.Code == pgDeadlockDetected
}

func (r *Repository) ListAdjustments(ctx context.Context, f AdjustmentFilter) ([]models.InventoryAdjustment, error) {
	q := r.db.WithContext(ctx).
		Preload("Branch").
		Preload("BasicItem").
		Preload("Recipe")

	if f.BranchID != nil {
		q = q.Where("branch_id = ?", *f.BranchID)
	}
	if f.ItemType != "" {
		q = q.Where("item_type = ?", f.ItemType)
	}
	if f.BasicItemID != nil {
		q = q.Where("basic_item_id = ?", *f.BasicItemID)
	}
	if f.RecipeID != nil {
		q = q.Where("recipe_id = ?", *f.RecipeID)
	}

	var rows []models.InventoryAdjustment
	if err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type txRepo struct {
	db *gorm.DB
}

func (t *txRepo) GetBranch(ctx context.Context, branchID uint) (*models.Branch, error) {
	var branch models.Branch
	err := t.db.WithContext(ctx).First(&branch, branchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

func (t *txRepo) ItemName(ctx context.Context, ref ItemRef) (string, bool, error) {
	var names []string
	q := t.db.WithContext(ctx)
	switch ref.Type {
	case models.ItemTypeBasic:
		q = q.Model(&models.BasicItem{})
	case models.ItemTypeRecipe:
		q = q.Model(&models.Recipe{})
	default:
		return "", false, fmt.Errorf("unknown item type %q", ref.Type)
	}
	if err := q.Where("id = ?", ref.ID).Limit(1).Pluck("name", &names).Error; err != nil {
		return "", false, err
	}
	if len(names) == 0 {
		return "", false, nil
	}
	return names[0], true, nil
}

// LockStock inserts the zero row if missing (ON CONFLICT DO NOTHING keeps two
// first writers from colliding), then reads it back FOR UPDATE.
func (t *txRepo) LockStock(ctx context.Context, branchID uint, ref ItemRef) (decimal.Decimal, error) {
	db := t.db.WithContext(ctx)
	now := time.Now()

	switch ref.Type {
	case models.ItemTypeBasic:
		row := models.BranchBasicItemStock{BranchID: branchID, ItemID: ref.ID, Quantity: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "branch_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return decimal.Zero, err
		}

		var locked models.BranchBasicItemStock
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("branch_id = ? AND item_id = ?", branchID, ref.ID).
			First(&locked).Error; err != nil {
			return decimal.Zero, err
		}
		return locked.Quantity, nil

	case models.ItemTypeRecipe:
		row := models.BranchRecipeStock{BranchID: branchID, RecipeID: ref.ID, Quantity: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "branch_id"}, {Name: "recipe_id"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return decimal.Zero, err
		}

		var locked models.BranchRecipeStock
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("branch_id = ? AND recipe_id = ?", branchID, ref.ID).
			First(&locked).Error; err != nil {
			return decimal.Zero, err
		}
		return locked.Quantity, nil
	}
	return decimal.Zero, fmt.Errorf("unknown item type %q", ref.Type)
}

func (t *txRepo) SetStock(ctx context.Context, branchID uint, ref ItemRef, qty decimal.Decimal) error {
	db := t.db.WithContext(ctx)
	updates := map[string]any{"quantity": qty, "updated_at": time.Now()}

	var res *gorm.DB
	switch ref.Type {
	case models.ItemTypeBasic:
		res = db.Model(&models.BranchBasicItemStock{}).
			Where("branch_id = ? AND item_id = ?", branchID, ref.ID).
			Updates(updates)
	case models.ItemTypeRecipe:
		res = db.Model(&models.BranchRecipeStock{}).
			Where("branch_id = ? AND recipe_id = ?", branchID, ref.ID).
			Updates(updates)
	default:
		return fmt.Errorf("unknown item type %q", ref.Type)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("stock row for branch %d item %d vanished", branchID, ref.ID)
	}
	return nil
}

func (t *txRepo) InsertAdjustment(ctx context.Context, adj *models.InventoryAdjustment) error {
	return t.db.WithContext(ctx).Omit(clause.Associations).Create(adj).Error
}

func (r *Repository) ListBasicStocks(ctx context.Context, branchID *uint) ([]models.BranchBasicItemStock, error) {
	q := r.db.WithContext(ctx).Preload("Branch").Preload("Item")
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	var rows []models.BranchBasicItemStock
	if err := q.Order("branch_id, item_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) ListRecipeStocks(ctx context.Context, branchID *uint) ([]models.BranchRecipeStock, error) {
	q := r.db.WithContext(ctx).Preload("Branch").Preload("Recipe")
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	var rows []models.BranchRecipeStock
	if err := q.Order("branch_id, recipe_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
