package database

import (
	"fmt"

	"miyan-backend/internal/config"
	"miyan-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres. TranslateError maps unique / foreign key
// violations to gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.IsProduction() {
		level = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	log.Info("database connection established")
	return db, nil
}

// Migrate creates the schema, then the constraints AutoMigrate cannot express.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.Staff{},
		&models.StaffBranchAssignment{},
		&models.StaffShift{},
		&models.BasicItem{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.BranchBasicItemStock{},
		&models.BranchRecipeStock{},
		&models.InventoryAdjustment{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// one open shift per staff member
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS ux_staff_shifts_open
		ON staff_shifts (staff_id) WHERE ended_at IS NULL
	`).Error; err != nil {
		return fmt.Errorf("open shift index: %w", err)
	}

	if err := ensureConstraint(db, log, "inventory_adjustments", "chk_inventory_adjustments_item", `
		ALTER TABLE inventory_adjustments
		ADD CONSTRAINT chk_inventory_adjustments_item CHECK (
			(item_type = 'basic' AND basic_item_id IS NOT NULL AND recipe_id IS NULL)
			OR (item_type = 'recipe' AND basic_item_id IS NULL AND recipe_id IS NOT NULL)
		)
	`); err != nil {
		return err
	}
	if err := ensureConstraint(db, log, "inventory_adjustments", "chk_inventory_adjustments_mode", `
		ALTER TABLE inventory_adjustments
		ADD CONSTRAINT chk_inventory_adjustments_mode CHECK (mode IN ('set', 'delta'))
	`); err != nil {
		return err
	}

	log.Info("database migration completed")
	return nil
}

func ensureConstraint(db *gorm.DB, log *zap.Logger, table, name, ddl string) error {
	var exists bool
	if err := db.Raw(`
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.table_constraints
			WHERE table_name = ? AND constraint_name = ?
		)
	`, table, name).Scan(&exists).Error; err != nil {
		return fmt.Errorf("check constraint %s: %w", name, err)
	}
	if exists {
		return nil
	}

	log.Info("adding constraint", zap.String("table", table), zap.String("constraint", name))
	if err := db.Exec(ddl).Error; err != nil {
		return fmt.Errorf("add constraint %s: %w", name, err)
	}
	return nil
}
