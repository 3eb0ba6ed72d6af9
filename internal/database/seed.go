package database

import (
	"fmt"

	"miyan-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultBranches is the static branch registry seeded on first start.
var DefaultBranches = []models.Branch{
	{Name: "Beresht", Code: "beresht", IsActive: true},
	{Name: "Madi", Code: "madi", IsActive: true},
}

// SeedBranches inserts missing default branches by code. Existing rows are
// left untouched.
func SeedBranches(db *gorm.DB, log *zap.Logger) error {
	for _, def := range DefaultBranches {
		branch := def
		res := db.Where(models.Branch{Code: branch.Code}).
			Attrs(models.Branch{Name: branch.Name, IsActive: branch.IsActive}).
			FirstOrCreate(&branch)
		if res.Error != nil {
			return fmt.Errorf("seed branch %s: %w", def.Code, res.Error)
		}
		if res.RowsAffected > 0 {
			log.Info("seeded branch", zap.String("code", branch.Code), zap.Uint("id", branch.ID))
		}
	}
	return nil
}
