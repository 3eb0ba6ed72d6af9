package audit

import (
	"time"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	BranchID    *uint              `json:"branch_id"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  string             `json:"before_data"`
	AfterData   string             `json:"after_data"`
}

// GET /api/admin/audit-logs?entity_type=recipe&entity_id=1&branch_id=1&user_id=2&limit=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.WithContext(c.UserContext()).Model(&models.AuditLog{})

		if v := c.QueryInt("branch_id"); v > 0 {
			q = q.Where("branch_id = ?", v)
		}
		if v := c.QueryInt("user_id"); v > 0 {
			q = q.Where("user_id = ?", v)
		}
		if v := c.Query("entity_type"); v != "" {
			q = q.Where("entity_type = ?", v)
		}
		if v := c.QueryInt("entity_id"); v > 0 {
			q = q.Where("entity_id = ?", v)
		}

		limit := c.QueryInt("limit", defaultLimit)
		if limit <= 0 {
			return apperr.Invalid("limit", "Must be greater than 0.")
		}
		if limit > maxLimit {
			limit = maxLimit
		}

		var logs []models.AuditLog
		if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
			return err
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format(time.RFC3339),
				BranchID:    l.BranchID,
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				BeforeData:  l.BeforeData,
				AfterData:   l.AfterData,
			})
		}
		return c.JSON(resp)
	}
}
