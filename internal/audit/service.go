// Package audit records admin mutations of master data.
package audit

import (
	"encoding/json"
	"fmt"

	"miyan-backend/internal/access"
	"miyan-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	BranchID    *uint
	Caller      access.Caller
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog appends one audit row. Pass the transaction handle when the
// mutation runs in one so the log commits or rolls back with it.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	// jsonb rejects "", so absent snapshots are stored as JSON null
	before, err := snapshot(opts.Before)
	if err != nil {
		return err
	}
	after, err := snapshot(opts.After)
	if err != nil {
		return err
	}

	row := models.AuditLog{
		BranchID:    opts.BranchID,
		UserID:      opts.Caller.UserID,
		UserName:    opts.Caller.Name,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  before,
		AfterData:   after,
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func snapshot(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return string(b), nil
}
