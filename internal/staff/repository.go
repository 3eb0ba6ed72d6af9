package staff

import (
	"context"
	"errors"
	"time"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ActiveShift(ctx context.Context, staffID uint) (*models.StaffShift, error) {
	var shift models.StaffShift
	err := r.db.WithContext(ctx).
		Preload("Branch").
		Where("staff_id = ? AND ended_at IS NULL", staffID).
		First(&shift).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx ShiftTx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &shiftTx{db: tx})
	})
	// two concurrent starts race on ux_staff_shifts_open
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("Another shift change is in progress, retry.")
	}
	return err
}

type shiftTx struct {
	db *gorm.DB
}

func (t *shiftTx) ActiveBranch(ctx context.Context, branchID uint) (*models.Branch, error) {
	var branch models.Branch
	err := t.db.WithContext(ctx).Where("id = ? AND is_active = ?", branchID, true).First(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

func (t *shiftTx) HasActiveAssignment(ctx context.Context, staffID, branchID uint) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&models.StaffBranchAssignment{}).
		Where("staff_id = ? AND branch_id = ? AND is_active = ?", staffID, branchID, true).
		Count(&count).Error
	return count > 0, err
}

func (t *shiftTx) LockOpenShift(ctx context.Context, staffID uint) (*models.StaffShift, error) {
	var shift models.StaffShift
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("staff_id = ? AND ended_at IS NULL", staffID).
		First(&shift).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := t.db.WithContext(ctx).First(&shift.Branch, shift.BranchID).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (t *shiftTx) CloseShift(ctx context.Context, shift *models.StaffShift, at time.Time) error {
	if err := t.db.WithContext(ctx).Model(&models.StaffShift{}).
		Where("id = ?", shift.ID).
		Updates(map[string]any{"ended_at": at, "updated_at": at}).Error; err != nil {
		return err
	}
	shift.EndedAt = &at
	return nil
}

func (t *shiftTx) OpenShift(ctx context.Context, shift *models.StaffShift) error {
	return t.db.WithContext(ctx).Omit(clause.Associations).Create(shift).Error
}
