// Package staff manages staff profiles, branch assignments and shifts. The
// open shift is what pins a staff member to a branch for inventory work.
package staff

import (
	"context"
	"fmt"
	"time"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/models"

	"go.uber.org/zap"
)

type ShiftStore interface {
	ActiveShift(ctx context.Context, staffID uint) (*models.StaffShift, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx ShiftTx) error) error
}

type ShiftTx interface {
	// ActiveBranch returns nil, nil when the branch is missing or inactive.
	ActiveBranch(ctx context.Context, branchID uint) (*models.Branch, error)
	HasActiveAssignment(ctx context.Context, staffID, branchID uint) (bool, error)
	// LockOpenShift returns the open shift FOR UPDATE, nil when none.
	LockOpenShift(ctx context.Context, staffID uint) (*models.StaffShift, error)
	CloseShift(ctx context.Context, shift *models.StaffShift, at time.Time) error
	OpenShift(ctx context.Context, shift *models.StaffShift) error
}

type ShiftService struct {
	store ShiftStore
	log   *zap.Logger
	now   func() time.Time
}

func NewShiftService(store ShiftStore, log *zap.Logger) *ShiftService {
	return &ShiftService{store: store, log: log, now: time.Now}
}

// ActiveShift satisfies access.ShiftSource.
func (s *ShiftService) ActiveShift(ctx context.Context, staffID uint) (*models.StaffShift, error) {
	return s.store.ActiveShift(ctx, staffID)
}

// Start opens a shift at branchID, closing any shift still open. The staff
// member must hold an active assignment to the branch.
func (s *ShiftService) Start(ctx context.Context, staffID, branchID uint) (*models.StaffShift, error) {
	if branchID == 0 {
		return nil, apperr.Invalid("branch_id", "This field is required.")
	}

	var opened *models.StaffShift
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ShiftTx) error {
		branch, err := tx.ActiveBranch(ctx, branchID)
		if err != nil {
			return err
		}
		if branch == nil {
			return apperr.Invalid("branch_id", "Branch not found or inactive.")
		}

		ok, err := tx.HasActiveAssignment(ctx, staffID, branchID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Invalid("branch_id", "Staff is not assigned to this branch.")
		}

		now := s.now()
		prev, err := tx.LockOpenShift(ctx, staffID)
		if err != nil {
			return err
		}
		if prev != nil {
			if err := tx.CloseShift(ctx, prev, now); err != nil {
				return err
			}
		}

		shift := &models.StaffShift{StaffID: staffID, BranchID: branchID, StartedAt: now}
		if err := tx.OpenShift(ctx, shift); err != nil {
			return err
		}
		shift.Branch = *branch
		opened = shift
		return nil
	})
	if err != nil {
		if apperr.IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("start shift: %w", err)
	}

	s.log.Info("shift started",
		zap.Uint("staff_id", staffID),
		zap.Uint("branch_id", branchID),
		zap.Uint("shift_id", opened.ID),
	)
	return opened, nil
}

// End closes the open shift.
func (s *ShiftService) End(ctx context.Context, staffID uint) (*models.StaffShift, error) {
	var closed *models.StaffShift
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ShiftTx) error {
		shift, err := tx.LockOpenShift(ctx, staffID)
		if err != nil {
			return err
		}
		if shift == nil {
			return apperr.Invalid("shift", "No active shift to end.")
		}
		if err := tx.CloseShift(ctx, shift, s.now()); err != nil {
			return err
		}
		closed = shift
		return nil
	})
	if err != nil {
		if apperr.IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("end shift: %w", err)
	}

	s.log.Info("shift ended",
		zap.Uint("staff_id", staffID),
		zap.Uint("branch_id", closed.BranchID),
		zap.Uint("shift_id", closed.ID),
	)
	return closed, nil
}
