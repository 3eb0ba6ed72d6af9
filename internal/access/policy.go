// Package access decides which branch a caller may read or adjust. Each
// endpoint calls one policy function explicitly; nothing is inherited.
package access

import (
	"context"
	"fmt"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/models"
)

const (
	msgStaffRequired  = "Staff profile required."
	msgShiftRequired  = "Active shift required."
	msgBranchMismatch = "Branch mismatch for active shift."
	msgBranchRequired = "Branch is required for adjustments."
)

// Caller is the authenticated identity taken from the access token.
type Caller struct {
	UserID  uint
	Name    string
	Role    models.UserRole
	StaffID *uint
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

// ShiftSource resolves the open shift of a staff member. It returns nil, nil
// when the staff member has no open shift.
type ShiftSource interface {
	ActiveShift(ctx context.Context, staffID uint) (*models.StaffShift, error)
}

type Policy struct {
	shifts ShiftSource
}

func NewPolicy(shifts ShiftSource) *Policy {
	return &Policy{shifts: shifts}
}

// Scope restricts a list query. Empty means the caller sees nothing.
type Scope struct {
	BranchID *uint
	Empty    bool
}

// ActiveBranch returns the branch of the caller's open shift.
func (p *Policy) ActiveBranch(ctx context.Context, caller Caller) (uint, error) {
	if caller.StaffID == nil {
		return 0, apperr.Forbidden(msgStaffRequired)
	}
	shift, err := p.shifts.ActiveShift(ctx, *caller.StaffID)
	if err != nil {
		return 0, fmt.Errorf("resolve active shift: %w", err)
	}
	if shift == nil {
		return 0, apperr.Forbidden(msgShiftRequired)
	}
	return shift.BranchID, nil
}

// AdjustmentBranch resolves the branch an adjustment is recorded against.
// Admins name any branch; everyone else is pinned to their active shift.
func (p *Policy) AdjustmentBranch(ctx context.Context, caller Caller, requested *uint) (uint, error) {
	if caller.IsAdmin() {
		if requested == nil || *requested == 0 {
			return 0, apperr.Invalid("branch_id", msgBranchRequired)
		}
		return *requested, nil
	}

	active, err := p.ActiveBranch(ctx, caller)
	if err != nil {
		return 0, err
	}
	if requested != nil && *requested != active {
		return 0, apperr.Forbidden(msgBranchMismatch)
	}
	return active, nil
}

// AdjustmentListScope: admins filter freely; staff see their active branch,
// or nothing when they have no profile or open shift.
func (p *Policy) AdjustmentListScope(ctx context.Context, caller Caller, requested *uint) (Scope, error) {
	if caller.IsAdmin() {
		return Scope{BranchID: requested}, nil
	}

	active, err := p.ActiveBranch(ctx, caller)
	if apperr.IsForbidden(err) {
		return Scope{Empty: true}, nil
	}
	if err != nil {
		return Scope{}, err
	}
	return Scope{BranchID: &active}, nil
}

// StockListScope: like AdjustmentListScope, but a missing shift or a filter
// naming another branch is a permission error.
func (p *Policy) StockListScope(ctx context.Context, caller Caller, requested *uint) (Scope, error) {
	if caller.IsAdmin() {
		return Scope{BranchID: requested}, nil
	}

	active, err := p.ActiveBranch(ctx, caller)
	if err != nil {
		return Scope{}, err
	}
	if requested != nil && *requested != active {
		return Scope{}, apperr.Forbidden(msgBranchMismatch)
	}
	return Scope{BranchID: &active}, nil
}
