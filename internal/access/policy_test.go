package access

import (
	"context"
	"errors"
	"testing"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/models"

	"github.com/stretchr/testify/require"
)

type shiftMap map[uint]uint // staff id -> branch id

func (m shiftMap) ActiveShift(_ context.Context, staffID uint) (*models.StaffShift, error) {
	branchID, ok := m[staffID]
	if !ok {
		return nil, nil
	}
	return &models.StaffShift{StaffID: staffID, BranchID: branchID}, nil
}

type failingShifts struct{}

func (failingShifts) ActiveShift(context.Context, uint) (*models.StaffShift, error) {
	return nil, errors.New("db down")
}

func ptr(v uint) *uint { return &v }

func staffCaller(staffID uint) Caller {
	return Caller{UserID: 10 + staffID, Role: models.RoleStaff, StaffID: ptr(staffID)}
}

func TestAdjustmentBranchAdmin(t *testing.T) {
	p := NewPolicy(shiftMap{})
	admin := Caller{UserID: 1, Role: models.RoleAdmin}
	ctx := context.Background()

	branch, err := p.AdjustmentBranch(ctx, admin, ptr(7))
	require.NoError(t, err)
	require.Equal(t, uint(7), branch)

	_, err = p.AdjustmentBranch(ctx, admin, nil)
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "branch_id")
}

func TestAdjustmentBranchStaff(t *testing.T) {
	p := NewPolicy(shiftMap{1: 100})
	ctx := context.Background()

	branch, err := p.AdjustmentBranch(ctx, staffCaller(1), nil)
	require.NoError(t, err)
	require.Equal(t, uint(100), branch)

	branch, err = p.AdjustmentBranch(ctx, staffCaller(1), ptr(100))
	require.NoError(t, err)
	require.Equal(t, uint(100), branch)
}

func TestAdjustmentBranchMismatchIsForbidden(t *testing.T) {
	p := NewPolicy(shiftMap{1: 100})

	_, err := p.AdjustmentBranch(context.Background(), staffCaller(1), ptr(200))
	require.True(t, apperr.IsForbidden(err))
	require.EqualError(t, err, "Branch mismatch for active shift.")
}

func TestAdjustmentBranchRequiresShiftAndProfile(t *testing.T) {
	p := NewPolicy(shiftMap{})
	ctx := context.Background()

	_, err := p.AdjustmentBranch(ctx, staffCaller(2), nil)
	require.EqualError(t, err, "Active shift required.")

	_, err = p.AdjustmentBranch(ctx, Caller{UserID: 3, Role: models.RoleStaff}, nil)
	require.EqualError(t, err, "Staff profile required.")
}

func TestAdjustmentListScope(t *testing.T) {
	p := NewPolicy(shiftMap{1: 100})
	ctx := context.Background()

	scope, err := p.AdjustmentListScope(ctx, Caller{Role: models.RoleAdmin}, nil)
	require.NoError(t, err)
	require.Nil(t, scope.BranchID)
	require.False(t, scope.Empty)

	scope, err = p.AdjustmentListScope(ctx, Caller{Role: models.RoleAdmin}, ptr(5))
	require.NoError(t, err)
	require.Equal(t, uint(5), *scope.BranchID)

	// staff filter is ignored, the active branch wins
	scope, err = p.AdjustmentListScope(ctx, staffCaller(1), ptr(5))
	require.NoError(t, err)
	require.Equal(t, uint(100), *scope.BranchID)

	scope, err = p.AdjustmentListScope(ctx, staffCaller(9), nil)
	require.NoError(t, err)
	require.True(t, scope.Empty)
}

func TestStockListScope(t *testing.T) {
	p := NewPolicy(shiftMap{1: 100})
	ctx := context.Background()

	scope, err := p.StockListScope(ctx, staffCaller(1), nil)
	require.NoError(t, err)
	require.Equal(t, uint(100), *scope.BranchID)

	_, err = p.StockListScope(ctx, staffCaller(1), ptr(5))
	require.True(t, apperr.IsForbidden(err))

	_, err = p.StockListScope(ctx, staffCaller(9), nil)
	require.True(t, apperr.IsForbidden(err))
}

func TestShiftLookupFailureIsNotMaskedAsEmpty(t *testing.T) {
	p := NewPolicy(failingShifts{})

	_, err := p.AdjustmentListScope(context.Background(), staffCaller(1), nil)
	require.Error(t, err)
	require.False(t, apperr.IsForbidden(err))
}
