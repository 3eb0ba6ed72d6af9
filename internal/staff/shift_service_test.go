package staff

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type assignment struct{ staffID, branchID uint }

type memoryShifts struct {
	mu          sync.Mutex
	branches    map[uint]models.Branch
	assignments map[assignment]bool // value: is_active
	shifts      []*models.StaffShift
	nextID      uint
}

type memoryShiftTx struct{ s *memoryShifts }

func newMemoryShifts() *memoryShifts {
	return &memoryShifts{
		branches: map[uint]models.Branch{
			1: {ID: 1, Name: "Beresht", Code: "beresht", IsActive: true},
			2: {ID: 2, Name: "Madi", Code: "madi", IsActive: true},
			3: {ID: 3, Name: "Closed", Code: "closed", IsActive: false},
		},
		assignments: map[assignment]bool{
			{5, 1}: true,
			{5, 2}: true,
			{5, 3}: true,
			{6, 1}: false,
		},
	}
}

func (m *memoryShifts) ActiveShift(_ context.Context, staffID uint) (*models.StaffShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sh := range m.shifts {
		if sh.StaffID == staffID && sh.IsOpen() {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryShifts) open(staffID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sh := range m.shifts {
		if sh.StaffID == staffID && sh.IsOpen() {
			n++
		}
	}
	return n
}

// writes are applied directly; the service only errors before it writes
func (m *memoryShifts) WithTx(ctx context.Context, fn func(context.Context, ShiftTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, &memoryShiftTx{s: m})
}

func (tx *memoryShiftTx) ActiveBranch(_ context.Context, branchID uint) (*models.Branch, error) {
	b, ok := tx.s.branches[branchID]
	if !ok || !b.IsActive {
		return nil, nil
	}
	return &b, nil
}

func (tx *memoryShiftTx) HasActiveAssignment(_ context.Context, staffID, branchID uint) (bool, error) {
	return tx.s.assignments[assignment{staffID, branchID}], nil
}

func (tx *memoryShiftTx) LockOpenShift(_ context.Context, staffID uint) (*models.StaffShift, error) {
	for _, sh := range tx.s.shifts {
		if sh.StaffID == staffID && sh.IsOpen() {
			return sh, nil
		}
	}
	return nil, nil
}

func (tx *memoryShiftTx) CloseShift(_ context.Context, shift *models.StaffShift, at time.Time) error {
	shift.EndedAt = &at
	return nil
}

func (tx *memoryShiftTx) OpenShift(_ context.Context, shift *models.StaffShift) error {
	tx.s.nextID++
	shift.ID = tx.s.nextID
	shift.Branch = tx.s.branches[shift.BranchID]
	stored := *shift
	tx.s.shifts = append(tx.s.shifts, &stored)
	return nil
}

func TestStartAndEndShift(t *testing.T) {
	store := newMemoryShifts()
	svc := NewShiftService(store, zap.NewNop())
	ctx := context.Background()

	shift, err := svc.Start(ctx, 5, 1)
	require.NoError(t, err)
	require.True(t, shift.IsOpen())
	require.Equal(t, "beresht", shift.Branch.Code)

	active, err := svc.ActiveShift(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint(1), active.BranchID)

	ended, err := svc.End(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)

	active, err = svc.ActiveShift(ctx, 5)
	require.NoError(t, err)
	require.Nil(t, active)
}

func TestStartClosesPreviousShift(t *testing.T) {
	store := newMemoryShifts()
	svc := NewShiftService(store, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Start(ctx, 5, 1)
	require.NoError(t, err)
	_, err = svc.Start(ctx, 5, 2)
	require.NoError(t, err)

	require.Equal(t, 1, store.open(5))
	active, err := svc.ActiveShift(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint(2), active.BranchID)
	require.NotNil(t, store.shifts[0].EndedAt)
}

func TestStartRejections(t *testing.T) {
	svc := NewShiftService(newMemoryShifts(), zap.NewNop())
	ctx := context.Background()

	cases := []struct {
		name     string
		staffID  uint
		branchID uint
		msg      string
	}{
		{"no branch", 5, 0, "This field is required."},
		{"unknown branch", 5, 99, "Branch not found or inactive."},
		{"inactive branch", 5, 3, "Branch not found or inactive."},
		{"not assigned", 7, 1, "Staff is not assigned to this branch."},
		{"inactive assignment", 6, 1, "Staff is not assigned to this branch."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Start(ctx, tc.staffID, tc.branchID)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.msg, verr.Fields["branch_id"])
		})
	}
}

func TestEndWithoutShift(t *testing.T) {
	svc := NewShiftService(newMemoryShifts(), zap.NewNop())

	_, err := svc.End(context.Background(), 5)
	require.True(t, apperr.IsValidation(err))
}

type brokenShifts struct{ memoryShifts }

func (b *brokenShifts) WithTx(context.Context, func(context.Context, ShiftTx) error) error {
	return errors.New("connection reset")
}

func TestStoreFailureIsWrapped(t *testing.T) {
	svc := NewShiftService(&brokenShifts{}, zap.NewNop())

	_, err := svc.Start(context.Background(), 5, 1)
	require.ErrorContains(t, err, "start shift: connection reset")
	require.False(t, apperr.IsValidation(err))
}
