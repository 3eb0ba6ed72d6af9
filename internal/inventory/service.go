package inventory

import (
	"context"
	"fmt"

	"miyan-backend/internal/access"
	"miyan-backend/internal/apperr"
	"miyan-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	maxNoteLength    = 255
	// numeric(12,3): 9 integer digits, 3 fractional
	quantityScale = 3
)

var quantityLimit = decimal.New(1, 9)

// ItemRef names one catalog row: a basic item or a recipe.
type ItemRef struct {
	Type models.ItemType
	ID   uint
}

// Store is the persistence the adjustment service needs.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx StockTx) error) error
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]models.InventoryAdjustment, error)
}

// StockTx is the transactional view used by CreateAdjustment.
type StockTx interface {
	// GetBranch returns nil, nil when the branch does not exist.
	GetBranch(ctx context.Context, branchID uint) (*models.Branch, error)
	// ItemName returns ok=false when the item does not exist.
	ItemName(ctx context.Context, ref ItemRef) (name string, ok bool, err error)
	// LockStock returns the current quantity of the (branch, item) stock row,
	// creating it at zero first, and holds a write lock on it until the
	// transaction ends.
	LockStock(ctx context.Context, branchID uint, ref ItemRef) (decimal.Decimal, error)
	SetStock(ctx context.Context, branchID uint, ref ItemRef, qty decimal.Decimal) error
	InsertAdjustment(ctx context.Context, adj *models.InventoryAdjustment) error
}

type AdjustmentInput struct {
	BranchID    uint
	ItemType    models.ItemType
	BasicItemID *uint
	RecipeID    *uint
	Mode        models.AdjustmentMode
	Quantity    *decimal.Decimal
	Note        string
	RecordedBy  *uint // staff id, nil for accounts without a staff profile
}

type AdjustmentFilter struct {
	BranchID    *uint
	ItemType    models.ItemType
	BasicItemID *uint
	RecipeID    *uint
	Limit       int
}

// Service is the only writer of branch stock rows.
type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Validate checks the request shape without touching storage and returns the
// item reference it names. The branch is checked by CreateAdjustment.
func (in AdjustmentInput) Validate() (ItemRef, error) {
	v := &apperr.ValidationError{}
	var ref ItemRef

	switch in.ItemType {
	case models.ItemTypeBasic:
		if in.BasicItemID == nil || *in.BasicItemID == 0 {
			v.Add("basic_item_id", "Select a basic item.")
		} else {
			ref = ItemRef{Type: models.ItemTypeBasic, ID: *in.BasicItemID}
		}
		if in.RecipeID != nil {
			v.Add("recipe_id", "Must be empty when item_type is basic.")
		}
	case models.ItemTypeRecipe:
		if in.RecipeID == nil || *in.RecipeID == 0 {
			v.Add("recipe_id", "Select a recipe.")
		} else {
			ref = ItemRef{Type: models.ItemTypeRecipe, ID: *in.RecipeID}
		}
		if in.BasicItemID != nil {
			v.Add("basic_item_id", "Must be empty when item_type is recipe.")
		}
	default:
		v.Add("item_type", "Unknown item type.")
	}

	if !in.Mode.Valid() {
		v.Add("mode", "Unknown mode.")
	}

	if in.Quantity == nil {
		v.Add("quantity", "Quantity is required.")
	} else {
		q := *in.Quantity
		switch {
		case !q.Equal(q.Round(quantityScale)):
			v.Add("quantity", "Ensure that there are no more than 3 decimal places.")
		case q.Abs().GreaterThanOrEqual(quantityLimit):
			v.Add("quantity", "Ensure that there are no more than 9 digits before the decimal point.")
		case in.Mode == models.ModeSet && q.IsNegative():
			v.Add("quantity", "Quantity cannot be negative for set mode.")
		}
	}

	if len([]rune(in.Note)) > maxNoteLength {
		v.Add("note", "Ensure this field has no more than 255 characters.")
	}

	return ref, v.OrNil()
}

// CreateAdjustment applies one set/delta adjustment and appends its log row in
// a single transaction. The stock row is locked for the read-modify-write, so
// concurrent adjustments to the same (branch, item) serialize. A result below
// zero aborts the transaction and nothing is written.
func (s *Service) CreateAdjustment(ctx context.Context, in AdjustmentInput) (*models.InventoryAdjustment, error) {
	ref, err := in.Validate()
	if err != nil {
		return nil, err
	}
	if in.BranchID == 0 {
		return nil, apperr.Invalid("branch_id", "Branch is required.")
	}

	var adj *models.InventoryAdjustment
	err = s.store.WithTx(ctx, func(ctx context.Context, tx StockTx) error {
		branch, err := tx.GetBranch(ctx, in.BranchID)
		if err != nil {
			return err
		}
		if branch == nil || !branch.IsActive {
			return apperr.Invalid("branch_id", "Branch not found or inactive.")
		}

		name, ok, err := tx.ItemName(ctx, ref)
		if err != nil {
			return err
		}
		if !ok {
			if ref.Type == models.ItemTypeRecipe {
				return apperr.NotFound("recipe", "recipe_id")
			}
			return apperr.NotFound("basic item", "basic_item_id")
		}

		before, err := tx.LockStock(ctx, in.BranchID, ref)
		if err != nil {
			return err
		}

		after := *in.Quantity
		if in.Mode == models.ModeDelta {
			after = before.Add(*in.Quantity)
		}
		if after.IsNegative() {
			return apperr.Invalid("quantity", "Resulting stock cannot be negative.")
		}
		if after.GreaterThanOrEqual(quantityLimit) {
			return apperr.Invalid("quantity", "Resulting stock exceeds the maximum quantity.")
		}

		if err := tx.SetStock(ctx, in.BranchID, ref, after); err != nil {
			return err
		}

		row := &models.InventoryAdjustment{
			BranchID:     in.BranchID,
			ItemType:     ref.Type,
			Mode:         in.Mode,
			Quantity:     *in.Quantity,
			StockBefore:  before,
			StockAfter:   after,
			Note:         in.Note,
			RecordedByID: in.RecordedBy,
		}
		if ref.Type == models.ItemTypeBasic {
			row.BasicItemID = &ref.ID
		} else {
			row.RecipeID = &ref.ID
		}
		if err := tx.InsertAdjustment(ctx, row); err != nil {
			return err
		}

		row.Branch = *branch
		if ref.Type == models.ItemTypeBasic {
			row.BasicItem = &models.BasicItem{ID: ref.ID, Name: name}
		} else {
			row.Recipe = &models.Recipe{ID: ref.ID, Name: name}
		}
		adj = row
		return nil
	})
	if err != nil {
		if apperr.IsValidation(err) || apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create adjustment: %w", err)
	}

	s.log.Info("inventory adjusted",
		zap.Uint("adjustment_id", adj.ID),
		zap.Uint("branch_id", adj.BranchID),
		zap.String("item_type", string(adj.ItemType)),
		zap.Uint("item_id", ref.ID),
		zap.String("mode", string(adj.Mode)),
		zap.String("quantity", adj.Quantity.String()),
		zap.String("stock_before", adj.StockBefore.String()),
		zap.String("stock_after", adj.StockAfter.String()),
	)
	return adj, nil
}

// ListAdjustments returns the newest adjustments visible within scope.
func (s *Service) ListAdjustments(ctx context.Context, scope access.Scope, filter AdjustmentFilter) ([]models.InventoryAdjustment, error) {
	if scope.Empty {
		return []models.InventoryAdjustment{}, nil
	}
	filter.BranchID = scope.BranchID

	if filter.ItemType != "" && !filter.ItemType.Valid() {
		return nil, apperr.Invalid("item_type", "Unknown item type.")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}

	rows, err := s.store.ListAdjustments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	return rows, nil
}
