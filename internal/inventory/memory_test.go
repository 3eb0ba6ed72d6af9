package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"miyan-backend/internal/models"

	"github.com/shopspring/decimal"
)

// memoryStore serializes transactions with one mutex, standing in for the row
// lock. Writes are staged and applied only when fn returns nil.
type memoryStore struct {
	mu          sync.Mutex
	branches    map[uint]models.Branch
	basicItems  map[uint]models.BasicItem
	recipes     map[uint]models.Recipe
	stock       map[string]decimal.Decimal
	adjustments []models.InventoryAdjustment
	nextID      uint
	lockErr     error // returned from LockStock when set
}

type memoryTx struct {
	store   *memoryStore
	stock   map[string]decimal.Decimal
	pending []models.InventoryAdjustment
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		branches: map[uint]models.Branch{
			1: {ID: 1, Name: "Beresht", Code: "beresht", IsActive: true},
			2: {ID: 2, Name: "Madi", Code: "madi", IsActive: true},
			3: {ID: 3, Name: "Closed", Code: "closed", IsActive: false},
		},
		basicItems: map[uint]models.BasicItem{
			10: {ID: 10, Name: "Rice", Unit: "kg"},
			11: {ID: 11, Name: "Saffron", Unit: "g"},
		},
		recipes: map[uint]models.Recipe{
			20: {ID: 20, Name: "Tahdig"},
		},
		stock: map[string]decimal.Decimal{},
	}
}

func stockKey(branchID uint, ref ItemRef) string {
	return fmt.Sprintf("%d:%s:%d", branchID, ref.Type, ref.ID)
}

func (s *memoryStore) quantity(branchID uint, ref ItemRef) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.stock[stockKey(branchID, ref)]
	return q, ok
}

func (s *memoryStore) logFor(branchID uint, ref ItemRef) []models.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.InventoryAdjustment
	for _, a := range s.adjustments {
		if a.BranchID == branchID && a.ItemType == ref.Type && a.ItemID() == ref.ID {
			out = append(out, a)
		}
	}
	return out
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, StockTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, stock: map[string]decimal.Decimal{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, v := range tx.stock {
		s.stock[k] = v
	}
	s.adjustments = append(s.adjustments, tx.pending...)
	return nil
}

func (s *memoryStore) ListAdjustments(_ context.Context, f AdjustmentFilter) ([]models.InventoryAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.InventoryAdjustment
	for i := len(s.adjustments) - 1; i >= 0; i-- {
		a := s.adjustments[i]
		if f.BranchID != nil && a.BranchID != *f.BranchID {
			continue
		}
		if f.ItemType != "" && a.ItemType != f.ItemType {
			continue
		}
		if f.BasicItemID != nil && (a.BasicItemID == nil || *a.BasicItemID != *f.BasicItemID) {
			continue
		}
		if f.RecipeID != nil && (a.RecipeID == nil || *a.RecipeID != *f.RecipeID) {
			continue
		}
		a.Branch = s.branches[a.BranchID]
		out = append(out, a)
		if len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *memoryStore) ListBasicStocks(_ context.Context, branchID *uint) ([]models.BranchBasicItemStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.BranchBasicItemStock
	for bid, branch := range s.branches {
		if branchID != nil && bid != *branchID {
			continue
		}
		for iid, item := range s.basicItems {
			q, ok := s.stock[stockKey(bid, ItemRef{Type: models.ItemTypeBasic, ID: iid})]
			if !ok {
				continue
			}
			out = append(out, models.BranchBasicItemStock{BranchID: bid, Branch: branch, ItemID: iid, Item: item, Quantity: q})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BranchID != out[j].BranchID {
			return out[i].BranchID < out[j].BranchID
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

func (s *memoryStore) ListRecipeStocks(_ context.Context, branchID *uint) ([]models.BranchRecipeStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.BranchRecipeStock
	for bid, branch := range s.branches {
		if branchID != nil && bid != *branchID {
			continue
		}
		for rid, recipe := range s.recipes {
			q, ok := s.stock[stockKey(bid, ItemRef{Type: models.ItemTypeRecipe, ID: rid})]
			if !ok {
				continue
			}
			out = append(out, models.BranchRecipeStock{BranchID: bid, Branch: branch, RecipeID: rid, Recipe: recipe, Quantity: q})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BranchID < out[j].BranchID })
	return out, nil
}

func (tx *memoryTx) GetBranch(_ context.Context, branchID uint) (*models.Branch, error) {
	b, ok := tx.store.branches[branchID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (tx *memoryTx) ItemName(_ context.Context, ref ItemRef) (string, bool, error) {
	switch ref.Type {
	case models.ItemTypeBasic:
		it, ok := tx.store.basicItems[ref.ID]
		return it.Name, ok, nil
	case models.ItemTypeRecipe:
		r, ok := tx.store.recipes[ref.ID]
		return r.Name, ok, nil
	}
	return "", false, nil
}

func (tx *memoryTx) LockStock(_ context.Context, branchID uint, ref ItemRef) (decimal.Decimal, error) {
	if tx.store.lockErr != nil {
		return decimal.Zero, tx.store.lockErr
	}
	key := stockKey(branchID, ref)
	if q, ok := tx.stock[key]; ok {
		return q, nil
	}
	q, ok := tx.store.stock[key]
	if !ok {
		q = decimal.Zero
	}
	tx.stock[key] = q
	return q, nil
}

func (tx *memoryTx) SetStock(_ context.Context, branchID uint, ref ItemRef, qty decimal.Decimal) error {
	key := stockKey(branchID, ref)
	if _, ok := tx.stock[key]; !ok {
		return fmt.Errorf("stock row %s not locked", key)
	}
	tx.stock[key] = qty
	return nil
}

func (tx *memoryTx) InsertAdjustment(_ context.Context, adj *models.InventoryAdjustment) error {
	tx.store.nextID++
	adj.ID = tx.store.nextID
	adj.CreatedAt = time.Now()
	tx.pending = append(tx.pending, *adj)
	return nil
}
