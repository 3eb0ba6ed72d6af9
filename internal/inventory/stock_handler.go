package inventory

import (
	"context"
	"time"

	"miyan-backend/internal/access"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/models"
	"miyan-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// StockLister reads the stock ledger. A nil branchID lists every branch.
type StockLister interface {
	ListBasicStocks(ctx context.Context, branchID *uint) ([]models.BranchBasicItemStock, error)
	ListRecipeStocks(ctx context.Context, branchID *uint) ([]models.BranchRecipeStock, error)
}

type StockResponse struct {
	ID        uint      `json:"id"`
	Branch    BranchRef `json:"branch"`
	ItemID    uint      `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Unit      string    `json:"unit,omitempty"`
	Quantity  string    `json:"quantity"`
	UpdatedAt string    `json:"updated_at"`
}

func stockScope(c *fiber.Ctx, policy *access.Policy) (access.Scope, error) {
	caller, err := auth.CallerFrom(c)
	if err != nil {
		return access.Scope{}, err
	}
	branch, err := validation.QueryUint(c, "branch")
	if err != nil {
		return access.Scope{}, err
	}
	return policy.StockListScope(c.UserContext(), caller, branch)
}

// GET /api/inventory/basic-stocks?branch=1
func ListBasicStocksHandler(stocks StockLister, policy *access.Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := stockScope(c, policy)
		if err != nil {
			return err
		}

		rows, err := stocks.ListBasicStocks(c.UserContext(), scope.BranchID)
		if err != nil {
			return err
		}

		resp := make([]StockResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, StockResponse{
				ID:        r.ID,
				Branch:    toBranchRef(r.Branch),
				ItemID:    r.ItemID,
				ItemName:  r.Item.Name,
				Unit:      r.Item.Unit,
				Quantity:  r.Quantity.StringFixed(quantityScale),
				UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
			})
		}
		return c.JSON(resp)
	}
}

// GET /api/inventory/recipe-stocks?branch=1
func ListRecipeStocksHandler(stocks StockLister, policy *access.Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := stockScope(c, policy)
		if err != nil {
			return err
		}

		rows, err := stocks.ListRecipeStocks(c.UserContext(), scope.BranchID)
		if err != nil {
			return err
		}

		resp := make([]StockResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, StockResponse{
				ID:        r.ID,
				Branch:    toBranchRef(r.Branch),
				ItemID:    r.RecipeID,
				ItemName:  r.Recipe.Name,
				Quantity:  r.Quantity.StringFixed(quantityScale),
				UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
			})
		}
		return c.JSON(resp)
	}
}
