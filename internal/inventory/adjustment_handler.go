package inventory

import (
	"time"

	"miyan-backend/internal/access"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/models"
	"miyan-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateAdjustmentRequest struct {
	BranchID    *uint            `json:"branch_id"` // admins only; staff default to their shift
	ItemType    string           `json:"item_type" validate:"required,oneof=basic recipe"`
	BasicItemID *uint            `json:"basic_item_id"`
	RecipeID    *uint            `json:"recipe_id"`
	Mode        string           `json:"mode" validate:"required,oneof=set delta"`
	Quantity    *decimal.Decimal `json:"quantity" validate:"required"`
	Note        string           `json:"note"`
}

func (r CreateAdjustmentRequest) input() AdjustmentInput {
	return AdjustmentInput{
		ItemType:    models.ItemType(r.ItemType),
		BasicItemID: r.BasicItemID,
		RecipeID:    r.RecipeID,
		Mode:        models.AdjustmentMode(r.Mode),
		Quantity:    r.Quantity,
		Note:        r.Note,
	}
}

type BranchRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func toBranchRef(b models.Branch) BranchRef {
	return BranchRef{ID: b.ID, Name: b.Name, Code: b.Code}
}

type AdjustmentResponse struct {
	ID          uint                  `json:"id"`
	Branch      BranchRef             `json:"branch"`
	ItemType    models.ItemType       `json:"item_type"`
	BasicItemID *uint                 `json:"basic_item_id"`
	RecipeID    *uint                 `json:"recipe_id"`
	ItemName    string                `json:"item_name"`
	Mode        models.AdjustmentMode `json:"mode"`
	Quantity    string                `json:"quantity"`
	StockBefore string                `json:"stock_before"`
	StockAfter  string                `json:"stock_after"`
	Note        string                `json:"note"`
	RecordedBy  *uint                 `json:"recorded_by"`
	CreatedAt   string                `json:"created_at"`
}

func toAdjustmentResponse(a *models.InventoryAdjustment) AdjustmentResponse {
	resp := AdjustmentResponse{
		ID:          a.ID,
		Branch:      toBranchRef(a.Branch),
		ItemType:    a.ItemType,
		BasicItemID: a.BasicItemID,
		RecipeID:    a.RecipeID,
		Mode:        a.Mode,
		Quantity:    a.Quantity.StringFixed(quantityScale),
		StockBefore: a.StockBefore.StringFixed(quantityScale),
		StockAfter:  a.StockAfter.StringFixed(quantityScale),
		Note:        a.Note,
		RecordedBy:  a.RecordedByID,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
	switch {
	case a.BasicItem != nil:
		resp.ItemName = a.BasicItem.Name
	case a.Recipe != nil:
		resp.ItemName = a.Recipe.Name
	}
	return resp
}

// POST /api/inventory/adjustments
// Admins must name branch_id. Staff adjust the branch of their open shift; a
// branch_id naming another branch is refused.
func CreateAdjustmentHandler(svc *Service, policy *access.Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}

		var body CreateAdjustmentRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		in := body.input()
		if _, err := in.Validate(); err != nil {
			return err
		}

		ctx := c.UserContext()
		branchID, err := policy.AdjustmentBranch(ctx, caller, body.BranchID)
		if err != nil {
			return err
		}
		in.BranchID = branchID
		in.RecordedBy = caller.StaffID

		adj, err := svc.CreateAdjustment(ctx, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toAdjustmentResponse(adj))
	}
}

// GET /api/inventory/adjustments?branch=1&item_type=basic&basic_item=3&recipe=&limit=100
func ListAdjustmentsHandler(svc *Service, policy *access.Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}

		branch, err := validation.QueryUint(c, "branch")
		if err != nil {
			return err
		}
		basicItem, err := validation.QueryUint(c, "basic_item")
		if err != nil {
			return err
		}
		recipe, err := validation.QueryUint(c, "recipe")
		if err != nil {
			return err
		}
		limit, err := validation.QueryUint(c, "limit")
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		scope, err := policy.AdjustmentListScope(ctx, caller, branch)
		if err != nil {
			return err
		}

		filter := AdjustmentFilter{
			ItemType:    models.ItemType(c.Query("item_type")),
			BasicItemID: basicItem,
			RecipeID:    recipe,
		}
		if limit != nil {
			filter.Limit = int(*limit)
		}

		rows, err := svc.ListAdjustments(ctx, scope, filter)
		if err != nil {
			return err
		}

		resp := make([]AdjustmentResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toAdjustmentResponse(&rows[i]))
		}
		return c.JSON(resp)
	}
}
