package admin

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/audit"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/models"
	"miyan-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var codePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type BranchResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Address   string `json:"address"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type CreateBranchRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Code     string `json:"code" validate:"required,max=50"`
	Address  string `json:"address" validate:"max=255"`
	IsActive *bool  `json:"is_active"`
}

type UpdateBranchRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Code     *string `json:"code" validate:"omitempty,max=50"`
	Address  *string `json:"address" validate:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

type BranchStaffResponse struct {
	StaffID   uint   `json:"staff_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsPrimary bool   `json:"is_primary"`
	IsActive  bool   `json:"is_active"`
	OnShift   bool   `json:"on_shift"`
}

func toBranchResponse(b models.Branch) BranchResponse {
	return BranchResponse{
		ID:        b.ID,
		Name:      b.Name,
		Code:      b.Code,
		Address:   b.Address,
		IsActive:  b.IsActive,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

func normalizeCode(raw string) (string, error) {
	code := strings.ToLower(strings.TrimSpace(raw))
	if !codePattern.MatchString(code) {
		return "", apperr.Invalid("code", "Use lowercase letters, digits and dashes.")
	}
	return code, nil
}

func branchSaveError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Invalid("code", "A branch with this name or code already exists.")
	}
	return err
}

func insertBranch(tx *gorm.DB, branch *models.Branch) error {
	return branchSaveError(tx.Create(branch).Error)
}

func findBranch(db *gorm.DB, id uint) (models.Branch, error) {
	var branch models.Branch
	err := db.First(&branch, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return branch, apperr.NotFound("branch", "")
	}
	return branch, err
}

// ----------------------------------------
// BRANCH CRUD
// ----------------------------------------

// GET /api/branches
// Public list of active branches.
func PublicBranchesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branches []models.Branch
		if err := db.WithContext(c.UserContext()).Where("is_active = ?", true).Order("name").Find(&branches).Error; err != nil {
			return err
		}
		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, toBranchResponse(b))
		}
		return c.JSON(res)
	}
}

func CreateBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		var body CreateBranchRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		code, err := normalizeCode(body.Code)
		if err != nil {
			return err
		}

		branch := models.Branch{
			Name:     strings.TrimSpace(body.Name),
			Code:     code,
			Address:  strings.TrimSpace(body.Address),
			IsActive: body.IsActive == nil || *body.IsActive,
		}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := insertBranch(tx, &branch); err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BranchID:    &branch.ID,
				Caller:      caller,
				EntityType:  "branch",
				EntityID:    branch.ID,
				Action:      models.AuditActionCreate,
				Description: "Branch created: " + branch.Code,
				After:       toBranchResponse(branch),
			})
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toBranchResponse(branch))
	}
}

// GET /api/admin/branches
// Includes inactive branches.
func ListBranchesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branches []models.Branch
		if err := db.WithContext(c.UserContext()).Order("id").Find(&branches).Error; err != nil {
			return err
		}
		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, toBranchResponse(b))
		}
		return c.JSON(res)
	}
}

func GetBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}
		branch, err := findBranch(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toBranchResponse(branch))
	}
}

func UpdateBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}
		var body UpdateBranchRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		var branch models.Branch
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			branch, err = findBranch(tx, id)
			if err != nil {
				return err
			}
			before := toBranchResponse(branch)

			if body.Name != nil {
				name := strings.TrimSpace(*body.Name)
				if name == "" {
					return apperr.Invalid("name", "This field may not be blank.")
				}
				branch.Name = name
			}
			if body.Code != nil {
				code, err := normalizeCode(*body.Code)
				if err != nil {
					return err
				}
				branch.Code = code
			}
			if body.Address != nil {
				branch.Address = strings.TrimSpace(*body.Address)
			}
			if body.IsActive != nil {
				branch.IsActive = *body.IsActive
			}

			if err := tx.Save(&branch).Error; err != nil {
				return branchSaveError(err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BranchID:    &branch.ID,
				Caller:      caller,
				EntityType:  "branch",
				EntityID:    branch.ID,
				Action:      models.AuditActionUpdate,
				Description: "Branch updated: " + branch.Code,
				Before:      before,
				After:       toBranchResponse(branch),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(toBranchResponse(branch))
	}
}

// DELETE /api/admin/branches/:id
// Stock rows and adjustments reference branches with ON DELETE RESTRICT, so a
// branch that ever held stock cannot be removed; deactivate it instead.
func DeleteBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			branch, err := findBranch(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Delete(&models.Branch{}, id).Error; err != nil {
				if errors.Is(err, gorm.ErrForeignKeyViolated) {
					return apperr.Conflict("Branch has stock or adjustment history; deactivate it instead.")
				}
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Caller:      caller,
				EntityType:  "branch",
				EntityID:    branch.ID,
				Action:      models.AuditActionDelete,
				Description: "Branch deleted: " + branch.Code,
				Before:      toBranchResponse(branch),
			})
		})
		if err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----------------------------------------
// BRANCH STAFF
// GET /api/admin/branches/:id/staff
// ----------------------------------------

func ListBranchStaffHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c)
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		if _, err := findBranch(db.WithContext(ctx), id); err != nil {
			return err
		}

		var rows []BranchStaffResponse
		err = db.WithContext(ctx).
			Table("staff_branch_assignments AS a").
			Select(`a.staff_id, u.name, u.email, a.is_primary, a.is_active,
				EXISTS (
					SELECT 1 FROM staff_shifts s
					WHERE s.staff_id = a.staff_id AND s.branch_id = a.branch_id AND s.ended_at IS NULL
				) AS on_shift`).
			Joins("JOIN staffs st ON st.id = a.staff_id").
			Joins("JOIN users u ON u.id = st.user_id").
			Where("a.branch_id = ?", id).
			Order("u.name").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		if rows == nil {
			rows = []BranchStaffResponse{}
		}
		return c.JSON(rows)
	}
}
