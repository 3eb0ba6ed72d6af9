package staff

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"miyan-backend/internal/access"
	"miyan-backend/internal/apperr"
	"miyan-backend/internal/audit"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/config"
	"miyan-backend/internal/models"
	"miyan-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const botSecretHeader = "X-BOT-SECRET"

type RegisterStaffRequest struct {
	Name               string `json:"name" validate:"required,max=100"`
	Email              string `json:"email" validate:"required,email,max=100"`
	Password           string `json:"password" validate:"required,min=8"`
	LanguagePreference string `json:"language_preference" validate:"omitempty,oneof=fa en"`
	BranchID           *uint  `json:"branch_id"`
}

type RefreshTokenRequest struct {
	StaffID uint `json:"staff_id" validate:"required"`
}

type AssignmentRequest struct {
	StaffID   uint  `json:"staff_id" validate:"required"`
	BranchID  uint  `json:"branch_id" validate:"required"`
	IsPrimary bool  `json:"is_primary"`
	IsActive  *bool `json:"is_active"`
}

type TelegramLinkRequest struct {
	TelegramToken string `json:"telegram_token" validate:"required"`
	TelegramID    string `json:"telegram_id" validate:"max=64"`
}

type TelegramTokenRequest struct {
	TelegramID string `json:"telegram_id" validate:"required,max=64"`
}

type StaffResponse struct {
	ID                 uint            `json:"id"`
	UserID             uint            `json:"user_id"`
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	TelegramToken      string          `json:"telegram_token"`
	TelegramID         *string         `json:"telegram_id"`
	LanguagePreference models.Language `json:"language_preference"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
}

type AssignmentResponse struct {
	ID        uint      `json:"id"`
	StaffID   uint      `json:"staff_id"`
	Branch    BranchRef `json:"branch"`
	IsPrimary bool      `json:"is_primary"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt string    `json:"updated_at"`
}

// NewTelegramToken returns a fresh 32-char hex link token.
func NewTelegramToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func toStaffResponse(s models.Staff) StaffResponse {
	return StaffResponse{
		ID:                 s.ID,
		UserID:             s.UserID,
		Name:               s.User.Name,
		Email:              s.User.Email,
		TelegramToken:      s.TelegramToken,
		TelegramID:         s.TelegramID,
		LanguagePreference: s.LanguagePreference,
		CreatedAt:          s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          s.UpdatedAt.Format(time.RFC3339),
	}
}

func toAssignmentResponse(a models.StaffBranchAssignment) AssignmentResponse {
	return AssignmentResponse{
		ID:        a.ID,
		StaffID:   a.StaffID,
		Branch:    toBranchRef(a.Branch),
		IsPrimary: a.IsPrimary,
		IsActive:  a.IsActive,
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

func loadStaff(db *gorm.DB, where string, args ...any) (models.Staff, error) {
	var s models.Staff
	err := db.Preload("User").Where(where, args...).First(&s).Error
	return s, err
}

func requireActiveBranch(tx *gorm.DB, branchID uint) (models.Branch, error) {
	var branch models.Branch
	err := tx.Where("id = ? AND is_active = ?", branchID, true).First(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return branch, apperr.Invalid("branch_id", "Branch not found or inactive.")
	}
	return branch, err
}

// POST /api/staff/register
// Creates the user account, the staff profile and, when branch_id is given,
// a primary assignment, all in one transaction.
func RegisterStaffHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		var body RegisterStaffRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		lang := models.LanguagePersian
		if body.LanguagePreference != "" {
			lang = models.Language(body.LanguagePreference)
		}
		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			return err
		}

		var staff models.Staff
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var branch *models.Branch
			if body.BranchID != nil {
				b, err := requireActiveBranch(tx, *body.BranchID)
				if err != nil {
					return err
				}
				branch = &b
			}

			user := models.User{
				Name:         strings.TrimSpace(body.Name),
				Email:        strings.TrimSpace(strings.ToLower(body.Email)),
				PasswordHash: hash,
				Role:         models.RoleStaff,
			}
			if err := tx.Create(&user).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperr.Invalid("email", "Email already registered.")
				}
				return err
			}

			staff = models.Staff{UserID: user.ID, TelegramToken: NewTelegramToken(), LanguagePreference: lang}
			if err := tx.Omit(clause.Associations).Create(&staff).Error; err != nil {
				return err
			}
			staff.User = user

			if branch != nil {
				assignment := models.StaffBranchAssignment{StaffID: staff.ID, BranchID: branch.ID, IsPrimary: true, IsActive: true}
				if err := tx.Omit(clause.Associations).Create(&assignment).Error; err != nil {
					return err
				}
			}

			return audit.WriteLog(tx, audit.LogOptions{
				BranchID:    body.BranchID,
				Caller:      caller,
				EntityType:  "staff",
				EntityID:    staff.ID,
				Action:      models.AuditActionCreate,
				Description: "Staff registered: " + user.Email,
				After:       fiber.Map{"user_id": user.ID, "email": user.Email, "branch_id": body.BranchID},
			})
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toStaffResponse(staff))
	}
}

// GET /api/staff
func ListStaffHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var list []models.Staff
		if err := db.WithContext(c.UserContext()).Preload("User").Order("id").Find(&list).Error; err != nil {
			return err
		}
		resp := make([]StaffResponse, 0, len(list))
		for _, s := range list {
			resp = append(resp, toStaffResponse(s))
		}
		return c.JSON(resp)
	}
}

// GET /api/staff/me
func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staffID, err := callerStaffID(c)
		if err != nil {
			return err
		}
		s, err := loadStaff(db.WithContext(c.UserContext()), "staffs.id = ?", staffID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("staff profile", "")
		}
		if err != nil {
			return err
		}
		return c.JSON(toStaffResponse(s))
	}
}

// POST /api/staff/refresh-telegram-token
// Rotating the token invalidates any link code handed out earlier.
func RefreshTelegramTokenHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		var body RefreshTokenRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		token := NewTelegramToken()
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Staff{}).Where("id = ?", body.StaffID).
				Updates(map[string]any{"telegram_token": token, "updated_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.NotFound("staff", "staff_id")
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Caller:      caller,
				EntityType:  "staff",
				EntityID:    body.StaffID,
				Action:      models.AuditActionUpdate,
				Description: "Telegram token rotated",
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"telegram_token": token})
	}
}

// GET /api/staff/assignments?staff_id=1
func ListAssignmentsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staffID, err := validation.QueryUint(c, "staff_id")
		if err != nil {
			return err
		}
		q := db.WithContext(c.UserContext()).Preload("Branch")
		if staffID != nil {
			q = q.Where("staff_id = ?", *staffID)
		}
		var rows []models.StaffBranchAssignment
		if err := q.Order("staff_id, branch_id").Find(&rows).Error; err != nil {
			return err
		}
		resp := make([]AssignmentResponse, 0, len(rows))
		for _, a := range rows {
			resp = append(resp, toAssignmentResponse(a))
		}
		return c.JSON(resp)
	}
}

// POST /api/staff/assignments
// Upserts the (staff, branch) assignment. Marking it primary clears the flag
// on the staff member's other assignments.
func UpsertAssignmentHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := auth.CallerFrom(c)
		if err != nil {
			return err
		}
		var body AssignmentRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		active := true
		if body.IsActive != nil {
			active = *body.IsActive
		}

		var row models.StaffBranchAssignment
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Staff{}).Where("id = ?", body.StaffID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperr.NotFound("staff", "staff_id")
			}
			branch, err := requireActiveBranch(tx, body.BranchID)
			if err != nil {
				return err
			}

			if body.IsPrimary {
				if err := tx.Model(&models.StaffBranchAssignment{}).
					Where("staff_id = ? AND branch_id <> ?", body.StaffID, body.BranchID).
					Update("is_primary", false).Error; err != nil {
					return err
				}
			}

			now := time.Now()
			row = models.StaffBranchAssignment{
				StaffID:   body.StaffID,
				BranchID:  body.BranchID,
				IsPrimary: body.IsPrimary,
				IsActive:  active,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := upsertAssignment(tx, &row); err != nil {
				return err
			}
			if err := tx.Where("staff_id = ? AND branch_id = ?", body.StaffID, body.BranchID).First(&row).Error; err != nil {
				return err
			}
			row.Branch = branch

			return audit.WriteLog(tx, audit.LogOptions{
				BranchID:    &body.BranchID,
				Caller:      caller,
				EntityType:  "staff_assignment",
				EntityID:    row.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Staff %d assigned to %s", body.StaffID, branch.Code),
				After:       toAssignmentResponse(row),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(toAssignmentResponse(row))
	}
}

// upsertAssignment inserts or updates the (staff, branch) assignment. The
// update keeps the row id and created_at.
func upsertAssignment(tx *gorm.DB, row *models.StaffBranchAssignment) error {
	return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "staff_id"}, {Name: "branch_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_primary", "is_active", "updated_at"}),
	}).Create(row).Error
}

func issueToken(cfg *config.Config, s models.Staff) (string, error) {
	return auth.GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &s.User, &s.ID)
}

// POST /api/telegram/link
// Public: the link token itself is the credential. Binds the telegram id to
// the staff profile and returns an access token. The link token stays valid
// after linking until an admin calls refresh-telegram-token.
func TelegramLinkHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TelegramLinkRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		ctx := c.UserContext()

		s, err := loadStaff(db.WithContext(ctx), "telegram_token = ?", strings.TrimSpace(body.TelegramToken))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Invalid("telegram_token", "Invalid token")
		}
		if err != nil {
			return err
		}

		var telegramID *string
		updates := map[string]any{"telegram_id": gorm.Expr("NULL"), "updated_at": time.Now()}
		if id := strings.TrimSpace(body.TelegramID); id != "" {
			telegramID = &id
			updates["telegram_id"] = id
		}
		if err := db.WithContext(ctx).Model(&models.Staff{}).Where("id = ?", s.ID).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("Telegram account is linked to another staff member.")
			}
			return err
		}
		s.TelegramID = telegramID

		token, err := issueToken(cfg, s)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"staff": toStaffResponse(s),
			"token": token,
		})
	}
}

// POST /api/telegram/token
// Bot-only (X-BOT-SECRET): exchanges a linked telegram id for an access token
// and reports the branch of the open shift, if any.
func TelegramTokenHandler(db *gorm.DB, cfg *config.Config, shifts access.ShiftSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := c.Get(botSecretHeader)
		if cfg.BotSharedSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.BotSharedSecret)) != 1 {
			return fiber.NewError(fiber.StatusForbidden, "Forbidden")
		}

		var body TelegramTokenRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		ctx := c.UserContext()

		s, err := loadStaff(db.WithContext(ctx), "telegram_id = ?", strings.TrimSpace(body.TelegramID))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("telegram link", "telegram_id")
		}
		if err != nil {
			return err
		}

		token, err := issueToken(cfg, s)
		if err != nil {
			return err
		}

		shift, err := shifts.ActiveShift(ctx, s.ID)
		if err != nil {
			return err
		}
		var activeBranch *BranchRef
		if shift != nil {
			ref := toBranchRef(shift.Branch)
			activeBranch = &ref
		}

		return c.JSON(fiber.Map{
			"token":         token,
			"staff":         toStaffResponse(s),
			"active_branch": activeBranch,
		})
	}
}
