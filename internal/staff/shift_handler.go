package staff

import (
	"time"

	"miyan-backend/internal/apperr"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/models"
	"miyan-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type StartShiftRequest struct {
	BranchID uint `json:"branch_id" validate:"required"`
}

type BranchRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type ShiftResponse struct {
	ID        uint      `json:"id"`
	Branch    BranchRef `json:"branch"`
	StartedAt string    `json:"started_at"`
	EndedAt   *string   `json:"ended_at"`
	Active    bool      `json:"active"`
}

func toBranchRef(b models.Branch) BranchRef {
	return BranchRef{ID: b.ID, Name: b.Name, Code: b.Code}
}

func toShiftResponse(s *models.StaffShift) ShiftResponse {
	resp := ShiftResponse{
		ID:        s.ID,
		Branch:    toBranchRef(s.Branch),
		StartedAt: s.StartedAt.Format(time.RFC3339),
		Active:    s.IsOpen(),
	}
	if s.EndedAt != nil {
		ended := s.EndedAt.Format(time.RFC3339)
		resp.EndedAt = &ended
	}
	return resp
}

func callerStaffID(c *fiber.Ctx) (uint, error) {
	caller, err := auth.CallerFrom(c)
	if err != nil {
		return 0, err
	}
	if caller.StaffID == nil {
		return 0, apperr.NotFound("staff profile", "")
	}
	return *caller.StaffID, nil
}

// GET /api/shifts/current
func CurrentShiftHandler(shifts *ShiftService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staffID, err := callerStaffID(c)
		if err != nil {
			return err
		}
		shift, err := shifts.ActiveShift(c.UserContext(), staffID)
		if err != nil {
			return err
		}
		if shift == nil {
			return c.JSON(fiber.Map{"active": false})
		}
		return c.JSON(toShiftResponse(shift))
	}
}

// POST /api/shifts/start
func StartShiftHandler(shifts *ShiftService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staffID, err := callerStaffID(c)
		if err != nil {
			return err
		}
		var body StartShiftRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		shift, err := shifts.Start(c.UserContext(), staffID, body.BranchID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toShiftResponse(shift))
	}
}

// POST /api/shifts/end
func EndShiftHandler(shifts *ShiftService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staffID, err := callerStaffID(c)
		if err != nil {
			return err
		}
		shift, err := shifts.End(c.UserContext(), staffID)
		if err != nil {
			return err
		}
		return c.JSON(toShiftResponse(shift))
	}
}
