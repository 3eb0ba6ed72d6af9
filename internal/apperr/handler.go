package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler maps domain errors to the API's JSON error shapes.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			fe  *fiber.Error
			ve  *ValidationError
			pe  *PermissionError
			nfe *NotFoundError
			ce  *ConflictError
		)
		switch {
		case errors.As(err, &fe):
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		case errors.As(err, &ve):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ve.Fields})
		case errors.As(err, &pe):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": pe.Reason})
		case errors.As(err, &nfe):
			body := fiber.Map{"error": nfe.Error()}
			if nfe.Field != "" {
				body["field"] = nfe.Field
			}
			return c.Status(fiber.StatusNotFound).JSON(body)
		case errors.As(err, &ce):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ce.Msg})
		case errors.Is(err, ErrConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict"})
		}

		log.Error("unhandled request error",
			zap.Error(err),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}
