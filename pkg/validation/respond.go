package validation

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// Respond writes a 400 in the Laravel-style shape.
func Respond(c *fiber.Ctx, errs map[string][]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ValidationErrorResponse{
		Message: "Validation failed",
		Errors:  errs,
	})
}

// Check validates s and writes the 400 itself. It reports whether s passed.
func Check(c *fiber.Ctx, s any) (bool, error) {
	errs, err := Validate(s)
	if err != nil {
		return false, err
	}
	if errs != nil {
		return false, Respond(c, errs)
	}
	return true, nil
}
