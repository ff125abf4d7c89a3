package ledgerValidator

import (
	ledgerController "custodia/controllers/ledger"
	"custodia/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// fieldErrors maps validator violations to a field -> message map
func fieldErrors(err error) map[string]string {
	errors := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			errors[verr.Field()] = "Failed on rule: " + verr.Tag()
		}
		return errors
	}
	errors["request"] = err.Error()
	return errors
}

// Withdrawal validates a withdrawal submission
func Withdrawal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ledgerController.WithdrawalRequest)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if err := validate.Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, fieldErrors(err))
		}

		c.Locals("validatedWithdrawal", reqData)
		return c.Next()
	}
}

// Move validates an internal transfer submission
func Move() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ledgerController.MoveRequest)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if err := validate.Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, fieldErrors(err))
		}

		c.Locals("validatedMove", reqData)
		return c.Next()
	}
}
