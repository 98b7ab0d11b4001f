package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
)

// ok writes the {success:true, data, message?} envelope (spec section 6).
func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

// okPaginated additionally includes the pagination block.
func okPaginated(c *fiber.Ctx, data interface{}, page, limit, total int) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{"page": page, "limit": limit, "total": total},
	})
}

// fail writes the {success:false, message, errors?} envelope, mapping an
// apperr.Kind to its HTTP status per spec section 7's table. Errors that
// aren't *apperr.Error (a bad BodyParser, an unexpected driver error) are
// treated as Transient/500 rather than leaking internals to the caller.
func fail(c *fiber.Ctx, err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false, "message": "validation failed", "errors": fields,
		})
	}

	appErr, ok := apperr.As(err)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "message": "internal error",
		})
	}

	status := fiber.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindValidation, apperr.KindCapacity, apperr.KindState:
		status = fiber.StatusBadRequest
	case apperr.KindAuth:
		status = fiber.StatusUnauthorized
	case apperr.KindPermission:
		status = fiber.StatusForbidden
	case apperr.KindNotFound:
		status = fiber.StatusNotFound
	case apperr.KindConflict:
		status = fiber.StatusConflict
	case apperr.KindPayment:
		status = fiber.StatusPaymentRequired
	case apperr.KindRateLimit:
		status = fiber.StatusTooManyRequests
	case apperr.KindTransient:
		status = fiber.StatusServiceUnavailable
	}

	body := fiber.Map{"success": false, "message": appErr.Message}
	if appErr.Fields != nil {
		body["errors"] = appErr.Fields
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false, "message": "invalid request body", "errors": err.Error(),
	})
}
