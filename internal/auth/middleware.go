package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
)

// Protected mirrors the teacher's middleware.Protected shape, generalized to
// delegate verification to Service.VerifyAccess and store the Principal
// (not a bare userID) in locals, matching what httpapi handlers need for
// both identity and role checks.
func Protected(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return apperr.Auth("missing authorization token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return apperr.Auth("invalid authorization header format")
		}

		principal, err := svc.VerifyAccess(parts[1])
		if err != nil {
			return err
		}

		c.Locals("principal", principal)
		return c.Next()
	}
}

// FromContext extracts the authenticated Principal stored by Protected.
func FromContext(c *fiber.Ctx) (*Principal, bool) {
	p, ok := c.Locals("principal").(*Principal)
	return p, ok
}
