package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/auth"
	"github.com/kayafamilly/carpool-core/internal/models"
	"github.com/kayafamilly/carpool-core/internal/ratelimit"
)

func (s *Server) registerAuthRoutes(api fiber.Router, protected fiber.Handler) {
	g := api.Group("/auth")

	loginLimited := g
	if s.loginRL != nil {
		loginLimited = g.Group("", s.loginRL.Middleware(ratelimit.KeyByIPAndPath))
	}

	g.Post("/register", s.handleRegister)
	loginLimited.Post("/login", s.handleLogin)
	g.Post("/refresh", s.handleRefresh)
	g.Post("/logout", protected, s.handleLogout)
	g.Delete("/me", protected, s.handleDeleteMe)
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	resp, err := s.auth.Register(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, resp)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	resp, err := s.auth.Login(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, resp)
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	tokens, err := s.auth.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, tokens)
}

// handleLogout is stateless: access tokens are short-lived and this system
// carries no server-side session, so logout is a client-side token discard
// acknowledged here for API symmetry with spec section 6's endpoint list.
func (s *Server) handleLogout(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, fiber.Map{"loggedOut": true})
}

func (s *Server) handleDeleteMe(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	if err := s.auth.DeleteAccount(c.Context(), userID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
