package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/models"
)

func (s *Server) registerRatingRoutes(api fiber.Router, protected fiber.Handler) {
	g := api.Group("/ratings", protected)
	g.Get("/pending", s.handleListPendingRatings)
	g.Get("/can-rate/:bookingId", s.handleCanRate)
	g.Post("/", s.handleSubmitRating)
	g.Get("/stats/:userId", s.handleRatingStats)
}

func (s *Server) handleListPendingRatings(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	list, err := s.rating.ListPending(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, list)
}

func (s *Server) handleCanRate(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	bookingID, err := paramUUID(c, "bookingId")
	if err != nil {
		return badBody(c, err)
	}
	canRate, err := s.rating.CanRate(c.Context(), userID, bookingID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"canRate": canRate})
}

func (s *Server) handleSubmitRating(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req models.SubmitRatingRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	r, err := s.rating.Submit(c.Context(), userID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, r)
}

func (s *Server) handleRatingStats(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "userId")
	if err != nil {
		return badBody(c, err)
	}
	stats, err := s.rating.Stats(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, stats)
}
