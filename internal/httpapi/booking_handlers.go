package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/models"
)

func (s *Server) registerBookingRoutes(api fiber.Router, protected fiber.Handler) {
	rides := api.Group("/rides", protected)
	rides.Post("/:rideId/bookings", s.handleCreateBooking)

	bookings := api.Group("/bookings", protected)
	bookings.Patch("/:id", s.handleTransitionBooking)

	me := api.Group("/me", protected)
	me.Get("/bookings", s.handleListMyBookings)
}

func (s *Server) handleCreateBooking(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	rideID, err := paramUUID(c, "rideId")
	if err != nil {
		return badBody(c, err)
	}
	var req models.CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	booking, err := s.booking.CreateBooking(c.Context(), rideID, passengerID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, booking)
}

func (s *Server) handleTransitionBooking(c *fiber.Ctx) error {
	actorID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	bookingID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	var req models.TransitionBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	updated, err := s.booking.Transition(c.Context(), bookingID, actorID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, updated)
}

func (s *Server) handleListMyBookings(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	list, err := s.booking.ListMyBookings(c.Context(), passengerID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, list)
}
