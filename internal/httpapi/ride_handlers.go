package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/geo"
	"github.com/kayafamilly/carpool-core/internal/models"
)

func (s *Server) registerRideRoutes(api fiber.Router, protected fiber.Handler) {
	g := api.Group("/rides")
	g.Get("/search", s.handleSearchRides)
	g.Post("/route-preview", protected, s.handleRoutePreview)
	g.Get("/my-rides", protected, s.handleListMyRides)
	g.Post("/", protected, s.handleCreateRide)
	g.Get("/:id", s.handleGetRide)
	g.Patch("/:id", protected, s.handleUpdateRide)
	g.Delete("/:id", protected, s.handleDeleteRide)
	g.Get("/:id/bookings", protected, s.handleListRideBookings)
}

func (s *Server) handleCreateRide(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req models.CreateRideRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	ride, err := s.booking.CreateRide(c.Context(), driverID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, ride)
}

func (s *Server) handleGetRide(c *fiber.Ctx) error {
	rideID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	ride, err := s.booking.GetRide(c.Context(), rideID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, ride)
}

func (s *Server) handleUpdateRide(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	rideID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	var req models.UpdateRideRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	ride, err := s.booking.UpdateRide(c.Context(), rideID, driverID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, ride)
}

func (s *Server) handleDeleteRide(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	rideID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	if err := s.booking.DeleteRide(c.Context(), rideID, driverID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"cancelled": true})
}

func (s *Server) handleListMyRides(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	rides, err := s.booking.ListMyRides(c.Context(), driverID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, rides)
}

func (s *Server) handleListRideBookings(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	rideID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	bookings, err := s.booking.ListBookingsForRide(c.Context(), rideID, driverID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, bookings)
}

func (s *Server) handleSearchRides(c *fiber.Ctx) error {
	var req models.SearchRidesRequest
	if err := c.QueryParser(&req); err != nil {
		return badBody(c, err)
	}
	results, err := s.search.SearchRides(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, results)
}

// handleRoutePreview returns the straight-line route between two points with
// its distance and estimated duration, without persisting anything, letting
// the client preview the trip before publishing a ride.
func (s *Server) handleRoutePreview(c *fiber.Ctx) error {
	var req struct {
		From models.GeoPoint `json:"from" validate:"required"`
		To   models.GeoPoint `json:"to" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	route := []models.GeoPoint{req.From, req.To}
	return ok(c, fiber.StatusOK, fiber.Map{
		"route":           route,
		"distanceMeters":  geo.RouteDistanceM(route),
		"durationMinutes": geo.RouteTimeMinutes(route),
	})
}
