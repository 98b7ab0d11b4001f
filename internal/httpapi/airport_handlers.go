package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/models"
)

func (s *Server) registerAirportRoutes(api fiber.Router) {
	g := api.Group("/airports")
	g.Get("/", s.handleSearchAirports)
	g.Get("/:id", s.handleGetAirport)
}

func (s *Server) handleGetAirport(c *fiber.Ctx) error {
	a, err := s.airports.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, a)
}

func (s *Server) handleSearchAirports(c *fiber.Ctx) error {
	lat := c.Query("latitude")
	lon := c.Query("longitude")
	if lat != "" && lon != "" {
		latF, errLat := strconv.ParseFloat(lat, 64)
		lonF, errLon := strconv.ParseFloat(lon, 64)
		if errLat != nil || errLon != nil {
			return badBody(c, errLat)
		}
		radius := 50000.0
		if r := c.Query("radius"); r != "" {
			if parsed, err := strconv.ParseFloat(r, 64); err == nil {
				radius = parsed
			}
		}
		results, err := s.airports.SearchNearby(c.Context(), models.GeoPoint{Lon: lonF, Lat: latF}, radius, 20)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, fiber.StatusOK, results)
	}

	results, err := s.airports.SearchByText(c.Context(), c.Query("q"), 20)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, results)
}
