// Package httpapi wires every domain engine to the Fiber HTTP surface (spec
// section 6), generalizing the teacher's handlers/*.go envelope
// (fiber.Map{"status", "message", "data"}) into the {success, data,
// pagination?, message?} / {success:false, message, errors?} shape the
// broader marketplace contract requires.
package httpapi

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/kayafamilly/carpool-core/internal/airport"
	"github.com/kayafamilly/carpool-core/internal/auth"
	"github.com/kayafamilly/carpool-core/internal/booking"
	"github.com/kayafamilly/carpool-core/internal/config"
	"github.com/kayafamilly/carpool-core/internal/ratelimit"
	"github.com/kayafamilly/carpool-core/internal/rating"
	"github.com/kayafamilly/carpool-core/internal/request"
	"github.com/kayafamilly/carpool-core/internal/search"
	"github.com/kayafamilly/carpool-core/internal/wallet"
	"github.com/kayafamilly/carpool-core/internal/webhook"
)

// Server holds every engine a handler might need plus shared ambient
// concerns (auth, validation, rate limiting).
type Server struct {
	cfg *config.Config

	auth      *auth.Service
	booking   *booking.Engine
	request   *request.Engine
	search    *search.Service
	wallet    *wallet.Service
	rating    *rating.Store
	airports  *airport.Catalog
	webhook   *webhook.Reconciler
	loginRL   *ratelimit.Limiter
	otpRL     *ratelimit.Limiter
	validate  *validator.Validate
}

// Deps bundles the engines New needs, so call sites don't have to remember
// parameter order across a dozen positional args.
type Deps struct {
	Config   *config.Config
	Auth     *auth.Service
	Booking  *booking.Engine
	Request  *request.Engine
	Search   *search.Service
	Wallet   *wallet.Service
	Rating   *rating.Store
	Airports *airport.Catalog
	Webhook  *webhook.Reconciler
	LoginRL  *ratelimit.Limiter
	OTPRL    *ratelimit.Limiter
}

// New builds a Server from its Deps.
func New(d Deps) *Server {
	return &Server{
		cfg: d.Config, auth: d.Auth, booking: d.Booking, request: d.Request,
		search: d.Search, wallet: d.Wallet, rating: d.Rating, airports: d.Airports,
		webhook: d.Webhook, loginRL: d.LoginRL, otpRL: d.OTPRL,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts every route group under /api/v1, matching the
// teacher's api.Group(...) idiom in handlers/*.go's SetupXRoutes functions.
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"status": "ok"}})
	})

	api := app.Group("/api/v1")
	protected := auth.Protected(s.auth)

	s.registerAuthRoutes(api, protected)
	s.registerAirportRoutes(api)
	s.registerRideRoutes(api, protected)
	s.registerBookingRoutes(api, protected)
	s.registerRequestRoutes(api, protected)
	s.registerPaymentRoutes(api, protected)
	s.registerWalletRoutes(api, protected)
	s.registerRatingRoutes(api, protected)
	s.registerWebhookRoutes(app)

	log.Println("httpapi: all routes registered")
}

// principalID extracts the authenticated caller's id, matching the
// teacher's c.Locals("userID") idiom but sourced from auth.FromContext
// instead of a raw Locals type-assertion.
func principalID(c *fiber.Ctx) (uuid.UUID, bool) {
	p, ok := auth.FromContext(c)
	if !ok {
		return uuid.Nil, false
	}
	return p.UserID, true
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Params(name))
}

func paramUUIDFromString(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
