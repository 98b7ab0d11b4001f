package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/models"
)

func (s *Server) registerPaymentRoutes(api fiber.Router, protected fiber.Handler) {
	g := api.Group("/payments", protected)
	g.Post("/create-intent", s.handleCreatePaymentIntent)
	g.Post("/create-offer-intent", s.handleCreateOfferIntent)
	g.Post("/complete", s.handleCompletePayment)
	g.Post("/wallet", s.handlePayWithWallet)
}

func (s *Server) handleCreatePaymentIntent(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req models.PayWithCardRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	intent, bookingID, err := s.booking.PayAndBookWithCard(c.Context(), passengerID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, fiber.Map{"intent": intent, "bookingId": bookingID})
}

func (s *Server) handleCreateOfferIntent(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req struct {
		RequestID string `json:"requestId" validate:"required"`
		OfferID   string `json:"offerId" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	requestID, err := paramUUIDFromString(req.RequestID)
	if err != nil {
		return badBody(c, err)
	}
	offerID, err := paramUUIDFromString(req.OfferID)
	if err != nil {
		return badBody(c, err)
	}
	intent, err := s.request.CreateOfferIntent(c.Context(), requestID, offerID, passengerID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, intent)
}

func (s *Server) handleCompletePayment(c *fiber.Ctx) error {
	if _, found := principalID(c); !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req struct {
		BookingID string `json:"bookingId" validate:"required"`
		IntentID  string `json:"intentId" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	bookingID, err := paramUUIDFromString(req.BookingID)
	if err != nil {
		return badBody(c, err)
	}
	booking, err := s.booking.CompletePayment(c.Context(), bookingID, models.CompletePaymentRequest{IntentID: req.IntentID})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, booking)
}

func (s *Server) handlePayWithWallet(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req models.PayWithWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	booking, err := s.booking.PayAndBookWithWallet(c.Context(), passengerID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, booking)
}
