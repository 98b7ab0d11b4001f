package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/models"
)

func (s *Server) registerRequestRoutes(api fiber.Router, protected fiber.Handler) {
	g := api.Group("/ride-requests", protected)

	g.Post("/", s.handleCreateRequest)
	g.Get("/available", s.handleListAvailableRequests)
	g.Get("/my-requests", s.handleListMyRequests)
	g.Get("/my-offers", s.handleListMyOffers)
	g.Post("/:id/offer", s.handleMakeOffer)
	g.Delete("/:id/offer", s.handleWithdrawOffer)
	g.Put("/:id/accept-offer", s.handleAcceptOffer)
	g.Post("/:id/accept-offer-with-payment", s.handleAcceptOfferWithPayment)
	g.Put("/:id/reject-offer", s.handleRejectOffer)
	g.Put("/:id/cancel", s.handleCancelRequest)
}

func (s *Server) handleCreateRequest(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req models.CreateRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	rr, err := s.request.CreateRequest(c.Context(), passengerID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, rr)
}

func (s *Server) handleListAvailableRequests(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req models.SearchRequestsRequest
	if err := c.QueryParser(&req); err != nil {
		return badBody(c, err)
	}
	results, err := s.search.SearchRequests(c.Context(), driverID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, results)
}

func (s *Server) handleListMyRequests(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	list, err := s.request.ListMyRequests(c.Context(), passengerID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, list)
}

func (s *Server) handleListMyOffers(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	list, err := s.request.ListMyOffers(c.Context(), driverID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, list)
}

func (s *Server) handleMakeOffer(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	requestID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	var req models.MakeOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	offer, err := s.request.MakeOffer(c.Context(), requestID, driverID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, offer)
}

func (s *Server) handleWithdrawOffer(c *fiber.Ctx) error {
	driverID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	offerID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	if err := s.request.WithdrawOffer(c.Context(), offerID, driverID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"withdrawn": true})
}

// handleAcceptOffer accepts an offer and pays for it from the passenger's
// wallet (AcceptOfferWithPayment with the wallet method, no separate intent
// step); card payments go through accept-offer-with-payment instead.
func (s *Server) handleAcceptOffer(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	requestID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	var body struct {
		OfferID string `json:"offerId" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badBody(c, err)
	}
	offerID, err := paramUUIDFromString(body.OfferID)
	if err != nil {
		return badBody(c, err)
	}
	rr, err := s.request.AcceptOfferWithPayment(c.Context(), requestID, passengerID, models.AcceptOfferWithPaymentRequest{
		OfferID: offerID, Method: models.PaymentMethodWallet,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, rr)
}

func (s *Server) handleAcceptOfferWithPayment(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	requestID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	var req models.AcceptOfferWithPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	rr, err := s.request.AcceptOfferWithPayment(c.Context(), requestID, passengerID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, rr)
}

func (s *Server) handleRejectOffer(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	offerID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	if err := s.request.RejectOffer(c.Context(), offerID, passengerID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"rejected": true})
}

func (s *Server) handleCancelRequest(c *fiber.Ctx) error {
	passengerID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	requestID, err := paramUUID(c, "id")
	if err != nil {
		return badBody(c, err)
	}
	if err := s.request.CancelRequest(c.Context(), requestID, passengerID); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"cancelled": true})
}
