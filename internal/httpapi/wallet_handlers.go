package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/models"
)

func (s *Server) registerWalletRoutes(api fiber.Router, protected fiber.Handler) {
	g := api.Group("/wallet", protected)
	g.Get("/", s.handleGetWallet)
	g.Get("/transactions", s.handleListTransactions)
	g.Get("/payouts", s.handleListPayouts)
	g.Get("/earnings-summary", s.handleEarningsSummary)
	g.Get("/calculate-earnings", s.handleCalculateEarnings)
	g.Post("/withdraw", s.handleWithdraw)
	g.Post("/connect-bank", s.handleConnectBank)
	g.Get("/bank-status", s.handleBankStatus)
}

func (s *Server) handleGetWallet(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	w, err := s.wallet.EarningsSummary(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, w)
}

func (s *Server) handleListTransactions(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	page := models.Page{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", 20)}
	txns, total, err := s.wallet.ListTransactions(c.Context(), userID, models.TransactionFilter{}, page)
	if err != nil {
		return fail(c, err)
	}
	return okPaginated(c, txns, page.Page, page.Limit, total)
}

func (s *Server) handleListPayouts(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	list, err := s.wallet.ListPayouts(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, list)
}

func (s *Server) handleEarningsSummary(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	summary, err := s.wallet.EarningsSummary(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, summary)
}

func (s *Server) handleCalculateEarnings(c *fiber.Ctx) error {
	if _, found := principalID(c); !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	gross := int64(c.QueryInt("grossAmount", 0))
	if gross <= 0 {
		return fail(c, apperr.Validation("grossAmount must be positive"))
	}
	net, fee := s.wallet.CalculateEarnings(gross, float64(s.cfg.PlatformFeePercent))
	return ok(c, fiber.StatusOK, fiber.Map{"grossAmount": gross, "feeAmount": fee, "netAmount": net})
}

func (s *Server) handleWithdraw(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req models.WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	payout, err := s.wallet.Withdraw(c.Context(), userID, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, payout)
}

func (s *Server) handleConnectBank(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, err)
	}
	acct, err := s.wallet.ConnectBank(c.Context(), userID, req.Email)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, acct)
}

func (s *Server) handleBankStatus(c *fiber.Ctx) error {
	userID, found := principalID(c)
	if !found {
		return fail(c, apperr.Auth("missing principal"))
	}
	acct, err := s.wallet.BankStatus(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, acct)
}
