package httpapi

import (
	"io"
	"log"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// registerWebhookRoutes mounts the Stripe webhook outside the /api/v1 group,
// generalizing the teacher's HandleStripeWebhook+adaptor.HTTPHandler pattern
// (handlers/payment_handler.go) to the reconciliation engine.
func (s *Server) registerWebhookRoutes(app *fiber.App) {
	app.Post("/stripe/webhook", adaptor.HTTPHandlerFunc(s.handleStripeWebhook))
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if err := s.webhook.Handle(r.Context(), payload, sig); err != nil {
		log.Printf("httpapi: stripe webhook reconciliation failed: %v", err)
		http.Error(w, "webhook processing failed", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}
