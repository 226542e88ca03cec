// Package handler exposes the order engine over HTTP: storefront checkout
// endpoints, payment callbacks, and the admin back office.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/addara/shop-api/internal/domain/order"
	"github.com/addara/shop-api/internal/domain/promo"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// WebhookSecret verifies inbound payment webhook signatures.
	WebhookSecret string
}

// Handler translates HTTP requests into order engine operations.
type Handler struct {
	orders   *order.Service
	promos   promo.Repository
	validate *validator.Validate

	webhookSecret []byte
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, orders *order.Service, promos promo.Repository) *Handler {
	return &Handler{
		orders:        orders,
		promos:        promos,
		validate:      validator.New(),
		webhookSecret: []byte(cfg.WebhookSecret),
	}
}

// Routes builds the API router. Admin endpoints sit behind the API key
// middleware; the webhook endpoint authenticates by signature instead.
func (h *Handler) Routes(sec *SecurityHandler) http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.CreateOrder)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/orders/number/{number}", h.TrackOrder)
		r.Put("/orders/{id}/cancel", h.CancelOrder)
		r.Post("/cart/check", h.CheckCart)

		r.Post("/payment/create-intent", h.CreateIntent)
		r.Post("/payment/confirm", h.ConfirmPayment)
		r.Post("/payment/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(sec.RequireAPIKey)

			r.Group(func(r chi.Router) {
				r.Use(sec.RequireScope("orders"))

				r.Get("/orders", h.ListOrders)
				r.Put("/orders/{id}/status", h.UpdateStatus)
				r.Put("/orders/{id}/shipping", h.MarkShipped)
				r.Put("/orders/{id}/delivered", h.MarkDelivered)
				r.Put("/orders/{id}/notes", h.UpdateNotes)
				r.Delete("/orders/{id}", h.DeleteOrder)
			})

			r.With(sec.RequireScope("refunds")).Post("/payment/{id}/refund", h.RefundOrder)

			r.Group(func(r chi.Router) {
				r.Use(sec.RequireScope("promocodes"))

				r.Post("/promocodes", h.CreatePromo)
				r.Delete("/promocodes/{code}", h.DeletePromo)
			})
		})
	})

	return r
}
