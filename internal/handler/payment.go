package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/addara/shop-api/internal/domain/order"
	"github.com/addara/shop-api/internal/stripe"
)

const webhookBodyLimit = 1 << 20

// CreateIntent locks the order for payment: stock is reserved and a payment
// intent is opened with the gateway. The client secret authorizes the
// storefront to complete the payment.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId" validate:"required"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.orders.Lock(r.Context(), req.OrderID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	type shortfallView struct {
		ItemKind  string `json:"itemKind"`
		ItemID    string `json:"itemId"`
		Name      string `json:"name"`
		Requested int    `json:"requested"`
		Reserved  int    `json:"reserved"`
	}
	shortfalls := make([]shortfallView, len(res.Shortfalls))
	for i, sf := range res.Shortfalls {
		shortfalls[i] = shortfallView{
			ItemKind:  string(sf.Kind),
			ItemID:    sf.ItemID,
			Name:      sf.Name,
			Requested: sf.Requested,
			Reserved:  sf.Debited,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"clientSecret":    res.ClientSecret,
		"paymentIntentId": res.Order.Payment.TransactionID,
		"amount":          res.Order.Pricing.Total,
		"currency":        "eur",
		"shortfalls":      shortfalls,
	})
}

// ConfirmPayment finalizes an order after the storefront completed the
// payment flow. The webhook performs the same transition independently.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID         string `json:"orderId" validate:"required"`
		PaymentIntentID string `json:"paymentIntentId" validate:"required"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Confirm(r.Context(), req.OrderID, req.PaymentIntentID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "payment confirmed",
		"order": map[string]any{
			"orderNumber": o.Number,
			"status":      o.Status,
			"total":       o.Pricing.Total,
		},
	})
}

// Webhook ingests payment gateway events. Signature failures are rejected,
// events for unknown orders are acknowledged and dropped, and everything
// else is retried by the gateway on a non-2xx response.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if err := stripe.VerifySignature(payload, sig, h.webhookSecret, time.Now()); err != nil {
		zctx.From(r.Context()).Warn("webhook signature rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	event, err := stripe.ParseEvent(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed event")
		return
	}

	lg := zctx.From(r.Context()).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("order_id", event.OrderID),
	)

	switch event.Type {
	case stripe.EventPaymentSucceeded:
		_, err = h.orders.Confirm(r.Context(), event.OrderID, event.IntentID)
	case stripe.EventPaymentFailed:
		_, err = h.orders.MarkPaymentFailed(r.Context(), event.OrderID, event.IntentID)
	default:
		lg.Debug("webhook event ignored")
	}

	var transition *order.InvalidTransitionError
	switch {
	case err == nil:
	case errors.Is(err, order.ErrNotFound):
		// Permanent. Acknowledge so the gateway stops redelivering.
		lg.Warn("webhook event for unknown order")
	case errors.As(err, &transition):
		// The order already settled past this event, e.g. a succeeded
		// redelivery under a different intent id for a confirmed order.
		// Retrying can never make it apply, so acknowledge it.
		lg.Warn("webhook event for settled order", zap.Error(err))
	default:
		lg.Error("webhook processing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
