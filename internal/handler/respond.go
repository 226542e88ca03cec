package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/addara/shop-api/internal/domain/catalog"
	"github.com/addara/shop-api/internal/domain/order"
	"github.com/addara/shop-api/internal/domain/payment"
	"github.com/addara/shop-api/internal/domain/promo"
)

// errorResponse is the JSON error envelope for all endpoints.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// respondError maps domain errors to HTTP statuses. Validation and illegal
// transition errors carry the specific, actionable message; unexpected
// errors are logged and masked.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *catalog.NotFoundError
		stockErr   *order.InsufficientStockError
		transition *order.InvalidTransitionError
		gateway    *payment.GatewayError
	)

	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, stockErr.Error())
	case errors.As(err, &transition):
		writeError(w, http.StatusBadRequest, transition.Error())
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrShippingInfoRequired),
		errors.Is(err, order.ErrNotCancelled),
		errors.Is(err, order.ErrPaymentNotCompleted),
		errors.Is(err, catalog.ErrUnknownKind),
		errors.Is(err, promo.ErrUnknownCode),
		errors.Is(err, promo.ErrCodeNotActive):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, promo.ErrCodeExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrGuestEmailRequired):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &gateway):
		zctx.From(r.Context()).Error("payment gateway error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment provider unavailable, retry later")
	default:
		zctx.From(r.Context()).Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}
