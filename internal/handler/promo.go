package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/addara/shop-api/internal/domain/pricing"
	"github.com/addara/shop-api/internal/domain/promo"
)

type createPromoRequest struct {
	Code      string          `json:"code" validate:"required,min=2,max=32"`
	Type      string          `json:"type" validate:"required,oneof=percentage fixed"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
}

// CreatePromo registers a new promo code.
func (h *Handler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if pricing.DiscountType(req.Type) == pricing.DiscountPercentage && req.Amount.GreaterThan(decimal.NewFromInt(100)) {
		writeError(w, http.StatusBadRequest, "percentage discount cannot exceed 100")
		return
	}

	code := &promo.Code{
		Code:   strings.ToUpper(strings.TrimSpace(req.Code)),
		Type:   pricing.DiscountType(req.Type),
		Amount: req.Amount,
	}
	var err error
	if code.StartsAt, err = parseOptionalTime(req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid startDate: expected RFC 3339")
		return
	}
	if code.EndsAt, err = parseOptionalTime(req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid endDate: expected RFC 3339")
		return
	}
	if code.StartsAt != nil && code.EndsAt != nil && code.EndsAt.Before(*code.StartsAt) {
		writeError(w, http.StatusBadRequest, "endDate precedes startDate")
		return
	}

	if err := h.promos.Create(r.Context(), code); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"code":   code.Code,
		"type":   code.Type,
		"amount": code.Amount,
	})
}

// DeletePromo removes a promo code. Orders holding its snapshot are
// unaffected.
func (h *Handler) DeletePromo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.promos.Delete(r.Context(), code); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "promo code deleted"})
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
