package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/addara/shop-api/internal/domain/catalog"
	"github.com/addara/shop-api/internal/domain/order"
	"github.com/addara/shop-api/internal/domain/pricing"
)

// cartLineDTO is one cart entry of an incoming checkout request.
type cartLineDTO struct {
	ItemKind string `json:"itemKind" validate:"required"`
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gte=1"`
}

type customerDTO struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Phone     string `json:"phone" validate:"omitempty"`
}

type addressDTO struct {
	Street         string `json:"street" validate:"required"`
	City           string `json:"city" validate:"required"`
	ZipCode        string `json:"zipCode" validate:"required"`
	Country        string `json:"country" validate:"required"`
	AdditionalInfo string `json:"additionalInfo"`
}

func (a *addressDTO) toDomain() order.Address {
	return order.Address{
		Street:         a.Street,
		City:           a.City,
		ZipCode:        a.ZipCode,
		Country:        a.Country,
		AdditionalInfo: a.AdditionalInfo,
	}
}

type createOrderRequest struct {
	Items           []cartLineDTO `json:"items" validate:"required,min=1,dive"`
	Customer        customerDTO   `json:"customerInfo" validate:"required"`
	ShippingAddress addressDTO    `json:"shippingAddress" validate:"required"`
	BillingAddress  *addressDTO   `json:"billingAddress" validate:"omitempty"`
	UseSameAddress  *bool         `json:"useSameAddress"`
	PromoCode       string        `json:"promoCode"`
	PaymentMethod   string        `json:"paymentMethod" validate:"omitempty,oneof=stripe paypal card"`
	ShippingMethod  string        `json:"shippingMethod" validate:"omitempty,oneof=standard express pickup"`
	CustomerNotes   string        `json:"customerNotes"`
}

// orderView is the JSON shape of an order aggregate.
type orderView struct {
	ID              string                  `json:"id"`
	OrderNumber     string                  `json:"orderNumber"`
	IsGuestOrder    bool                    `json:"isGuestOrder"`
	Customer        order.CustomerInfo      `json:"customerInfo"`
	Items           []order.LineItem        `json:"items"`
	ShippingAddress order.Address           `json:"shippingAddress"`
	BillingAddress  *order.Address          `json:"billingAddress,omitempty"`
	UseSameAddress  bool                    `json:"useSameAddress"`
	Pricing         pricing.Costs           `json:"pricing"`
	PromoCode       *pricing.PromoSnapshot  `json:"promoCode,omitempty"`
	Status          order.Status            `json:"status"`
	StatusHistory   []order.StatusChange    `json:"statusHistory"`
	Payment         order.Payment           `json:"payment"`
	Shipping        order.ShippingInfo      `json:"shipping"`
	CustomerNotes   string                  `json:"customerNotes,omitempty"`
	InternalNotes   string                  `json:"internalNotes,omitempty"`
	ConfirmedAt     *time.Time              `json:"confirmedAt,omitempty"`
	CancelledAt     *time.Time              `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func viewOrder(o *order.Order) orderView {
	return orderView{
		ID:              o.ID,
		OrderNumber:     o.Number,
		IsGuestOrder:    o.IsGuest,
		Customer:        o.Customer,
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		UseSameAddress:  o.UseSameAddress,
		Pricing:         o.Pricing,
		PromoCode:       o.Promo,
		Status:          o.Status,
		StatusHistory:   o.History,
		Payment:         o.Payment,
		Shipping:        o.Shipping,
		CustomerNotes:   o.CustomerNotes,
		InternalNotes:   o.InternalNotes,
		ConfirmedAt:     o.ConfirmedAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func parseCartLines(items []cartLineDTO) ([]order.CartLine, error) {
	lines := make([]order.CartLine, len(items))
	for i, item := range items {
		kind, err := catalog.ParseKind(item.ItemKind)
		if err != nil {
			return nil, err
		}
		lines[i] = order.CartLine{Kind: kind, ItemID: item.ItemID, Quantity: item.Quantity}
	}
	return lines, nil
}

// CreateOrder validates the cart and creates a pending order. The account
// id, when the session layer upstream authenticated the customer, arrives in
// the X-Account-ID header; its absence marks a guest order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines, err := parseCartLines(req.Items)
	if err != nil {
		respondError(w, r, err)
		return
	}

	method := req.PaymentMethod
	if method == "" {
		method = "stripe"
	}
	var billing *order.Address
	if req.BillingAddress != nil {
		addr := req.BillingAddress.toDomain()
		billing = &addr
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		Lines:     lines,
		AccountID: r.Header.Get("X-Account-ID"),
		Customer: order.CustomerInfo{
			Email:     req.Customer.Email,
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Phone:     req.Customer.Phone,
		},
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  billing,
		UseSameAddress:  req.UseSameAddress == nil || *req.UseSameAddress,
		PromoCode:       req.PromoCode,
		PaymentMethod:   method,
		ShippingMethod:  req.ShippingMethod,
		CustomerNotes:   req.CustomerNotes,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"orderId":     o.ID,
		"orderNumber": o.Number,
		"order":       viewOrder(o),
	})
}

// GetOrder returns an order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(o)})
}

// TrackOrder returns an order by its number. Guest orders require the
// matching customer email as a query parameter.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	email := r.URL.Query().Get("email")

	o, err := h.orders.GetByNumber(r.Context(), number, email)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(o)})
}

// CancelOrder cancels an order that has not shipped, restocking its items
// and refunding a completed payment.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "customer cancellation"
	}

	actor := ActorFromContext(r.Context())
	if actor == "" {
		actor = "customer"
	}

	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), reason, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(o)})
}

// CheckCart reports live stock for the given cart lines. Read-only.
func (h *Handler) CheckCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []cartLineDTO `json:"items" validate:"required,min=1,dive"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines, err := parseCartLines(req.Items)
	if err != nil {
		respondError(w, r, err)
		return
	}

	statuses, err := h.orders.CheckCart(r.Context(), lines)
	if err != nil {
		respondError(w, r, err)
		return
	}

	type lineStatusView struct {
		ItemKind     string `json:"itemKind"`
		ItemID       string `json:"itemId"`
		Name         string `json:"name"`
		Requested    int    `json:"requested"`
		Available    int    `json:"available"`
		Availability string `json:"availability"`
		InStock      bool   `json:"inStock"`
	}
	views := make([]lineStatusView, len(statuses))
	allInStock := true
	for i, st := range statuses {
		views[i] = lineStatusView{
			ItemKind:     string(st.Kind),
			ItemID:       st.ItemID,
			Name:         st.Name,
			Requested:    st.Requested,
			Available:    st.Available,
			Availability: string(st.Availability),
			InStock:      st.InStock,
		}
		if !st.InStock {
			allInStock = false
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views, "allInStock": allInStock})
}

// ListOrders returns a filtered page of orders for the back office.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.ListFilter{
		Status:        order.Status(q.Get("status")),
		PaymentStatus: order.PaymentStatus(q.Get("paymentStatus")),
		Page:          intQuery(q.Get("page"), 1),
		Limit:         intQuery(q.Get("limit"), 20),
	}

	orders, total, err := h.orders.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]orderView, len(orders))
	for i := range orders {
		views[i] = viewOrder(&orders[i])
	}
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": views,
		"pagination": map[string]int{
			"page":  f.Page,
			"limit": f.Limit,
			"total": total,
			"pages": pages,
		},
	})
}

// UpdateStatus dispatches an admin status change to the matching state
// machine operation. Shipping requires carrier metadata and has its own
// endpoint.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status" validate:"required,oneof=processing delivered cancelled"`
		Note   string `json:"note"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	actor := ActorFromContext(r.Context())

	var (
		o   *order.Order
		err error
	)
	switch order.Status(req.Status) {
	case order.StatusProcessing:
		o, err = h.orders.MarkProcessing(r.Context(), id, req.Note, actor)
	case order.StatusDelivered:
		o, err = h.orders.MarkDelivered(r.Context(), id, actor)
	case order.StatusCancelled:
		o, err = h.orders.Cancel(r.Context(), id, req.Note, actor)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(o)})
}

// MarkShipped records carrier and tracking details.
func (h *Handler) MarkShipped(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Carrier           string `json:"carrier" validate:"required"`
		TrackingNumber    string `json:"trackingNumber" validate:"required"`
		TrackingURL       string `json:"trackingUrl"`
		EstimatedDelivery string `json:"estimatedDelivery"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upd := order.ShippingUpdate{
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
	}
	if req.EstimatedDelivery != "" {
		t, err := time.Parse(time.RFC3339, req.EstimatedDelivery)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid estimatedDelivery: expected RFC 3339")
			return
		}
		upd.EstimatedDelivery = &t
	}

	o, err := h.orders.MarkShipped(r.Context(), chi.URLParam(r, "id"), upd, ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(o)})
}

// MarkDelivered records the delivery confirmation.
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.MarkDelivered(r.Context(), chi.URLParam(r, "id"), ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(o)})
}

// UpdateNotes replaces the internal notes on an order.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InternalNotes string `json:"internalNotes"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.UpdateNotes(r.Context(), chi.URLParam(r, "id"), req.InternalNotes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": viewOrder(o)})
}

// DeleteOrder removes a cancelled order permanently.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

// RefundOrder refunds a completed payment, in full when no amount is given.
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	o, err := h.orders.Refund(r.Context(), chi.URLParam(r, "id"), req.Amount, ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "refund completed",
		"refundAmount": o.Payment.RefundAmount,
		"order":        viewOrder(o),
	})
}

func intQuery(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
