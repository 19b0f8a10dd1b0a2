package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/palme-foods/storefront/internal/cart"
	"github.com/palme-foods/storefront/internal/platform/httpx"
	"github.com/palme-foods/storefront/internal/services"
)

const maxCheckoutBodySize = 64 * 1024

// CheckoutHandlers exposes quoting, coupon application, and the payment flow.
type CheckoutHandlers struct {
	engine            *services.CheckoutEngine
	coupons           *services.CouponResolver
	carts             *cart.Store
	settings          settingsReader
	paystackPublicKey string
}

// CheckoutHandlersDeps bundles dependencies for NewCheckoutHandlers.
type CheckoutHandlersDeps struct {
	Engine   *services.CheckoutEngine
	Coupons  *services.CouponResolver
	Carts    *cart.Store
	Settings settingsReader

	// PaystackPublicKey is handed to the client so it can mount the inline
	// payment widget. Optional; empty when Paystack is not configured.
	PaystackPublicKey string
}

// NewCheckoutHandlers constructs the checkout handlers.
func NewCheckoutHandlers(deps CheckoutHandlersDeps) (*CheckoutHandlers, error) {
	if deps.Engine == nil {
		return nil, errors.New("checkout handlers: engine is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("checkout handlers: coupon resolver is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("checkout handlers: cart store is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("checkout handlers: settings source is required")
	}
	return &CheckoutHandlers{
		engine:            deps.Engine,
		coupons:           deps.Coupons,
		carts:             deps.Carts,
		settings:          deps.Settings,
		paystackPublicKey: strings.TrimSpace(deps.PaystackPublicKey),
	}, nil
}

// Routes wires the /checkout endpoints onto the provided router. Quoting and
// the payment flow operate on the session's cart, so the session header is
// required here; auth routes stay outside the requirement.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(SessionMiddleware())
	r.Get("/settings", h.getSettings)
	r.Post("/quote", h.quote)
	r.Post("/coupon", h.applyCoupon)
	r.Post("/payment", h.startPayment)
	r.Post("/payment/complete", h.completeOrder)
	r.Post("/payment/cancel", h.cancelPayment)
}

type tipBody struct {
	Percent   float64 `json:"percent"`
	Custom    string  `json:"custom"`
	UseCustom bool    `json:"useCustom"`
}

func (t tipBody) selection() services.TipSelection {
	return services.TipSelection{Percent: t.Percent, Custom: t.Custom, UseCustom: t.UseCustom}
}

type contactBody struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

func (c contactBody) input() services.ContactInput {
	return services.ContactInput{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
	}
}

func (h *CheckoutHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.settings.Current()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"doorstepPrice":     settings.DoorstepPrice,
		"parkPrice":         settings.ParkPrice,
		"doorstepNote":      settings.DoorstepNote,
		"parkNote":          settings.ParkNote,
		"weightThreshold":   settings.WeightThreshold,
		"heavyWeightNote":   settings.HeavyWeightNote,
		"heroBadgeText":     settings.HeroBadgeText,
		"heroBadgePrice":    settings.HeroBadgePrice,
		"youtubeLink":       settings.YoutubeLink,
		"maintenanceMode":   settings.MaintenanceMode,
		"paystackPublicKey": h.paystackPublicKey,
	})
}

func (h *CheckoutHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Discount float64 `json:"discount"`
		Tip      tipBody `json:"tip"`
	}
	if err := decodeJSONBody(r, maxCheckoutBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote := h.engine.Quote(sessionID(r), services.QuoteInput{
		Discount: body.Discount,
		Tip:      body.Tip.selection(),
	})
	writeJSONResponse(w, http.StatusOK, quote)
}

func (h *CheckoutHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Code string `json:"code"`
	}
	if err := decodeJSONBody(r, maxCheckoutBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	discount, err := h.coupons.Apply(ctx, body.Code, h.carts.Snapshot(sessionID(r)))
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"code":     discount.Code,
		"percent":  discount.Percent,
		"discount": discount.Amount,
		"message":  discount.Message,
	})
}

func (h *CheckoutHandlers) startPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Contact  contactBody `json:"contact"`
		Discount float64     `json:"discount"`
		Tip      tipBody     `json:"tip"`
		Provider string      `json:"provider"`
	}
	if err := decodeJSONBody(r, maxCheckoutBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	intent, err := h.engine.StartPayment(ctx, sessionID(r), body.Contact.input(), services.QuoteInput{
		Discount: body.Discount,
		Tip:      body.Tip.selection(),
	}, body.Provider)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, intent)
}

func (h *CheckoutHandlers) completeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Reference string      `json:"reference"`
		Contact   contactBody `json:"contact"`
		Discount  float64     `json:"discount"`
		Tip       tipBody     `json:"tip"`
		Provider  string      `json:"provider"`
	}
	if err := decodeJSONBody(r, maxCheckoutBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	created, err := h.engine.CompleteOrder(ctx, sessionID(r), services.CompleteOrderInput{
		Reference:         body.Reference,
		Contact:           body.Contact.input(),
		Discount:          body.Discount,
		Tip:               body.Tip.selection(),
		PreferredProvider: body.Provider,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"order": created})
}

func (h *CheckoutHandlers) cancelPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Reference string `json:"reference"`
	}
	if err := decodeJSONBody(r, maxCheckoutBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	h.engine.CancelPayment(ctx, sessionID(r), body.Reference)
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCouponEmptyCode):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_empty", "enter a code first", http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponInvalid), errors.Is(err, services.ErrCouponNoMatch):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_invalid", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutAmountMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("amount_mismatch", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", err.Error(), http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutOrderNotRecorded):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_recorded", err.Error(), http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout operation failed", http.StatusInternalServerError))
	}
}
