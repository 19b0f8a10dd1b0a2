package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/palme-foods/storefront/internal/cart"
	"github.com/palme-foods/storefront/internal/domain"
	"github.com/palme-foods/storefront/internal/gateway"
	"github.com/palme-foods/storefront/internal/money"
	"github.com/palme-foods/storefront/internal/payments"
)

const (
	defaultCurrency    = "NGN"
	checkoutTracerName = "palme-foods/storefront/checkout"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutCartEmpty indicates the cart has no lines to pay for.
	ErrCheckoutCartEmpty = errors.New("checkout: cart is empty")
	// ErrCheckoutPaymentFailed indicates the charge could not be started or did not succeed.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
	// ErrCheckoutAmountMismatch indicates the captured amount differs from the quoted total.
	ErrCheckoutAmountMismatch = errors.New("checkout: captured amount mismatch")
	// ErrCheckoutOrderNotRecorded indicates payment succeeded but the order
	// could not be persisted. The cart is retained for retry and the case
	// needs manual reconciliation against the payment reference.
	ErrCheckoutOrderNotRecorded = errors.New("checkout: order not recorded")
)

// TipSelection captures the shopper's tip choice. Percent presets and a
// custom absolute amount are mutually exclusive; Custom wins when set.
type TipSelection struct {
	Percent   float64
	Custom    string
	UseCustom bool
}

// Amount resolves the tip against the cart subtotal.
func (t TipSelection) Amount(subtotal float64) float64 {
	if t.UseCustom {
		return money.ParseString(t.Custom)
	}
	if t.Percent <= 0 {
		return 0
	}
	return subtotal * t.Percent / 100
}

// ContactInput carries the checkout form's contact fields.
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
}

// Quote is the fully composed pricing breakdown for the current cart.
type Quote struct {
	Subtotal      float64
	ShippingFee   float64
	Discount      float64
	TipAmount     float64
	GrandTotal    float64
	AmountMinor   int64
	TotalWeight   float64
	IsHeavy       bool
	DeliveryType  domain.DeliveryType
	LocationLabel string
	DeliveryNote  string
	HeavyNote     string
}

// QuoteInput carries the per-request pricing inputs not held in the cart.
type QuoteInput struct {
	Discount float64
	Tip      TipSelection
}

// PaymentIntent is a started charge plus the quote it was priced from.
type PaymentIntent struct {
	Reference        string
	Provider         string
	AccessCode       string
	AuthorizationURL string
	Quote            Quote
}

// CompleteOrderInput carries everything needed to reconcile a finished
// payment into an order.
type CompleteOrderInput struct {
	Reference         string
	Contact           ContactInput
	Discount          float64
	Tip               TipSelection
	PreferredProvider string
}

// settingsSource abstracts gateway.SettingsClient for easier testing.
type settingsSource interface {
	Current() domain.DeliverySettings
}

// orderCreator abstracts gateway.OrderClient for easier testing.
type orderCreator interface {
	Create(ctx context.Context, order domain.Order) (domain.CreatedOrder, error)
}

// paymentManager abstracts payments.Manager for easier testing.
type paymentManager interface {
	Initialize(ctx context.Context, paymentCtx payments.PaymentContext, req payments.InitializeRequest) (payments.Transaction, error)
	Verify(ctx context.Context, paymentCtx payments.PaymentContext, reference string) (payments.PaymentDetails, error)
}

// CheckoutEngineDeps wires the dependencies required by the checkout engine.
type CheckoutEngineDeps struct {
	Carts    *cart.Store
	Settings settingsSource
	Orders   orderCreator
	Payments paymentManager
	Currency string
	Clock    func() time.Time
	Entropy  io.Reader
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// CheckoutEngine composes cart state, delivery settings, discounts, and tips
// into a payable total, and drives the pay-then-record order flow.
type CheckoutEngine struct {
	carts    *cart.Store
	settings settingsSource
	orders   orderCreator
	payments paymentManager
	currency string
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
	tracer   trace.Tracer

	entropyMu sync.Mutex
	entropy   io.Reader
}

// NewCheckoutEngine constructs a CheckoutEngine validating required dependencies.
func NewCheckoutEngine(deps CheckoutEngineDeps) (*CheckoutEngine, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout engine: cart store is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("checkout engine: settings source is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout engine: order client is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout engine: payment manager is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	entropy := deps.Entropy
	if entropy == nil {
		entropy = rand.Reader
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &CheckoutEngine{
		carts:    deps.Carts,
		settings: deps.Settings,
		orders:   deps.Orders,
		payments: deps.Payments,
		currency: currency,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:  logger,
		tracer:  otel.Tracer(checkoutTracerName),
		entropy: entropy,
	}, nil
}

// Quote composes the pricing breakdown for the session's cart.
func (e *CheckoutEngine) Quote(sessionID string, input QuoteInput) Quote {
	state := e.carts.Snapshot(sessionID)
	settings := e.settings.Current()
	return e.quote(state, settings, input)
}

func (e *CheckoutEngine) quote(state cart.State, settings domain.DeliverySettings, input QuoteInput) Quote {
	subtotal := state.Subtotal()
	totalWeight := state.TotalWeight()

	var shippingFee float64
	var locationLabel string
	var deliveryNote string
	switch state.DeliveryType {
	case domain.DeliveryPark:
		if state.SelectedLocation != nil {
			locationLabel = state.SelectedLocation.Name
		}
		shippingFee = gateway.PickupFee(state.SelectedLocation, settings)
		deliveryNote = settings.ParkNote
	default:
		shippingFee = money.Parse(settings.DoorstepPrice)
		deliveryNote = settings.DoorstepNote
	}

	threshold := money.Parse(settings.WeightThreshold)
	if threshold <= 0 {
		threshold = 20
	}
	isHeavy := totalWeight > threshold

	var heavyNote string
	if isHeavy {
		limit := strconv.FormatFloat(threshold, 'f', -1, 64)
		if settings.HeavyWeightNote != "" {
			heavyNote = strings.ReplaceAll(settings.HeavyWeightNote, "[limit]", limit)
		} else {
			heavyNote = fmt.Sprintf("Your order exceeds %skg. Additional shipping charges may apply.", limit)
		}
	}

	discount := input.Discount
	if discount < 0 {
		discount = 0
	}
	tipAmount := input.Tip.Amount(subtotal)
	if tipAmount < 0 {
		tipAmount = 0
	}

	grandTotal := subtotal + shippingFee - discount + tipAmount
	if grandTotal < 0 {
		grandTotal = 0
	}

	return Quote{
		Subtotal:      subtotal,
		ShippingFee:   shippingFee,
		Discount:      discount,
		TipAmount:     tipAmount,
		GrandTotal:    grandTotal,
		AmountMinor:   money.Kobo(grandTotal),
		TotalWeight:   totalWeight,
		IsHeavy:       isHeavy,
		DeliveryType:  state.DeliveryType,
		LocationLabel: locationLabel,
		DeliveryNote:  deliveryNote,
		HeavyNote:     heavyNote,
	}
}

// ValidateContact checks the checkout form against the session's delivery
// selection. Exactly one problem is reported, in priority order: email first,
// then the delivery-specific requirement.
func (e *CheckoutEngine) ValidateContact(sessionID string, contact ContactInput) error {
	state := e.carts.Snapshot(sessionID)
	return validateContact(contact, state)
}

func validateContact(contact ContactInput, state cart.State) error {
	if strings.TrimSpace(contact.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrCheckoutInvalidInput)
	}
	switch state.DeliveryType {
	case domain.DeliveryDoorstep:
		if strings.TrimSpace(contact.Address) == "" {
			return fmt.Errorf("%w: address is required for doorstep delivery", ErrCheckoutInvalidInput)
		}
	case domain.DeliveryPark:
		if state.SelectedLocation == nil {
			return fmt.Errorf("%w: pickup location is required for park delivery", ErrCheckoutInvalidInput)
		}
	}
	return nil
}

func (e *CheckoutEngine) newReference() string {
	e.entropyMu.Lock()
	defer e.entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(e.now()), e.entropy)
	if err != nil {
		return strconv.FormatInt(e.now().UnixNano(), 10)
	}
	return id.String()
}

// StartPayment validates the form, prices the cart, and starts a charge for
// the grand total. The returned reference identifies the payment end to end.
func (e *CheckoutEngine) StartPayment(ctx context.Context, sessionID string, contact ContactInput, input QuoteInput, preferredProvider string) (PaymentIntent, error) {
	state := e.carts.Snapshot(sessionID)
	if len(state.Lines) == 0 {
		return PaymentIntent{}, ErrCheckoutCartEmpty
	}
	if err := validateContact(contact, state); err != nil {
		return PaymentIntent{}, err
	}

	quote := e.quote(state, e.settings.Current(), input)
	if quote.AmountMinor <= 0 {
		return PaymentIntent{}, fmt.Errorf("%w: nothing to charge", ErrCheckoutInvalidInput)
	}

	reference := e.newReference()
	tx, err := e.payments.Initialize(ctx, payments.PaymentContext{
		PreferredProvider: preferredProvider,
		Currency:          e.currency,
	}, payments.InitializeRequest{
		Email:       strings.TrimSpace(contact.Email),
		AmountMinor: quote.AmountMinor,
		Currency:    e.currency,
		Reference:   reference,
		Metadata: map[string]string{
			"delivery": string(quote.DeliveryType),
		},
	})
	if err != nil {
		e.logger(ctx, "checkout.payment.start_failed", map[string]any{
			"reference": reference,
			"error":     err.Error(),
		})
		return PaymentIntent{}, fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
	}
	if tx.Reference != "" {
		reference = tx.Reference
	}

	e.logger(ctx, "checkout.payment.started", map[string]any{
		"reference": reference,
		"provider":  tx.Provider,
		"amount":    quote.AmountMinor,
	})

	return PaymentIntent{
		Reference:        reference,
		Provider:         tx.Provider,
		AccessCode:       tx.AccessCode,
		AuthorizationURL: tx.AuthorizationURL,
		Quote:            quote,
	}, nil
}

// CompleteOrder reconciles a finished payment: it re-verifies the charge with
// the provider, checks the captured amount against the quoted total, and only
// then records the order. The cart is cleared solely on a recorded order, so
// a failed submission can be retried with the same payment reference.
func (e *CheckoutEngine) CompleteOrder(ctx context.Context, sessionID string, input CompleteOrderInput) (domain.CreatedOrder, error) {
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return domain.CreatedOrder{}, fmt.Errorf("%w: payment reference is required", ErrCheckoutInvalidInput)
	}

	ctx, span := e.tracer.Start(ctx, "checkout.complete_order", trace.WithAttributes(
		attribute.String("payment.reference", reference),
	))
	defer span.End()

	state := e.carts.Snapshot(sessionID)
	if len(state.Lines) == 0 {
		span.SetStatus(codes.Error, "cart empty")
		return domain.CreatedOrder{}, ErrCheckoutCartEmpty
	}
	if err := validateContact(input.Contact, state); err != nil {
		span.SetStatus(codes.Error, "invalid contact")
		return domain.CreatedOrder{}, err
	}

	quote := e.quote(state, e.settings.Current(), QuoteInput{Discount: input.Discount, Tip: input.Tip})

	details, err := e.payments.Verify(ctx, payments.PaymentContext{
		PreferredProvider: input.PreferredProvider,
		Currency:          e.currency,
	}, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		return domain.CreatedOrder{}, fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
	}
	if details.Status != payments.StatusSucceeded {
		span.SetStatus(codes.Error, "payment not captured")
		return domain.CreatedOrder{}, fmt.Errorf("%w: status %s", ErrCheckoutPaymentFailed, details.Status)
	}
	if details.AmountMinor != quote.AmountMinor {
		e.logger(ctx, "checkout.payment.amount_mismatch", map[string]any{
			"reference": reference,
			"captured":  details.AmountMinor,
			"quoted":    quote.AmountMinor,
		})
		span.SetStatus(codes.Error, "amount mismatch")
		return domain.CreatedOrder{}, fmt.Errorf("%w: captured %d, quoted %d", ErrCheckoutAmountMismatch, details.AmountMinor, quote.AmountMinor)
	}

	order := domain.Order{
		PaymentReference: reference,
		Customer: domain.Customer{
			Name:    strings.TrimSpace(strings.TrimSpace(input.Contact.FirstName) + " " + strings.TrimSpace(input.Contact.LastName)),
			Email:   strings.TrimSpace(input.Contact.Email),
			Phone:   strings.TrimSpace(input.Contact.Phone),
			Address: strings.TrimSpace(input.Contact.Address),
		},
		Items:          state.Lines,
		DeliveryMethod: quote.DeliveryType,
		ParkLocation:   quote.LocationLabel,
		Subtotal:       quote.Subtotal,
		DeliveryFee:    quote.ShippingFee,
		Discount:       quote.Discount,
		TipAmount:      quote.TipAmount,
		TotalAmount:    quote.GrandTotal,
		TotalWeight:    quote.TotalWeight,
		IsHeavy:        quote.IsHeavy,
	}

	created, err := e.orders.Create(ctx, order)
	if err != nil {
		e.logger(ctx, "checkout.order.persist_failed", map[string]any{
			"reference": reference,
			"error":     err.Error(),
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "order not recorded")
		return domain.CreatedOrder{}, fmt.Errorf("%w: %v", ErrCheckoutOrderNotRecorded, err)
	}

	e.carts.Clear(sessionID)
	e.logger(ctx, "checkout.order.created", map[string]any{
		"reference": reference,
		"orderId":   created.ID,
		"total":     order.TotalAmount,
	})
	span.SetStatus(codes.Ok, "")
	return created, nil
}

// CancelPayment records that the shopper dismissed the payment flow. The
// cart and selections are untouched.
func (e *CheckoutEngine) CancelPayment(ctx context.Context, sessionID, reference string) {
	e.logger(ctx, "checkout.payment.cancelled", map[string]any{
		"reference": strings.TrimSpace(reference),
		"items":     e.carts.Snapshot(sessionID).ItemCount(),
	})
}
