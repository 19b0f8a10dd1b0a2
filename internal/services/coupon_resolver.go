// Package services contains the storefront's checkout logic: coupon
// resolution, pricing composition, validation, and the payment/order flow.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/palme-foods/storefront/internal/cart"
	"github.com/palme-foods/storefront/internal/gateway"
	"github.com/palme-foods/storefront/internal/money"
)

const (
	welcomeCouponCode    = "WELCOME"
	welcomeCouponPercent = 10
)

var (
	// ErrCouponEmptyCode indicates the shopper submitted a blank code.
	ErrCouponEmptyCode = errors.New("coupon: empty code")
	// ErrCouponInvalid indicates the code was rejected or matched nothing.
	ErrCouponInvalid = errors.New("coupon: invalid or inactive")
	// ErrCouponNoMatch indicates a per-item code matched no cart line.
	ErrCouponNoMatch = errors.New("coupon: no matching items")
)

// Discount is the result of applying a coupon to a cart snapshot. Message is
// the notice shown to the shopper, with the saved amount rendered in the
// storefront's grouped-digit style.
type Discount struct {
	Code    string
	Percent float64
	Amount  float64
	Message string
}

func savingsMessage(amount float64) string {
	return fmt.Sprintf("Coupon applied! You saved ₦%s.", money.Format(amount))
}

// couponVerifier abstracts gateway.CouponClient for easier testing.
type couponVerifier interface {
	Verify(ctx context.Context, code string) (gateway.CouponVerification, error)
}

// CouponResolverDeps wires the dependencies required by the coupon resolver.
type CouponResolverDeps struct {
	Verifier couponVerifier
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// CouponResolver turns a user-entered code into a discount amount. The
// WELCOME code resolves locally; every other code goes through the commerce
// API's verify endpoint for a global percent-off.
type CouponResolver struct {
	verifier couponVerifier
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCouponResolver constructs a CouponResolver validating required dependencies.
func NewCouponResolver(deps CouponResolverDeps) (*CouponResolver, error) {
	if deps.Verifier == nil {
		return nil, errors.New("coupon resolver: verifier is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CouponResolver{
		verifier: deps.Verifier,
		logger:   logger,
	}, nil
}

// Apply resolves the code against the cart subtotal. The discount is a
// percentage of the subtotal only; delivery fees and tips are never
// discounted.
func (r *CouponResolver) Apply(ctx context.Context, code string, state cart.State) (Discount, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Discount{}, ErrCouponEmptyCode
	}

	subtotal := state.Subtotal()

	if code == welcomeCouponCode {
		amount := subtotal * welcomeCouponPercent / 100
		discount := Discount{
			Code:    code,
			Percent: welcomeCouponPercent,
			Amount:  amount,
			Message: savingsMessage(amount),
		}
		r.logger(ctx, "checkout.coupon.applied", map[string]any{
			"code":   code,
			"amount": discount.Amount,
		})
		return discount, nil
	}

	verdict, err := r.verifier.Verify(ctx, code)
	if err != nil {
		if errors.Is(err, gateway.ErrCouponRejected) {
			if verdict.Message != "" {
				return Discount{}, fmt.Errorf("%w: %s", ErrCouponInvalid, verdict.Message)
			}
			return Discount{}, ErrCouponInvalid
		}
		return Discount{}, err
	}

	amount := subtotal * verdict.DiscountPercent / 100
	discount := Discount{
		Code:    code,
		Percent: verdict.DiscountPercent,
		Amount:  amount,
		Message: savingsMessage(amount),
	}
	r.logger(ctx, "checkout.coupon.applied", map[string]any{
		"code":    code,
		"percent": verdict.DiscountPercent,
		"amount":  discount.Amount,
	})
	return discount, nil
}

// ApplyItemCodes resolves the code under the legacy per-item policy: each
// cart line carrying a matching discountCode is repriced to its
// discountPrice, and the discount is the sum of the per-line differences.
// Kept for catalogs still tagging products with line-level codes.
func (r *CouponResolver) ApplyItemCodes(ctx context.Context, code string, state cart.State) (Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Discount{}, ErrCouponEmptyCode
	}

	var amount float64
	var matched int
	for _, line := range state.Lines {
		if !strings.EqualFold(strings.TrimSpace(line.DiscountCode), code) {
			continue
		}
		matched++
		if line.DiscountPrice > 0 && line.DiscountPrice < line.UnitPrice {
			amount += (line.UnitPrice - line.DiscountPrice) * float64(line.Quantity)
		}
	}
	if matched == 0 {
		return Discount{}, ErrCouponNoMatch
	}

	discount := Discount{Code: code, Amount: amount, Message: savingsMessage(amount)}
	r.logger(ctx, "checkout.coupon.item_codes_applied", map[string]any{
		"code":    code,
		"matched": matched,
		"amount":  amount,
	})
	return discount, nil
}
