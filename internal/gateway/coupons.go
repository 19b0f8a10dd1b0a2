package gateway

import (
	"context"
	"errors"
	"strings"
)

// ErrCouponRejected is returned when the commerce API declines a coupon code.
// The wrapped message, if any, is the upstream rejection reason.
var ErrCouponRejected = errors.New("gateway: coupon rejected")

// CouponVerification is the upstream verdict for a coupon code.
type CouponVerification struct {
	Valid           bool    `json:"valid"`
	DiscountPercent float64 `json:"discountPercent"`
	Message         string  `json:"message"`
}

// CouponClient verifies coupon codes against the commerce API.
type CouponClient struct {
	client *Client
}

// CouponClientDeps bundles dependencies for NewCouponClient.
type CouponClientDeps struct {
	Client *Client
}

// NewCouponClient builds a coupon verification client.
func NewCouponClient(deps CouponClientDeps) (*CouponClient, error) {
	if deps.Client == nil {
		return nil, ErrGatewayInvalidInput
	}
	return &CouponClient{client: deps.Client}, nil
}

// Verify asks the commerce API whether the code is valid and at what percent.
// Upstream rejections come back as ErrCouponRejected with the upstream
// message preserved for display.
func (c *CouponClient) Verify(ctx context.Context, code string) (CouponVerification, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return CouponVerification{}, ErrGatewayInvalidInput
	}

	var verdict CouponVerification
	err := c.client.doJSON(ctx, "POST", "/api/coupons/verify", nil, map[string]string{"code": code}, &verdict)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			c.client.logger(ctx, "gateway.coupon.rejected", map[string]any{
				"status": statusErr.StatusCode,
			})
			if statusErr.Message != "" {
				return CouponVerification{Message: statusErr.Message}, ErrCouponRejected
			}
			return CouponVerification{}, ErrCouponRejected
		}
		return CouponVerification{}, err
	}

	if !verdict.Valid {
		return verdict, ErrCouponRejected
	}

	c.client.logger(ctx, "gateway.coupon.verified", map[string]any{
		"discountPercent": verdict.DiscountPercent,
	})
	return verdict, nil
}
