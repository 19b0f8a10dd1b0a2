package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/palme-foods/storefront/internal/domain"
)

// ErrOrderRejected is returned when the commerce API declines an order. The
// payment has already been captured by the time this surfaces, so callers
// must treat it as a reconciliation case, not a retryable validation error.
var ErrOrderRejected = errors.New("gateway: order rejected")

// OrderClient submits confirmed orders to the commerce API.
type OrderClient struct {
	client *Client
}

// OrderClientDeps bundles dependencies for NewOrderClient.
type OrderClientDeps struct {
	Client *Client
}

// NewOrderClient builds an order submission client.
func NewOrderClient(deps OrderClientDeps) (*OrderClient, error) {
	if deps.Client == nil {
		return nil, ErrGatewayInvalidInput
	}
	return &OrderClient{client: deps.Client}, nil
}

type createOrderResponse struct {
	Order domain.CreatedOrder `json:"order"`
}

// Create posts the order. The payment reference doubles as the idempotency
// key so a retried submission after a network failure cannot create a
// duplicate order.
func (o *OrderClient) Create(ctx context.Context, order domain.Order) (domain.CreatedOrder, error) {
	if strings.TrimSpace(order.PaymentReference) == "" {
		return domain.CreatedOrder{}, fmt.Errorf("%w: payment reference is required", ErrGatewayInvalidInput)
	}

	headers := map[string]string{
		"Idempotency-Key": order.PaymentReference,
	}

	var resp createOrderResponse
	err := o.client.doJSON(ctx, "POST", "/api/orders", headers, order, &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			o.client.logger(ctx, "gateway.order.rejected", map[string]any{
				"status":           statusErr.StatusCode,
				"paymentReference": order.PaymentReference,
			})
			if statusErr.Message != "" {
				return domain.CreatedOrder{}, fmt.Errorf("%w: %s", ErrOrderRejected, statusErr.Message)
			}
			return domain.CreatedOrder{}, ErrOrderRejected
		}
		return domain.CreatedOrder{}, err
	}

	o.client.logger(ctx, "gateway.order.created", map[string]any{
		"orderId":          resp.Order.ID,
		"paymentReference": order.PaymentReference,
	})
	return resp.Order, nil
}
