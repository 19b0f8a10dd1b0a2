package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/palme-foods/storefront/internal/domain"
)

func newOrderClient(t *testing.T, handler http.Handler) *OrderClient {
	t.Helper()
	orders, err := NewOrderClient(OrderClientDeps{Client: newTestClient(t, handler)})
	if err != nil {
		t.Fatalf("NewOrderClient: %v", err)
	}
	return orders
}

func TestOrderCreateSendsIdempotencyKey(t *testing.T) {
	var gotKey string
	var gotBody domain.Order
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"order": {"_id": "ord-1", "paymentReference": "ref-1", "totalAmount": 15000, "status": "pending"}}`))
	})

	created, err := newOrderClient(t, handler).Create(context.Background(), domain.Order{
		PaymentReference: "ref-1",
		Customer:         domain.Customer{Name: "Ada Obi", Email: "ada@example.com"},
		DeliveryMethod:   domain.DeliveryDoorstep,
		TotalAmount:      15000,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gotKey != "ref-1" {
		t.Errorf("Idempotency-Key = %q, want payment reference", gotKey)
	}
	if gotBody.TotalAmount != 15000 {
		t.Errorf("posted totalAmount = %v, want 15000", gotBody.TotalAmount)
	}
	if created.ID != "ord-1" {
		t.Errorf("created.ID = %q, want ord-1", created.ID)
	}
}

func TestOrderCreateSurfacesUpstreamMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "Item out of stock"}`))
	})

	_, err := newOrderClient(t, handler).Create(context.Background(), domain.Order{PaymentReference: "ref-2"})
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("error = %v, want ErrOrderRejected", err)
	}
	if !strings.Contains(err.Error(), "Item out of stock") {
		t.Errorf("error = %q, want upstream message preserved", err)
	}
}

func TestOrderCreateRequiresReference(t *testing.T) {
	orders := newOrderClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach upstream")
	}))

	_, err := orders.Create(context.Background(), domain.Order{})
	if !errors.Is(err, ErrGatewayInvalidInput) {
		t.Errorf("error = %v, want ErrGatewayInvalidInput", err)
	}
}

func TestCouponVerify(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		switch body["code"] {
		case "SAVE20":
			w.Write([]byte(`{"valid": true, "discountPercent": 20}`))
		case "EXPIRED":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message": "Invalid or inactive coupon."}`))
		default:
			w.Write([]byte(`{"valid": false}`))
		}
	})
	coupons, err := NewCouponClient(CouponClientDeps{Client: newTestClient(t, handler)})
	if err != nil {
		t.Fatalf("NewCouponClient: %v", err)
	}

	verdict, err := coupons.Verify(context.Background(), "SAVE20")
	if err != nil {
		t.Fatalf("Verify(SAVE20): %v", err)
	}
	if verdict.DiscountPercent != 20 {
		t.Errorf("DiscountPercent = %v, want 20", verdict.DiscountPercent)
	}

	verdict, err = coupons.Verify(context.Background(), "EXPIRED")
	if !errors.Is(err, ErrCouponRejected) {
		t.Fatalf("Verify(EXPIRED) error = %v, want ErrCouponRejected", err)
	}
	if verdict.Message != "Invalid or inactive coupon." {
		t.Errorf("Message = %q, want upstream rejection text", verdict.Message)
	}

	if _, err := coupons.Verify(context.Background(), "NOPE"); !errors.Is(err, ErrCouponRejected) {
		t.Errorf("Verify(NOPE) error = %v, want ErrCouponRejected for valid=false", err)
	}

	if _, err := coupons.Verify(context.Background(), "  "); !errors.Is(err, ErrGatewayInvalidInput) {
		t.Errorf("blank code error = %v, want ErrGatewayInvalidInput", err)
	}
}
