package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestPaystack(t *testing.T, handler http.Handler) *PaystackProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider, err := NewPaystackProvider(PaystackProviderConfig{
		SecretKey: "sk_test_secret",
		BaseURL:   server.URL,
	})
	if err != nil {
		t.Fatalf("NewPaystackProvider: %v", err)
	}
	return provider
}

func TestPaystackInitialize(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"status": true, "message": "Authorization URL created", "data": {
			"authorization_url": "https://checkout.paystack.com/abc",
			"access_code": "abc",
			"reference": "ref-1"
		}}`))
	})
	provider := newTestPaystack(t, handler)

	tx, err := provider.Initialize(context.Background(), InitializeRequest{
		Email:       "ada@example.com",
		AmountMinor: 1500000,
		Currency:    "NGN",
		Reference:   "ref-1",
		Metadata:    map[string]string{"delivery": "doorstep"},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if gotAuth != "Bearer sk_test_secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["amount"] != float64(1500000) {
		t.Errorf("posted amount = %v, want kobo 1500000", gotBody["amount"])
	}
	if tx.AuthorizationURL != "https://checkout.paystack.com/abc" {
		t.Errorf("AuthorizationURL = %q", tx.AuthorizationURL)
	}
	if tx.Reference != "ref-1" {
		t.Errorf("Reference = %q", tx.Reference)
	}
}

func TestPaystackInitializeValidation(t *testing.T) {
	provider := newTestPaystack(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach upstream")
	}))

	if _, err := provider.Initialize(context.Background(), InitializeRequest{AmountMinor: 1000}); err == nil {
		t.Error("missing email should fail")
	}
	if _, err := provider.Initialize(context.Background(), InitializeRequest{Email: "a@b.c", AmountMinor: 0}); err == nil {
		t.Error("non-positive amount should fail")
	}
}

func TestPaystackVerifySuccess(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"status": true, "message": "Verification successful", "data": {
			"status": "success",
			"reference": "ref-1",
			"amount": 1500000,
			"currency": "NGN",
			"channel": "card",
			"paid_at": "2024-06-01T12:00:00Z"
		}}`))
	})
	provider := newTestPaystack(t, handler)

	details, err := provider.Verify(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if details.Status != StatusSucceeded {
		t.Errorf("status = %q, want succeeded", details.Status)
	}
	if details.AmountMinor != 1500000 {
		t.Errorf("amount = %d, want 1500000", details.AmountMinor)
	}
	if details.Currency != "NGN" || details.Channel != "card" {
		t.Errorf("details = %+v", details)
	}
	if details.PaidAt == nil {
		t.Error("PaidAt should be parsed")
	}
}

func TestPaystackVerifyAbandoned(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": true, "message": "Verification successful", "data": {
			"status": "abandoned",
			"reference": "ref-2",
			"amount": 1000,
			"currency": "NGN"
		}}`))
	})
	provider := newTestPaystack(t, handler)

	details, err := provider.Verify(context.Background(), "ref-2")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if details.Status != StatusFailed {
		t.Errorf("status = %q, want failed for abandoned", details.Status)
	}
}

func TestPaystackEnvelopeErrorSurfaced(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": false, "message": "Invalid key"}`))
	})
	provider := newTestPaystack(t, handler)

	_, err := provider.Verify(context.Background(), "ref-3")
	if err == nil || !strings.Contains(err.Error(), "Invalid key") {
		t.Errorf("error = %v, want upstream message", err)
	}
}
