package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultPaystackBaseURL = "https://api.paystack.co"

// PaystackLogger defines the logging contract for Paystack provider operations.
type PaystackLogger func(ctx context.Context, event string, fields map[string]any)

// PaystackProviderConfig configures the PaystackProvider.
type PaystackProviderConfig struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	Logger     PaystackLogger
}

// PaystackProvider implements the Provider interface against the Paystack
// transaction API.
type PaystackProvider struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     PaystackLogger
}

// NewPaystackProvider constructs a Paystack Provider using the given configuration.
func NewPaystackProvider(cfg PaystackProviderConfig) (*PaystackProvider, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errors.New("paystack: secret key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPaystackBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &PaystackProvider{
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
}

func (p *PaystackProvider) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("paystack: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("paystack: read response: %w", err)
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("paystack: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !envelope.Status {
		message := envelope.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("paystack: %s %s: %s", method, path, message)
	}
	return envelope.Data, nil
}

// Initialize starts a Paystack transaction and returns the hosted checkout
// handle for the shopper to complete.
func (p *PaystackProvider) Initialize(ctx context.Context, req InitializeRequest) (Transaction, error) {
	if p == nil {
		return Transaction{}, errors.New("paystack: provider is nil")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return Transaction{}, errors.New("paystack: email is required")
	}
	if req.AmountMinor <= 0 {
		return Transaction{}, errors.New("paystack: amount must be positive")
	}

	payload := map[string]any{
		"email":  email,
		"amount": req.AmountMinor,
	}
	if currency := strings.ToUpper(strings.TrimSpace(req.Currency)); currency != "" {
		payload["currency"] = currency
	}
	if reference := strings.TrimSpace(req.Reference); reference != "" {
		payload["reference"] = reference
	}
	if callback := strings.TrimSpace(req.CallbackURL); callback != "" {
		payload["callback_url"] = callback
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	raw, err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return Transaction{}, err
	}

	var data paystackInitData
	if err := json.Unmarshal(raw, &data); err != nil {
		return Transaction{}, fmt.Errorf("paystack: decode initialize data: %w", err)
	}

	p.logger(ctx, "payments.paystack.initialized", map[string]any{
		"reference": data.Reference,
		"amount":    req.AmountMinor,
	})

	return Transaction{
		Provider:         "paystack",
		Reference:        data.Reference,
		AccessCode:       data.AccessCode,
		AuthorizationURL: data.AuthorizationURL,
	}, nil
}

// Verify looks up a transaction by reference and normalises its state.
func (p *PaystackProvider) Verify(ctx context.Context, reference string) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("paystack: provider is nil")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return PaymentDetails{}, errors.New("paystack: reference is required")
	}

	raw, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return PaymentDetails{}, err
	}

	var data paystackVerifyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return PaymentDetails{}, fmt.Errorf("paystack: decode verify data: %w", err)
	}

	status := StatusPending
	switch strings.ToLower(data.Status) {
	case "success":
		status = StatusSucceeded
	case "failed", "abandoned", "reversed":
		status = StatusFailed
	}

	var paidAt *time.Time
	if data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			utc := t.UTC()
			paidAt = &utc
		}
	}

	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)

	p.logger(ctx, "payments.paystack.verified", map[string]any{
		"reference": data.Reference,
		"status":    string(status),
		"amount":    data.Amount,
	})

	return PaymentDetails{
		Provider:    "paystack",
		Reference:   data.Reference,
		Status:      status,
		AmountMinor: data.Amount,
		Currency:    strings.ToUpper(data.Currency),
		Channel:     data.Channel,
		PaidAt:      paidAt,
		Raw:         rawMap,
	}, nil
}
