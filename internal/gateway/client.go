// Package gateway wraps the remote commerce API that owns settings, pickup
// locations, coupons, orders, and accounts.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Sentinel errors for gateway operations.
var (
	ErrGatewayInvalidInput = errors.New("gateway: invalid input")
	ErrGatewayUnavailable  = errors.New("gateway: upstream unavailable")
	ErrGatewayStale        = errors.New("gateway: response superseded")
)

const defaultTimeout = 10 * time.Second

// Logger defines the logging contract for gateway operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// StatusError carries a non-2xx upstream response. Message is the upstream
// body's message field verbatim so callers can surface it to the shopper.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: upstream status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: upstream status %d", e.StatusCode)
}

// Client is the shared HTTP plumbing for commerce API calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger
}

// ClientDeps bundles dependencies for NewClient.
type ClientDeps struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     Logger
}

// NewClient builds the shared commerce API client. When no HTTP client is
// supplied the default transport is wrapped for trace propagation.
func NewClient(deps ClientDeps) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrGatewayInvalidInput)
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		timeout := deps.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type upstreamMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// doJSON performs one JSON round trip to the commerce API. out may be nil
// when the caller does not need the body. Non-2xx responses come back as a
// *StatusError with the upstream message intact.
func (c *Client) doJSON(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger(ctx, "gateway.request.failed", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return fmt.Errorf("%w: %s %s: %v", ErrGatewayUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gateway: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg upstreamMessage
		_ = json.Unmarshal(data, &msg)
		message := msg.Message
		if message == "" {
			message = msg.Error
		}
		c.logger(ctx, "gateway.request.rejected", map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		})
		return &StatusError{StatusCode: resp.StatusCode, Message: message}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("gateway: decode response body: %w", err)
	}
	return nil
}
