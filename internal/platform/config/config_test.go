package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Commerce.BaseURL != "http://localhost:5000" {
		t.Errorf("Commerce.BaseURL = %q, want default", cfg.Commerce.BaseURL)
	}
	if cfg.Commerce.Currency != "NGN" {
		t.Errorf("Commerce.Currency = %q, want NGN", cfg.Commerce.Currency)
	}
	if cfg.Payments.DefaultProvider != "paystack" {
		t.Errorf("Payments.DefaultProvider = %q, want paystack", cfg.Payments.DefaultProvider)
	}
	if cfg.Commerce.Timeout != 10*time.Second {
		t.Errorf("Commerce.Timeout = %v, want 10s", cfg.Commerce.Timeout)
	}
}

func TestLoadEnvMapPrecedence(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"STOREFRONT_PORT":             "9090",
		"STOREFRONT_API_URL":          "https://api.example.com",
		"STOREFRONT_CURRENCY":         "ngn",
		"STOREFRONT_PAYMENT_PROVIDER": "Stripe",
		"STOREFRONT_API_TIMEOUT":      "5s",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Commerce.BaseURL != "https://api.example.com" {
		t.Errorf("Commerce.BaseURL = %q", cfg.Commerce.BaseURL)
	}
	if cfg.Commerce.Currency != "NGN" {
		t.Errorf("Commerce.Currency = %q, want upper-cased NGN", cfg.Commerce.Currency)
	}
	if cfg.Payments.DefaultProvider != "stripe" {
		t.Errorf("Payments.DefaultProvider = %q, want stripe", cfg.Payments.DefaultProvider)
	}
	if cfg.Commerce.Timeout != 5*time.Second {
		t.Errorf("Commerce.Timeout = %v, want 5s", cfg.Commerce.Timeout)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "# local overrides\nexport STOREFRONT_PORT=7000\nSTOREFRONT_PAYSTACK_SECRET_KEY=\"sk_test_abc\"\nmalformed line\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("Server.Port = %q, want 7000", cfg.Server.Port)
	}
	if cfg.Payments.PaystackSecretKey != "sk_test_abc" {
		t.Errorf("PaystackSecretKey = %q, want unquoted value", cfg.Payments.PaystackSecretKey)
	}
}

func TestLoadEnvMapOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("STOREFRONT_PORT=7000\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(path), WithEnvMap(map[string]string{
		"STOREFRONT_PORT": "9999",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("Server.Port = %q, want env map to win over .env", cfg.Server.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"STOREFRONT_API_URL":  "localhost:5000",
		"STOREFRONT_CURRENCY": "NAIRA",
	}))
	if err == nil {
		t.Fatal("Load should reject scheme-less base URL and bad currency")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if got := validationErr.Fields(); len(got) != 2 {
		t.Errorf("Fields() = %v, want two entries", got)
	}
}
