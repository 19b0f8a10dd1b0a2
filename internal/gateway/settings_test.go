package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func newSettingsClient(t *testing.T, handler http.Handler) *SettingsClient {
	t.Helper()
	settings, err := NewSettingsClient(SettingsClientDeps{Client: newTestClient(t, handler)})
	if err != nil {
		t.Fatalf("NewSettingsClient: %v", err)
	}
	return settings
}

func TestSettingsRefreshArrayShape(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/settings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"key": "doorstep_price", "value": "12,500"},
			{"key": "park_price", "value": 4000},
			{"key": "weight_threshold", "value": "25"},
			{"key": "heavy_weight_note", "value": "Orders above [limit]kg need review."},
			{"key": "maintenance_mode", "value": "true"}
		]`))
	})

	settings, err := newSettingsClient(t, handler).Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if settings.DoorstepPrice != 12500 {
		t.Errorf("DoorstepPrice = %v, want 12500 parsed from comma string", settings.DoorstepPrice)
	}
	if settings.ParkPrice != 4000 {
		t.Errorf("ParkPrice = %v, want 4000", settings.ParkPrice)
	}
	if settings.WeightThreshold != 25 {
		t.Errorf("WeightThreshold = %v, want 25", settings.WeightThreshold)
	}
	if settings.HeavyWeightNote != "Orders above [limit]kg need review." {
		t.Errorf("HeavyWeightNote = %q", settings.HeavyWeightNote)
	}
	if !settings.MaintenanceMode {
		t.Error("MaintenanceMode should parse truthy string")
	}
	if settings.DoorstepNote != FallbackDoorstepNote {
		t.Errorf("DoorstepNote = %q, want fallback for absent key", settings.DoorstepNote)
	}
}

func TestSettingsRefreshObjectShape(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"doorstep_price": 9000, "park_note": "Bring your order number."}`))
	})

	settings, err := newSettingsClient(t, handler).Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if settings.DoorstepPrice != 9000 {
		t.Errorf("DoorstepPrice = %v, want 9000", settings.DoorstepPrice)
	}
	if settings.ParkNote != "Bring your order number." {
		t.Errorf("ParkNote = %q", settings.ParkNote)
	}
	if settings.ParkPrice != FallbackParkPrice {
		t.Errorf("ParkPrice = %v, want fallback", settings.ParkPrice)
	}
}

func TestSettingsRefreshSanitizesNotes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"doorstep_note": "Fees vary by weight.<script>alert(1)</script>"}`))
	})

	settings, err := newSettingsClient(t, handler).Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if settings.DoorstepNote != "Fees vary by weight." {
		t.Errorf("DoorstepNote = %q, want markup stripped", settings.DoorstepNote)
	}
}

func TestSettingsRefreshFailureKeepsFallbacks(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client := newSettingsClient(t, handler)

	settings, err := client.Refresh(context.Background())
	if err == nil {
		t.Fatal("Refresh should report upstream failure")
	}
	if settings != DefaultSettings() {
		t.Errorf("settings = %+v, want fallback defaults retained", settings)
	}
	if client.Current() != DefaultSettings() {
		t.Error("Current should still serve fallback defaults")
	}
}

func TestSettingsRefreshZeroThresholdKeepsDefault(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weight_threshold": "not-a-number"}`))
	})

	settings, err := newSettingsClient(t, handler).Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if settings.WeightThreshold != FallbackWeightThreshold {
		t.Errorf("WeightThreshold = %v, want default %d for non-numeric value", settings.WeightThreshold, FallbackWeightThreshold)
	}
}

func TestSettingsStaleResponseDiscarded(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"doorstep_price": 7777}`))
	})
	client := newSettingsClient(t, handler)

	// Simulate a newer refresh having already landed.
	client.generation.Add(5)
	client.mu.Lock()
	client.applied = client.generation.Load()
	client.current.DoorstepPrice = 20000
	client.mu.Unlock()
	client.generation.Store(0)

	settings, err := client.Refresh(context.Background())
	if !errors.Is(err, ErrGatewayStale) {
		t.Fatalf("Refresh error = %v, want ErrGatewayStale", err)
	}
	if settings.DoorstepPrice != 20000 {
		t.Errorf("DoorstepPrice = %v, stale response must not overwrite newer data", settings.DoorstepPrice)
	}
}
