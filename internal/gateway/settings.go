package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/microcosm-cc/bluemonday"

	"github.com/palme-foods/storefront/internal/domain"
	"github.com/palme-foods/storefront/internal/money"
)

// Fallback values used when the settings fetch fails or a key is absent.
const (
	FallbackDoorstepPrice   = 10000
	FallbackParkPrice       = 5000
	FallbackDoorstepNote    = "Shipping fees are calculated based on weight."
	FallbackParkNote        = "Please bring a valid ID for pickup."
	FallbackWeightThreshold = 20
	FallbackHeavyWeightNote = "Order too heavy. We will contact you."
)

// DefaultSettings returns the hardcoded fallback delivery settings.
func DefaultSettings() domain.DeliverySettings {
	return domain.DeliverySettings{
		DoorstepPrice:   FallbackDoorstepPrice,
		ParkPrice:       FallbackParkPrice,
		DoorstepNote:    FallbackDoorstepNote,
		ParkNote:        FallbackParkNote,
		WeightThreshold: FallbackWeightThreshold,
		HeavyWeightNote: FallbackHeavyWeightNote,
	}
}

// SettingsClient fetches and caches delivery settings. Overlapping refreshes
// are guarded by a monotonic generation so out-of-order responses never
// overwrite newer ones.
type SettingsClient struct {
	client     *Client
	sanitizer  *bluemonday.Policy
	generation atomic.Uint64

	mu      sync.RWMutex
	current domain.DeliverySettings
	applied uint64
}

// SettingsClientDeps bundles dependencies for NewSettingsClient.
type SettingsClientDeps struct {
	Client *Client
}

// NewSettingsClient builds a settings client seeded with fallback values.
func NewSettingsClient(deps SettingsClientDeps) (*SettingsClient, error) {
	if deps.Client == nil {
		return nil, ErrGatewayInvalidInput
	}
	return &SettingsClient{
		client:    deps.Client,
		sanitizer: bluemonday.StrictPolicy(),
		current:   DefaultSettings(),
	}, nil
}

// Current returns the most recently applied settings.
func (s *SettingsClient) Current() domain.DeliverySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Refresh fetches settings from the commerce API and applies them unless a
// newer refresh has already landed. On fetch failure the cached settings are
// retained and returned alongside the error.
func (s *SettingsClient) Refresh(ctx context.Context) (domain.DeliverySettings, error) {
	gen := s.generation.Add(1)

	var raw json.RawMessage
	if err := s.client.doJSON(ctx, "GET", "/api/settings", nil, nil, &raw); err != nil {
		s.client.logger(ctx, "gateway.settings.fallback", map[string]any{
			"error": err.Error(),
		})
		return s.Current(), err
	}

	settings := s.normalize(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.applied {
		return s.current, ErrGatewayStale
	}
	s.applied = gen
	s.current = settings

	s.client.logger(ctx, "gateway.settings.refreshed", map[string]any{
		"doorstepPrice":   settings.DoorstepPrice,
		"parkPrice":       settings.ParkPrice,
		"weightThreshold": settings.WeightThreshold,
		"maintenanceMode": settings.MaintenanceMode,
	})
	return settings, nil
}

type settingsPair struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// normalize folds both upstream shapes, an array of {key, value} pairs or a
// pre-reduced object map, into DeliverySettings over the fallback defaults.
func (s *SettingsClient) normalize(raw json.RawMessage) domain.DeliverySettings {
	values := make(map[string]json.RawMessage)

	var pairs []settingsPair
	if err := json.Unmarshal(raw, &pairs); err == nil {
		for _, pair := range pairs {
			if key := strings.TrimSpace(pair.Key); key != "" {
				values[key] = pair.Value
			}
		}
	} else {
		_ = json.Unmarshal(raw, &values)
	}

	settings := DefaultSettings()
	if v, ok := values["doorstep_price"]; ok {
		settings.DoorstepPrice = rawAmount(v)
	}
	if v, ok := values["park_price"]; ok {
		settings.ParkPrice = rawAmount(v)
	}
	if v, ok := values["doorstep_note"]; ok {
		if note := s.rawText(v); note != "" {
			settings.DoorstepNote = note
		}
	}
	if v, ok := values["park_note"]; ok {
		if note := s.rawText(v); note != "" {
			settings.ParkNote = note
		}
	}
	if v, ok := values["weight_threshold"]; ok {
		if threshold := rawAmount(v); threshold > 0 {
			settings.WeightThreshold = threshold
		}
	}
	if v, ok := values["heavy_weight_note"]; ok {
		if note := s.rawText(v); note != "" {
			settings.HeavyWeightNote = note
		}
	}
	if v, ok := values["hero_badge_text"]; ok {
		settings.HeroBadgeText = s.rawText(v)
	}
	if v, ok := values["hero_badge_price"]; ok {
		settings.HeroBadgePrice = rawAmount(v)
	}
	if v, ok := values["youtube_link"]; ok {
		settings.YoutubeLink = s.rawText(v)
	}
	if v, ok := values["maintenance_mode"]; ok {
		settings.MaintenanceMode = rawBool(v)
	}
	return settings
}

// rawAmount decodes a JSON value that may be a number or a string with
// thousands separators.
func rawAmount(raw json.RawMessage) float64 {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}
	return money.Parse(value)
}

func (s *SettingsClient) rawText(raw json.RawMessage) string {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func rawBool(raw json.RawMessage) bool {
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return flag
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "true", "1", "yes", "on":
			return true
		}
		return false
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number != 0
	}
	return false
}
