package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/microcosm-cc/bluemonday"

	"github.com/palme-foods/storefront/internal/domain"
)

// LocationsClient fetches pickup locations. Like SettingsClient, overlapping
// fetches are guarded by a monotonic generation.
type LocationsClient struct {
	client     *Client
	sanitizer  *bluemonday.Policy
	generation atomic.Uint64

	mu      sync.RWMutex
	current []domain.PickupLocation
	applied uint64
}

// LocationsClientDeps bundles dependencies for NewLocationsClient.
type LocationsClientDeps struct {
	Client *Client
}

// NewLocationsClient builds a pickup-location client.
func NewLocationsClient(deps LocationsClientDeps) (*LocationsClient, error) {
	if deps.Client == nil {
		return nil, ErrGatewayInvalidInput
	}
	return &LocationsClient{
		client:    deps.Client,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

type wireLocation struct {
	ID        string          `json:"_id"`
	State     string          `json:"state"`
	Name      string          `json:"name"`
	ParkName  string          `json:"parkName"`
	Address   string          `json:"address"`
	BasePrice json.RawMessage `json:"basePrice"`
	Price     json.RawMessage `json:"price"`
	AdminNote string          `json:"adminNote"`
}

// Refresh fetches the full pickup-location list and caches it unless a newer
// refresh has already landed. On fetch failure the cached list is retained.
func (l *LocationsClient) Refresh(ctx context.Context) ([]domain.PickupLocation, error) {
	gen := l.generation.Add(1)

	var wire []wireLocation
	if err := l.client.doJSON(ctx, "GET", "/api/locations", nil, nil, &wire); err != nil {
		l.client.logger(ctx, "gateway.locations.fallback", map[string]any{
			"error": err.Error(),
		})
		return l.All(), err
	}

	locations := make([]domain.PickupLocation, 0, len(wire))
	for _, w := range wire {
		id := strings.TrimSpace(w.ID)
		if id == "" {
			continue
		}
		name := strings.TrimSpace(w.Name)
		if name == "" {
			name = strings.TrimSpace(w.ParkName)
		}
		price := rawAmount(w.BasePrice)
		if price == 0 {
			price = rawAmount(w.Price)
		}
		locations = append(locations, domain.PickupLocation{
			ID:        id,
			State:     strings.TrimSpace(w.State),
			Name:      name,
			Address:   strings.TrimSpace(w.Address),
			BasePrice: price,
			AdminNote: strings.TrimSpace(l.sanitizer.Sanitize(w.AdminNote)),
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen < l.applied {
		return l.copyLocked(), ErrGatewayStale
	}
	l.applied = gen
	l.current = locations

	l.client.logger(ctx, "gateway.locations.refreshed", map[string]any{
		"count": len(locations),
	})
	return l.copyLocked(), nil
}

// All returns a copy of the cached location list.
func (l *LocationsClient) All() []domain.PickupLocation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyLocked()
}

// ByState filters the cached locations to the given state, case-insensitively,
// sorted by name for stable display.
func (l *LocationsClient) ByState(state string) []domain.PickupLocation {
	state = strings.TrimSpace(state)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var filtered []domain.PickupLocation
	for _, loc := range l.current {
		if strings.EqualFold(loc.State, state) {
			filtered = append(filtered, loc)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Name < filtered[j].Name
	})
	return filtered
}

// Find returns the cached location with the given ID.
func (l *LocationsClient) Find(id string) (domain.PickupLocation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, loc := range l.current {
		if loc.ID == id {
			return loc, true
		}
	}
	return domain.PickupLocation{}, false
}

func (l *LocationsClient) copyLocked() []domain.PickupLocation {
	if len(l.current) == 0 {
		return nil
	}
	out := make([]domain.PickupLocation, len(l.current))
	copy(out, l.current)
	return out
}

// PickupFee resolves a location's effective fee, falling back to the generic
// park price when the location carries no override.
func PickupFee(location *domain.PickupLocation, settings domain.DeliverySettings) float64 {
	if location != nil && location.BasePrice > 0 {
		return location.BasePrice
	}
	return settings.ParkPrice
}
