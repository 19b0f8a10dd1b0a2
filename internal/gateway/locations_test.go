package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/palme-foods/storefront/internal/domain"
)

func newLocationsClient(t *testing.T, handler http.Handler) *LocationsClient {
	t.Helper()
	locations, err := NewLocationsClient(LocationsClientDeps{Client: newTestClient(t, handler)})
	if err != nil {
		t.Fatalf("NewLocationsClient: %v", err)
	}
	return locations
}

func TestLocationsRefreshFoldsLegacyFields(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/locations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[
			{"_id": "a", "state": "Lagos", "parkName": "Ojota Park", "price": "2,500"},
			{"_id": "b", "state": "Lagos", "name": "Berger Park", "basePrice": 3000},
			{"_id": "", "state": "Lagos", "name": "No ID"}
		]`))
	})
	client := newLocationsClient(t, handler)

	locations, err := client.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("locations = %d, want 2 (entry without _id dropped)", len(locations))
	}

	byID := map[string]domain.PickupLocation{}
	for _, loc := range locations {
		byID[loc.ID] = loc
	}
	if byID["a"].Name != "Ojota Park" {
		t.Errorf("parkName fold: name = %q", byID["a"].Name)
	}
	if byID["a"].BasePrice != 2500 {
		t.Errorf("price fold: basePrice = %v, want 2500", byID["a"].BasePrice)
	}
	if byID["b"].BasePrice != 3000 {
		t.Errorf("basePrice = %v, want 3000", byID["b"].BasePrice)
	}
}

func TestLocationsByStateCaseInsensitive(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"_id": "a", "state": "Lagos", "name": "Zeta Park"},
			{"_id": "b", "state": "LAGOS", "name": "Alpha Park"},
			{"_id": "c", "state": "Abuja", "name": "Wuse Park"}
		]`))
	})
	client := newLocationsClient(t, handler)
	if _, err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	lagos := client.ByState("lagos")
	if len(lagos) != 2 {
		t.Fatalf("ByState(lagos) = %d entries, want 2", len(lagos))
	}
	if lagos[0].Name != "Alpha Park" || lagos[1].Name != "Zeta Park" {
		t.Errorf("ByState order = [%s, %s], want name-sorted", lagos[0].Name, lagos[1].Name)
	}

	if found := client.ByState("Kano"); len(found) != 0 {
		t.Errorf("ByState(Kano) = %d entries, want 0", len(found))
	}
}

func TestLocationsFind(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"_id": "a", "state": "Lagos", "name": "Ojota Park", "basePrice": 2500}]`))
	})
	client := newLocationsClient(t, handler)
	if _, err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	loc, ok := client.Find("a")
	if !ok || loc.Name != "Ojota Park" {
		t.Errorf("Find(a) = %+v, %v", loc, ok)
	}
	if _, ok := client.Find("missing"); ok {
		t.Error("Find(missing) should report not found")
	}
}

func TestLocationsRefreshFailureKeepsCache(t *testing.T) {
	fail := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"_id": "a", "state": "Lagos", "name": "Ojota Park"}]`))
	})
	client := newLocationsClient(t, handler)
	if _, err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	fail = true
	locations, err := client.Refresh(context.Background())
	if err == nil {
		t.Fatal("Refresh should report upstream failure")
	}
	if len(locations) != 1 {
		t.Errorf("cached locations = %d, want 1 retained", len(locations))
	}
}

func TestPickupFeePrecedence(t *testing.T) {
	settings := domain.DeliverySettings{ParkPrice: 5000}

	withOverride := &domain.PickupLocation{BasePrice: 2500}
	if got := PickupFee(withOverride, settings); got != 2500 {
		t.Errorf("PickupFee with override = %v, want 2500", got)
	}
	noOverride := &domain.PickupLocation{}
	if got := PickupFee(noOverride, settings); got != 5000 {
		t.Errorf("PickupFee without override = %v, want park price", got)
	}
	if got := PickupFee(nil, settings); got != 5000 {
		t.Errorf("PickupFee(nil) = %v, want park price", got)
	}
}
