package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/palme-foods/storefront/internal/cart"
	"github.com/palme-foods/storefront/internal/domain"
	"github.com/palme-foods/storefront/internal/gateway"
	"github.com/palme-foods/storefront/internal/platform/httpx"
)

const maxCartBodySize = 16 * 1024

// locationFinder is the slice of the locations client the cart handlers need.
type locationFinder interface {
	Find(id string) (domain.PickupLocation, bool)
	ByState(state string) []domain.PickupLocation
}

// CartHandlers exposes the session-scoped cart endpoints.
type CartHandlers struct {
	carts     *cart.Store
	locations locationFinder
}

// NewCartHandlers constructs handlers over the cart store and location list.
func NewCartHandlers(carts *cart.Store, locations locationFinder) *CartHandlers {
	return &CartHandlers{
		carts:     carts,
		locations: locations,
	}
}

// Routes wires the /cart endpoints onto the provided router. Every cart
// operation is keyed by the session header, so the requirement lives here
// rather than on the whole API group.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(SessionMiddleware())
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Delete("/items/{productID}", h.removeItem)
	r.Post("/items/{productID}/decrement", h.decrementItem)
	r.Put("/delivery", h.setDelivery)
	r.Put("/location", h.setLocation)
	r.Put("/region", h.setRegion)
}

type cartView struct {
	Items            []domain.CartLine      `json:"items"`
	ItemCount        int                    `json:"itemCount"`
	Subtotal         float64                `json:"subtotal"`
	TotalWeight      float64                `json:"totalWeight"`
	DeliveryType     domain.DeliveryType    `json:"deliveryType"`
	SelectedLocation *domain.PickupLocation `json:"selectedLocation,omitempty"`
	Region           string                 `json:"region,omitempty"`
}

func buildCartView(state cart.State) cartView {
	items := state.Lines
	if items == nil {
		items = []domain.CartLine{}
	}
	return cartView{
		Items:            items,
		ItemCount:        state.ItemCount(),
		Subtotal:         state.Subtotal(),
		TotalWeight:      state.TotalWeight(),
		DeliveryType:     state.DeliveryType,
		SelectedLocation: state.SelectedLocation,
		Region:           state.Region,
	}
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, buildCartView(h.carts.Snapshot(sessionID(r))))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	h.carts.Clear(sessionID(r))
	writeJSONResponse(w, http.StatusOK, buildCartView(h.carts.Snapshot(sessionID(r))))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var line domain.CartLine
	if err := decodeJSONBody(r, maxCartBodySize, &line); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.carts.AddItem(sessionID(r), line); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartView(h.carts.Snapshot(sessionID(r))))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := chi.URLParam(r, "productID")
	size := r.URL.Query().Get("size")

	if err := h.carts.RemoveItem(sessionID(r), productID, size); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartView(h.carts.Snapshot(sessionID(r))))
}

func (h *CartHandlers) decrementItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := chi.URLParam(r, "productID")
	size := r.URL.Query().Get("size")

	if err := h.carts.DecrementItem(sessionID(r), productID, size); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartView(h.carts.Snapshot(sessionID(r))))
}

func (h *CartHandlers) setDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		DeliveryType string `json:"deliveryType"`
	}
	if err := decodeJSONBody(r, maxCartBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.carts.SetDeliveryType(sessionID(r), domain.DeliveryType(strings.TrimSpace(body.DeliveryType))); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartView(h.carts.Snapshot(sessionID(r))))
}

func (h *CartHandlers) setLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		LocationID string `json:"locationId"`
	}
	if err := decodeJSONBody(r, maxCartBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	locationID := strings.TrimSpace(body.LocationID)
	if locationID == "" {
		h.carts.SetSelectedLocation(sessionID(r), nil)
		writeJSONResponse(w, http.StatusOK, buildCartView(h.carts.Snapshot(sessionID(r))))
		return
	}

	location, ok := h.locations.Find(locationID)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("location_not_found", "pickup location not found", http.StatusNotFound))
		return
	}

	h.carts.SetSelectedLocation(sessionID(r), &location)
	// Selecting a location adopts its state as the active region.
	h.carts.SetRegion(sessionID(r), location.State)
	writeJSONResponse(w, http.StatusOK, buildCartView(h.carts.Snapshot(sessionID(r))))
}

func (h *CartHandlers) setRegion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Region string `json:"region"`
	}
	if err := decodeJSONBody(r, maxCartBodySize, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	h.carts.SetRegion(sessionID(r), body.Region)

	payload := struct {
		cartView
		Locations []domain.PickupLocation `json:"locations"`
	}{
		cartView:  buildCartView(h.carts.Snapshot(sessionID(r))),
		Locations: h.locations.ByState(body.Region),
	}
	if payload.Locations == nil {
		payload.Locations = []domain.PickupLocation{}
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, cart.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", "cart item not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart operation failed", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}

var _ locationFinder = (*gateway.LocationsClient)(nil)
