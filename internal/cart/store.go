// Package cart holds per-session shopping carts and their delivery
// preferences in memory.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/palme-foods/storefront/internal/domain"
)

// Sentinel errors for cart operations.
var (
	ErrCartInvalidInput = errors.New("cart: invalid input")
	ErrCartItemNotFound = errors.New("cart: item not found")
)

// State is a snapshot of one session's cart and delivery selections.
type State struct {
	Lines            []domain.CartLine
	DeliveryType     domain.DeliveryType
	SelectedLocation *domain.PickupLocation
	Region           string
}

// Subtotal sums line totals across the cart.
func (s State) Subtotal() float64 {
	var total float64
	for _, line := range s.Lines {
		total += line.LineTotal()
	}
	return total
}

// TotalWeight sums unit weight times quantity across the cart.
func (s State) TotalWeight() float64 {
	var total float64
	for _, line := range s.Lines {
		total += line.UnitWeight * float64(line.Quantity)
	}
	return total
}

// ItemCount sums quantities across the cart.
func (s State) ItemCount() int {
	var count int
	for _, line := range s.Lines {
		count += line.Quantity
	}
	return count
}

type sessionCart struct {
	lines            []domain.CartLine
	deliveryType     domain.DeliveryType
	selectedLocation *domain.PickupLocation
	region           string
	updatedAt        time.Time
}

// Store keeps carts keyed by session ID. All methods are safe for
// concurrent use.
type Store struct {
	mu    sync.Mutex
	carts map[string]*sessionCart
	clock func() time.Time
}

// StoreDeps bundles dependencies for NewStore.
type StoreDeps struct {
	Clock func() time.Time
}

// NewStore builds an empty cart store.
func NewStore(deps StoreDeps) *Store {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		carts: make(map[string]*sessionCart),
		clock: func() time.Time { return clock().UTC() },
	}
}

func (s *Store) cartFor(sessionID string) *sessionCart {
	c, ok := s.carts[sessionID]
	if !ok {
		c = &sessionCart{deliveryType: domain.DeliveryDoorstep}
		s.carts[sessionID] = c
	}
	return c
}

// AddItem adds the given line to the session's cart, merging quantity into an
// existing line with the same product ID and size.
func (s *Store) AddItem(sessionID string, line domain.CartLine) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrCartInvalidInput)
	}
	line.ProductID = strings.TrimSpace(line.ProductID)
	if line.ProductID == "" {
		return fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if line.Quantity <= 0 {
		line.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartFor(sessionID)
	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID && c.lines[i].Size == line.Size {
			c.lines[i].Quantity += line.Quantity
			c.updatedAt = s.clock()
			return nil
		}
	}
	c.lines = append(c.lines, line)
	c.updatedAt = s.clock()
	return nil
}

// RemoveItem drops the matching line from the cart regardless of quantity.
func (s *Store) RemoveItem(sessionID, productID, size string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCartItemNotFound, productID)
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].Size == size {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			c.updatedAt = s.clock()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrCartItemNotFound, productID)
}

// DecrementItem lowers the matching line's quantity by one, removing the line
// once it would reach zero.
func (s *Store) DecrementItem(sessionID, productID, size string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCartItemNotFound, productID)
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].Size == size {
			if c.lines[i].Quantity <= 1 {
				c.lines = append(c.lines[:i], c.lines[i+1:]...)
			} else {
				c.lines[i].Quantity--
			}
			c.updatedAt = s.clock()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrCartItemNotFound, productID)
}

// Clear empties the session's cart lines. Delivery selections survive so a
// failed checkout retry does not lose the chosen method.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[sessionID]
	if !ok {
		return
	}
	c.lines = nil
	c.updatedAt = s.clock()
}

// SetDeliveryType switches the session between doorstep and park delivery.
// The park location selection is retained when switching away so it is still
// there when the shopper switches back.
func (s *Store) SetDeliveryType(sessionID string, deliveryType domain.DeliveryType) error {
	if !deliveryType.Valid() {
		return fmt.Errorf("%w: unknown delivery type %q", ErrCartInvalidInput, deliveryType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartFor(sessionID)
	c.deliveryType = deliveryType
	c.updatedAt = s.clock()
	return nil
}

// SetSelectedLocation records the park pickup location for the session.
// Passing nil clears the selection.
func (s *Store) SetSelectedLocation(sessionID string, location *domain.PickupLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartFor(sessionID)
	if location == nil {
		c.selectedLocation = nil
	} else {
		copied := *location
		c.selectedLocation = &copied
	}
	c.updatedAt = s.clock()
}

// SetRegion records the shopper's state/region. A selected park location in a
// different state is cleared, since the location list is about to change.
func (s *Store) SetRegion(sessionID, region string) {
	region = strings.TrimSpace(region)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartFor(sessionID)
	c.region = region
	if c.selectedLocation != nil && !strings.EqualFold(c.selectedLocation.State, region) {
		c.selectedLocation = nil
	}
	c.updatedAt = s.clock()
}

// Snapshot returns a defensive copy of the session's cart state.
func (s *Store) Snapshot(sessionID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[sessionID]
	if !ok {
		return State{DeliveryType: domain.DeliveryDoorstep}
	}

	state := State{
		DeliveryType: c.deliveryType,
		Region:       c.region,
	}
	if len(c.lines) > 0 {
		state.Lines = make([]domain.CartLine, len(c.lines))
		copy(state.Lines, c.lines)
	}
	if c.selectedLocation != nil {
		copied := *c.selectedLocation
		state.SelectedLocation = &copied
	}
	return state
}
