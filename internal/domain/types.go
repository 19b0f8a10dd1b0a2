// Package domain defines the storefront's core types: cart lines, delivery
// selection, the settings/location shapes consumed from the commerce API, and
// the outbound order payload.
package domain

import "time"

// DeliveryType selects the fulfilment method for an order.
type DeliveryType string

const (
	// DeliveryDoorstep is home delivery at the configured doorstep fee.
	DeliveryDoorstep DeliveryType = "doorstep"
	// DeliveryPark is pickup at a transit-hub location, optionally carrying a
	// per-location fee override.
	DeliveryPark DeliveryType = "park"
)

// Valid reports whether the delivery type is one of the supported methods.
func (d DeliveryType) Valid() bool {
	return d == DeliveryDoorstep || d == DeliveryPark
}

// CartLine is a single product entry in the cart. ProductID is unique per
// cart; repeat adds increment Quantity instead of inserting a new line.
type CartLine struct {
	ProductID     string  `json:"_id"`
	Name          string  `json:"name"`
	UnitPrice     float64 `json:"price"`
	Size          string  `json:"size,omitempty"`
	UnitWeight    float64 `json:"weight,omitempty"`
	Quantity      int     `json:"qty"`
	DiscountCode  string  `json:"discountCode,omitempty"`
	DiscountPrice float64 `json:"discountPrice,omitempty"`
	Image         string  `json:"image,omitempty"`
}

// LineTotal is the display total for the line.
func (l CartLine) LineTotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// PickupLocation is a park pickup point as served by GET /api/locations.
// The feed historically used both name/parkName and basePrice/price; the
// gateway folds each pair into the canonical field.
type PickupLocation struct {
	ID        string  `json:"_id"`
	State     string  `json:"state"`
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	BasePrice float64 `json:"basePrice"`
	AdminNote string  `json:"adminNote,omitempty"`
}

// DeliverySettings is the normalized shape of GET /api/settings. Notes may
// carry a [limit] placeholder substituted with the weight threshold at
// display time.
type DeliverySettings struct {
	DoorstepPrice   float64
	ParkPrice       float64
	DoorstepNote    string
	ParkNote        string
	WeightThreshold float64
	HeavyWeightNote string
	HeroBadgeText   string
	HeroBadgePrice  float64
	YoutubeLink     string
	MaintenanceMode bool
}

// Customer carries the checkout contact fields. Address is required only for
// doorstep delivery.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

// Order is the payload posted to the order-creation endpoint after a payment
// success callback. It is built once and never mutated afterwards.
type Order struct {
	PaymentReference string       `json:"paymentReference"`
	Customer         Customer     `json:"customer"`
	Items            []CartLine   `json:"items"`
	DeliveryMethod   DeliveryType `json:"deliveryMethod"`
	ParkLocation     string       `json:"parkLocation,omitempty"`
	Subtotal         float64      `json:"subtotal"`
	DeliveryFee      float64      `json:"deliveryFee"`
	Discount         float64      `json:"discount"`
	TipAmount        float64      `json:"tipAmount"`
	TotalAmount      float64      `json:"totalAmount"`
	TotalWeight      float64      `json:"totalWeight"`
	IsHeavy          bool         `json:"isHeavy"`
}

// CreatedOrder is the server's record of a persisted order.
type CreatedOrder struct {
	ID               string    `json:"_id"`
	PaymentReference string    `json:"paymentReference"`
	TotalAmount      float64   `json:"totalAmount"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}

// User is the account record returned by the auth endpoints alongside a
// bearer token. Email, name, and phone seed the checkout contact fields.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
