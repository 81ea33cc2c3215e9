package backend

import (
	"fmt"
	"net/http"

	"github.com/osomejk/stonedesk-gateway/internal/charges"
)

// CartItem is a cart or order line as the distributor backend returns it.
// UnitPrice is already commission-adjusted for the viewing client.
type CartItem struct {
	ID        string        `json:"id"`
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	UnitPrice charges.Money `json:"unitPrice"`
	Quantity  int           `json:"quantity"`
}

// AdditionalCharges mirrors the backend's additionalCharges object. Insurance
// is optional: absent or zero means auto-calculated. GSTRate travels as a
// percentage on the wire. GSTAmount and TotalAmount only appear on order
// reads, where the backend includes its stored computation.
type AdditionalCharges struct {
	LoadingFee       charges.Money  `json:"loadingFee"`
	WoodPackaging    charges.Money  `json:"woodPackaging"`
	Insurance        *charges.Money `json:"insurance,omitempty"`
	TransportAdvance charges.Money  `json:"transportAdvance"`
	GSTRate          float64        `json:"gstRate"`
	GSTAmount        charges.Money  `json:"gstAmount,omitempty"`
	TotalAmount      charges.Money  `json:"totalAmount,omitempty"`
}

// Config converts the wire shape into the calculator's configuration.
func (a AdditionalCharges) Config() charges.Config {
	cfg := charges.Config{
		LoadingFee:       a.LoadingFee,
		WoodPackaging:    a.WoodPackaging,
		TransportAdvance: a.TransportAdvance,
		GSTRateBps:       charges.PercentToBps(a.GSTRate),
	}
	if a.Insurance != nil && *a.Insurance > 0 {
		cfg.InsuranceOverride = *a.Insurance
	}
	return cfg
}

// ChargesPayload converts a calculator configuration back into the wire shape
// accepted by updateCartAdditionalCharges.
func ChargesPayload(cfg charges.Config) AdditionalCharges {
	payload := AdditionalCharges{
		LoadingFee:       cfg.LoadingFee,
		WoodPackaging:    cfg.WoodPackaging,
		TransportAdvance: cfg.TransportAdvance,
		GSTRate:          charges.BpsToPercent(cfg.GSTRateBps),
	}
	if cfg.InsuranceOverride > 0 {
		override := cfg.InsuranceOverride
		payload.Insurance = &override
	}
	return payload
}

// Cart is the payload of GET /api/getUserCart.
type Cart struct {
	Items             []CartItem        `json:"items"`
	AdditionalCharges AdditionalCharges `json:"additionalCharges"`
}

// LineItems converts cart items into calculator line items.
func (c Cart) LineItems() []charges.LineItem {
	items := make([]charges.LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, charges.LineItem{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return items
}

// CreateOrderInput is the body of POST /api/createOrder.
type CreateOrderInput struct {
	ShippingAddress  string `json:"shippingAddress"`
	PaymentMethod    string `json:"paymentMethod"`
	Notes            string `json:"notes,omitempty"`
	FollowUpReminder string `json:"followUpReminder,omitempty"`
}

// OrderConfirmation is the createOrder response payload.
type OrderConfirmation struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// Order is the payload of the order read endpoints.
type Order struct {
	ID                string            `json:"id"`
	ClientID          string            `json:"clientId"`
	Status            string            `json:"status"`
	CreatedAt         string            `json:"createdAt"`
	Items             []CartItem        `json:"items"`
	AdditionalCharges AdditionalCharges `json:"additionalCharges"`
	ShippingAddress   string            `json:"shippingAddress"`
	PaymentMethod     string            `json:"paymentMethod"`
	Notes             string            `json:"notes,omitempty"`
}

// LineItems converts order items into calculator line items.
func (o Order) LineItems() []charges.LineItem {
	items := make([]charges.LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, charges.LineItem{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return items
}

// AgentProfileUpdate carries the editable agent fields. The backend's newer
// deployments accept a combined PUT; older ones only expose per-section PATCH
// endpoints.
type AgentProfileUpdate struct {
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Territory string `json:"territory,omitempty"`
	Status    string `json:"status,omitempty"`
}

// APIError describes a non-2xx response from the distributor backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("backend: %s (%d)", e.Message, e.StatusCode)
}

// Unwrap maps well-known status codes onto sentinel errors so callers can use
// errors.Is without losing the full APIError.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}
