// Package commerce implements the HTTP client for the commerce backend API.
// This file defines the wire types. The backend wraps every response in a
// {status, message, data} envelope where status == 1 means success.
package commerce

import "encoding/json"

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) ok() bool { return e.Status == 1 && len(e.Data) > 0 }

// sellerData is the tenant payload returned by the seller lookup endpoints.
type sellerData struct {
	StoreID            string `json:"store_id"`
	StoreName          string `json:"store_name"`
	PhoneNumberID      string `json:"phone_number_id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	AccessToken        string `json:"access_token"`
	CatalogID          string `json:"catalog_id"`
	ConnectionStatus   string `json:"connection_status"`
}

// accountData is the customer payload from lookup and guest registration.
type accountData struct {
	AccountID      string       `json:"account_id"`
	Name           string       `json:"name"`
	IsNew          bool         `json:"is_new"`
	DefaultAddress *addressData `json:"default_address"`
}

// addressData is the backend address shape.
type addressData struct {
	AddressID string `json:"address_id"`
	Label     string `json:"label"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

// CartLine is a single authoritative cart row.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// cartTotalsData mirrors the backend totals block.
type cartTotalsData struct {
	Subtotal        float64 `json:"subtotal"`
	DiscountAmount  float64 `json:"discount_amount"`
	DiscountedPrice float64 `json:"discounted_price"`
	CouponDiscount  float64 `json:"coupon_discount"`
	Tax             float64 `json:"tax"`
	DeliveryFee     float64 `json:"delivery_fee"`
	PlatformFee     float64 `json:"platform_fee"`
	Total           float64 `json:"total"`
}

// cartListData is the cart listing payload.
type cartListData struct {
	CartID    string         `json:"cart_id"`
	LineItems []CartLine     `json:"line_items"`
	Totals    cartTotalsData `json:"totals"`
}

// Coupon is the result of a coupon check.
type Coupon struct {
	CouponID      string  `json:"coupon_id"`
	Code          string  `json:"code"`
	Type          string  `json:"type"` // "percent" or "flat"
	Discount      float64 `json:"discount"`
	TotalDiscount float64 `json:"total_discount"`
}

// Order is the most recent order for an account, used to surface an invoice
// number after a successful payment.
type Order struct {
	OrderID   string  `json:"order_id"`
	InvoiceNo string  `json:"invoice_no"`
	Total     float64 `json:"total"`
}

// Product is a catalog item used to seed the per-tenant price cache.
type Product struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountedPrice float64 `json:"discounted_price"`
}
