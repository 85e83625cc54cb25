// Package domain defines the core types shared across the orchestration
// engine: tenant configuration, accounts, addresses, cart totals, payment
// sessions, and the per-conversation checkout state record. ConversationState
// is the only persisted aggregate and is mapped with GORM.
package domain

import (
	"time"
)

// TenantConfig identifies a merchant and carries its messaging credentials.
// A config without an access token is usable for tenant attribution but the
// sender falls back to the process-default credential.
type TenantConfig struct {
	TenantID      string `json:"tenant_id"`
	Name          string `json:"tenant_name"`
	RoutingID     string `json:"routing_id"`     // provider-assigned phone_number_id
	DisplayNumber string `json:"display_number"` // human-readable, e.g. +17158826516
	AccessToken   string `json:"access_token,omitempty"`
	CatalogID     string `json:"catalog_id,omitempty"`
	Connected     bool   `json:"connected"`
}

// HasCredential reports whether the tenant carries its own messaging token.
func (t *TenantConfig) HasCredential() bool {
	return t != nil && t.AccessToken != ""
}

// Account is a backend customer account, either manually registered or
// auto-provisioned as a guest from a chat identifier. Never deleted here.
type Account struct {
	ID             string   `json:"account_id"`
	Name           string   `json:"name"`
	DefaultAddress *Address `json:"default_address,omitempty"`
}

// Address is a delivery address persisted to the backend. State is never
// empty: unparseable input gets the UnknownState sentinel because the
// backend rejects blank state values.
type Address struct {
	ID      string `json:"address_id"`
	Label   string `json:"label"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Raw     string `json:"raw,omitempty"` // free-text source, kept for audit
}

// UnknownState is stored when no state/region could be extracted.
const UnknownState = "N/A"

// CartLineItem is a line from a chat-native cart submission. UnitPrice is
// the channel-quoted price and may be stale; authoritative pricing comes
// from the backend after reconciliation.
type CartLineItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// CartTotals are the backend-computed authoritative totals. Total always
// supersedes any locally summed estimate.
type CartTotals struct {
	Subtotal        float64 `json:"subtotal"`
	DiscountAmount  float64 `json:"discount_amount"`
	DiscountedPrice float64 `json:"discounted_price"`
	CouponDiscount  float64 `json:"coupon_discount"`
	Tax             float64 `json:"tax"`
	DeliveryFee     float64 `json:"delivery_fee"`
	PlatformFee     float64 `json:"platform_fee"`
	Total           float64 `json:"total"`
}

// PaymentStatus is the lifecycle state of an external payment session.
type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentPaid    PaymentStatus = "paid"
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentExpired PaymentStatus = "expired"
)

// Terminal reports whether the session can no longer change state.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentExpired
}

// PaymentSession is an external provider-side checkout session.
type PaymentSession struct {
	ID          string        `json:"session_id"`
	URL         string        `json:"url"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`

	// Metadata carried on the provider session for later recovery.
	AccountID      string `json:"account_id"`
	TenantID       string `json:"tenant_id"`
	AddressID      string `json:"address_id"`
	CouponID       string `json:"coupon_id,omitempty"`
	ConversationID string `json:"conversation_id"`
}

// Step is the current position of a conversation in the checkout flow.
type Step string

const (
	StepUnidentified        Step = "UNIDENTIFIED"
	StepIdentifiedNoAddress Step = "IDENTIFIED_NO_ADDRESS"
	StepAwaitingLocation    Step = "AWAITING_LOCATION"
	StepAwaitingTypedAddr   Step = "AWAITING_TYPED_ADDRESS"
	StepAddressConfirmed    Step = "ADDRESS_CONFIRMED"
	StepPaymentCreated      Step = "PAYMENT_CREATED"
	StepPaid                Step = "PAID"
)

// ConversationState is the only memory a conversation has across turns.
// It is cached locally and refreshed at explicit checkpoints (after cart
// reconciliation, address save, payment poll), so it can drift from backend
// truth when a remote call fails mid-flow; that trade-off is accepted to
// avoid a remote round trip on every turn.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SenderID / RoutingID: channel sender and tenant routing identifiers;
//     together they uniquely key a conversation.
//   - Step: current checkout step.
//   - Account*: resolved identity, set once identification succeeds.
//   - AddressID: confirmed delivery address (backend id).
//   - Coupon*: applied coupon; orthogonal to the address state.
//   - PaymentSessionID: active provider session, cleared on terminal status.
//   - CartItemCount / CartTotal: last-synced cart snapshot for display.
type ConversationState struct {
	ID        string `json:"id"         gorm:"type:char(36);primaryKey"`
	SenderID  string `json:"sender_id"  gorm:"type:varchar(32);not null;uniqueIndex:ux_conv_sender_routing,priority:1"`
	RoutingID string `json:"routing_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_conv_sender_routing,priority:2"`

	Step Step `json:"step" gorm:"type:varchar(32);not null;default:'UNIDENTIFIED'"`

	TenantID   string `json:"tenant_id"   gorm:"type:varchar(32);index"`
	TenantName string `json:"tenant_name" gorm:"type:varchar(255)"`

	AccountID   string `json:"account_id" gorm:"type:varchar(32);index"`
	AccountName string `json:"account_name" gorm:"type:varchar(255)"`
	IsGuest     bool   `json:"is_guest"`

	AddressID string `json:"address_id" gorm:"type:varchar(32)"`

	CouponID   string `json:"coupon_id"   gorm:"type:varchar(32)"`
	CouponCode string `json:"coupon_code" gorm:"type:varchar(64)"`

	PaymentSessionID string `json:"payment_session_id" gorm:"type:varchar(128)"`

	CartItemCount int     `json:"cart_item_count"`
	CartTotal     float64 `json:"cart_total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ConversationState.
func (ConversationState) TableName() string { return "conversation_states" }

// Identified reports whether the conversation has a resolved account.
func (c *ConversationState) Identified() bool { return c.AccountID != "" }

// Reset wipes the state bag wholesale (logout/restart), keeping only the
// conversation identity keys.
func (c *ConversationState) Reset() {
	c.Step = StepUnidentified
	c.TenantID, c.TenantName = "", ""
	c.AccountID, c.AccountName, c.IsGuest = "", "", false
	c.AddressID = ""
	c.CouponID, c.CouponCode = "", ""
	c.PaymentSessionID = ""
	c.CartItemCount, c.CartTotal = 0, 0
}
