// Package commerce – Client
//
// Client wraps the commerce backend's internal bot API. All calls are
// synchronous with a short per-call timeout and no automatic retries: a
// timeout or 5xx is surfaced to the caller, which degrades to a user-visible
// "try again" message rather than failing the turn.
//
// Error semantics:
//   - ErrNotFound: the backend answered but the entity does not exist
//     (status != 1 or empty data).
//   - Other errors: transport failures or non-2xx responses, wrapped with
//     the endpoint for context.
package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ErrNotFound is returned when the backend reports no matching entity.
var ErrNotFound = errors.New("commerce: not found")

const headerInternalKey = "X-Internal-API-Key"

// Client is the commerce backend API client.
type Client struct {
	http *resty.Client
}

// New builds a Client against baseURL, authenticating with apiKey.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader(headerInternalKey, apiKey)
	return &Client{http: h}
}

// post issues a POST and decodes the standard envelope. The returned
// envelope has ok()==true only for status==1 with a data payload.
func (c *Client) post(ctx context.Context, path string, body any) (*envelope, error) {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&env).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("commerce: %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("commerce: %s: backend returned %s", path, resp.Status())
	}
	return &env, nil
}

// decode unmarshals the envelope data into out, mapping non-success
// envelopes to ErrNotFound.
func decode(env *envelope, path string, out any) error {
	if !env.ok() {
		return ErrNotFound
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("commerce: %s: decode: %w", path, err)
	}
	return nil
}

func toTenant(d *sellerData) *domain.TenantConfig {
	return &domain.TenantConfig{
		TenantID:      d.StoreID,
		Name:          d.StoreName,
		RoutingID:     d.PhoneNumberID,
		DisplayNumber: d.DisplayPhoneNumber,
		AccessToken:   d.AccessToken,
		CatalogID:     d.CatalogID,
		Connected:     d.ConnectionStatus == "connected",
	}
}

func toAddress(d *addressData) *domain.Address {
	if d == nil {
		return nil
	}
	return &domain.Address{
		ID:      d.AddressID,
		Label:   d.Label,
		Street:  d.Street,
		City:    d.City,
		State:   d.State,
		Zip:     d.Zip,
		Country: d.Country,
	}
}

// TenantByRoutingID looks a tenant up by the provider-assigned routing id.
func (c *Client) TenantByRoutingID(ctx context.Context, routingID string) (*domain.TenantConfig, error) {
	const path = "/internal/whatsapp/get-seller-by-phone"
	env, err := c.post(ctx, path, map[string]string{"phone_number_id": routingID})
	if err != nil {
		return nil, err
	}
	var d sellerData
	if err := decode(env, path, &d); err != nil {
		return nil, err
	}
	return toTenant(&d), nil
}

// TenantByDisplayNumber looks a tenant up by its human-readable number.
func (c *Client) TenantByDisplayNumber(ctx context.Context, display string) (*domain.TenantConfig, error) {
	const path = "/internal/whatsapp/get-seller-by-display-phone"
	env, err := c.post(ctx, path, map[string]string{"display_phone": display})
	if err != nil {
		return nil, err
	}
	var d sellerData
	if err := decode(env, path, &d); err != nil {
		return nil, err
	}
	return toTenant(&d), nil
}

// AccountByPhone finds a customer account keyed by a phone format variant.
func (c *Client) AccountByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	const path = "/internal/customer/find-by-phone"
	env, err := c.post(ctx, path, map[string]string{"phone": phone})
	if err != nil {
		return nil, err
	}
	var d accountData
	if err := decode(env, path, &d); err != nil {
		return nil, err
	}
	return &domain.Account{ID: d.AccountID, Name: d.Name, DefaultAddress: toAddress(d.DefaultAddress)}, nil
}

// RegisterGuest auto-provisions a guest account for a local number under the
// given country code. isNew is false when the backend deduplicated.
func (c *Client) RegisterGuest(ctx context.Context, phoneLocal, name, countryCode string) (*domain.Account, bool, error) {
	const path = "/internal/customer/guest-register"
	env, err := c.post(ctx, path, map[string]string{
		"phone_local":  phoneLocal,
		"name":         name,
		"country_code": countryCode,
	})
	if err != nil {
		return nil, false, err
	}
	var d accountData
	if err := decode(env, path, &d); err != nil {
		return nil, false, err
	}
	return &domain.Account{ID: d.AccountID, Name: d.Name}, d.IsNew, nil
}

// ClearCart empties the remote cart for an account.
func (c *Client) ClearCart(ctx context.Context, accountID string) error {
	env, err := c.post(ctx, "/internal/cart/clear", map[string]string{"account_id": accountID})
	if err != nil {
		return err
	}
	if env.Status != 1 {
		return fmt.Errorf("commerce: cart clear rejected: %s", env.Message)
	}
	return nil
}

// AddToCart adds one product line to the remote cart.
func (c *Client) AddToCart(ctx context.Context, accountID, productID string, quantity int, tenantID string) error {
	env, err := c.post(ctx, "/internal/cart/add", map[string]any{
		"account_id": accountID,
		"product_id": productID,
		"quantity":   quantity,
		"tenant_id":  tenantID,
	})
	if err != nil {
		return err
	}
	if env.Status != 1 {
		return fmt.Errorf("commerce: cart add rejected: %s", env.Message)
	}
	return nil
}

// CartListing is the authoritative cart for an account.
type CartListing struct {
	CartID    string
	LineItems []CartLine
	Totals    domain.CartTotals
}

// ListCart fetches the authoritative cart, optionally scoped by coupon and
// tenant.
func (c *Client) ListCart(ctx context.Context, accountID, couponID, tenantID string) (*CartListing, error) {
	const path = "/internal/cart/list"
	body := map[string]string{"account_id": accountID}
	if couponID != "" {
		body["coupon_id"] = couponID
	}
	if tenantID != "" {
		body["tenant_id"] = tenantID
	}
	env, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	var d cartListData
	if err := decode(env, path, &d); err != nil {
		return nil, err
	}
	return &CartListing{
		CartID:    d.CartID,
		LineItems: d.LineItems,
		Totals: domain.CartTotals{
			Subtotal:        d.Totals.Subtotal,
			DiscountAmount:  d.Totals.DiscountAmount,
			DiscountedPrice: d.Totals.DiscountedPrice,
			CouponDiscount:  d.Totals.CouponDiscount,
			Tax:             d.Totals.Tax,
			DeliveryFee:     d.Totals.DeliveryFee,
			PlatformFee:     d.Totals.PlatformFee,
			Total:           d.Totals.Total,
		},
	}, nil
}

// CheckCoupon validates a coupon code against a cart amount.
func (c *Client) CheckCoupon(ctx context.Context, code, accountID, cartID string, amount float64) (*Coupon, error) {
	const path = "/internal/coupon/check"
	env, err := c.post(ctx, path, map[string]any{
		"code":       code,
		"account_id": accountID,
		"cart_id":    cartID,
		"amount":     amount,
	})
	if err != nil {
		return nil, err
	}
	var d Coupon
	if err := decode(env, path, &d); err != nil {
		return nil, err
	}
	if d.Code == "" {
		d.Code = code
	}
	return &d, nil
}

// ListCoupons returns the coupons currently available to an account,
// optionally scoped to a tenant.
func (c *Client) ListCoupons(ctx context.Context, accountID, tenantID string) ([]Coupon, error) {
	const path = "/internal/coupon/list"
	body := map[string]string{"account_id": accountID}
	if tenantID != "" {
		body["tenant_id"] = tenantID
	}
	env, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	var rows []Coupon
	if err := decode(env, path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveAddress persists a delivery address and returns its backend id.
func (c *Client) SaveAddress(ctx context.Context, accountID string, a *domain.Address, phone string) (string, error) {
	const path = "/internal/customer/address/save"
	env, err := c.post(ctx, path, map[string]string{
		"account_id": accountID,
		"label":      a.Label,
		"street":     a.Street,
		"city":       a.City,
		"state":      a.State,
		"country":    a.Country,
		"zip":        a.Zip,
		"phone":      phone,
	})
	if err != nil {
		return "", err
	}
	var d addressData
	if err := decode(env, path, &d); err != nil {
		return "", err
	}
	return d.AddressID, nil
}

// ListAddresses returns the saved addresses for an account.
func (c *Client) ListAddresses(ctx context.Context, accountID string) ([]domain.Address, error) {
	const path = "/internal/customer/address/list"
	env, err := c.post(ctx, path, map[string]string{"account_id": accountID})
	if err != nil {
		return nil, err
	}
	var rows []addressData
	if err := decode(env, path, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(rows))
	for i := range rows {
		out = append(out, *toAddress(&rows[i]))
	}
	return out, nil
}

// LatestOrder fetches the most recent order for an account. Used after a
// successful payment to surface an invoice number; absence is not an error
// condition for the caller.
func (c *Client) LatestOrder(ctx context.Context, accountID string) (*Order, error) {
	const path = "/internal/order/latest"
	env, err := c.post(ctx, path, map[string]string{"account_id": accountID})
	if err != nil {
		return nil, err
	}
	var d Order
	if err := decode(env, path, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// StoreProducts fetches the tenant's catalog snapshot for the price cache.
func (c *Client) StoreProducts(ctx context.Context, tenantID string) ([]Product, error) {
	const path = "/internal/store/products"
	env, err := c.post(ctx, path, map[string]string{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	var rows []Product
	if err := decode(env, path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
