// Package payment manages hosted payment sessions with Stripe Checkout.
// Sessions are not idempotent at this layer: every CreateSession call makes
// a new provider-side session, and the checkout state machine is what keeps
// a single checkout attempt from creating two.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ErrAmountTooSmall rejects amounts under the provider's 50¢ floor before
// the remote call is made.
var ErrAmountTooSmall = errors.New("payment: amount below provider minimum")

const minAmountCents = 50

// sessionAPI is the slice of the Stripe client the manager uses;
// *session.Client satisfies it.
type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Orders recovers the order created by a successful payment, for display.
type Orders interface {
	LatestOrder(ctx context.Context, accountID string) (*commerce.Order, error)
}

// Manager creates and polls Stripe Checkout sessions.
type Manager struct {
	sessions   sessionAPI
	orders     Orders
	successURL string
	cancelURL  string
}

// NewManager builds a Manager with its own Stripe client.
func NewManager(secretKey, successURL, cancelURL string, orders Orders) *Manager {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Manager{
		sessions:   api.CheckoutSessions,
		orders:     orders,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateSession opens a hosted Checkout session for the given amount and
// carries the conversation's identifiers as session metadata so the context
// can be recovered from the provider side.
func (m *Manager) CreateSession(ctx context.Context, req domain.PaymentSession) (*domain.PaymentSession, error) {
	if req.AmountCents < minAmountCents {
		return nil, ErrAmountTooSmall
	}
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(m.successURL),
		CancelURL:  stripe.String(m.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order total"),
				},
			},
		}},
	}
	params.AddMetadata("account_id", req.AccountID)
	params.AddMetadata("tenant_id", req.TenantID)
	params.AddMetadata("address_id", req.AddressID)
	params.AddMetadata("conversation_id", req.ConversationID)
	if req.CouponID != "" {
		params.AddMetadata("coupon_id", req.CouponID)
	}

	s, err := m.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("payment: create session: %w", err)
	}

	log.Info().
		Str("session_id", s.ID).
		Str("account_id", req.AccountID).
		Int64("amount_cents", req.AmountCents).
		Msg("payment session created")

	out := req
	out.ID = s.ID
	out.URL = s.URL
	out.Currency = currency
	out.Status = domain.PaymentCreated
	return &out, nil
}

// PollStatus maps the provider session onto the payment lifecycle: paid
// once the session's payment status says so, expired once the session
// itself has expired, unpaid otherwise.
func (m *Manager) PollStatus(ctx context.Context, sessionID string) (domain.PaymentStatus, error) {
	s, err := m.sessions.Get(sessionID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return "", fmt.Errorf("payment: poll session: %w", err)
	}
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return domain.PaymentPaid, nil
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return domain.PaymentExpired, nil
	default:
		return domain.PaymentUnpaid, nil
	}
}

// LatestOrder looks up the most recent order for an account. Best-effort:
// callers treat an absent order as a degraded confirmation, not a failure.
func (m *Manager) LatestOrder(ctx context.Context, accountID string) (*commerce.Order, error) {
	if m.orders == nil {
		return nil, nil
	}
	return m.orders.LatestOrder(ctx, accountID)
}
