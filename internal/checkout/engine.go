// Package checkout drives the conversation through the purchase flow:
// identify the sender, collect a delivery address, reconcile the cart, and
// hand off to the payment provider. Each inbound event is one independent
// turn; the position in the flow is the Step cached on the conversation
// state and refreshed only at explicit checkpoints.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/delivio/go-commerce-bot/internal/cart"
	"github.com/delivio/go-commerce-bot/internal/catalog"
	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
	"github.com/delivio/go-commerce-bot/internal/identity"
)

// Reply is one outbound message, transport-agnostic. The messaging layer
// renders it into the channel's interactive shapes.
type Reply struct {
	Text     string
	Buttons  []ReplyButton
	List     *ReplyList
	LinkURL  string
	LinkText string
}

// ReplyButton is a quick-reply button (at most three per message).
type ReplyButton struct {
	ID    string
	Title string
}

// ReplyList is an interactive picker (at most ten rows).
type ReplyList struct {
	Button string
	Rows   []ReplyRow
}

// ReplyRow is one selectable list row.
type ReplyRow struct {
	ID          string
	Title       string
	Description string
}

// Identity resolves a raw sender id to an account, registering a guest when
// every candidate form misses.
type Identity interface {
	ResolveOrCreate(ctx context.Context, rawSender string) (*domain.Account, bool, error)
}

// Carts is the reconciler contract.
type Carts interface {
	Reconcile(ctx context.Context, accountID, tenantID, couponID string, items []domain.CartLineItem) (*cart.Result, error)
	Refresh(ctx context.Context, accountID, tenantID, couponID string) (*commerce.CartListing, error)
	AddItem(ctx context.Context, accountID, productID string, quantity int, tenantID string) error
}

// Directory covers the commerce-backend operations the engine calls
// directly: addresses and coupons.
type Directory interface {
	SaveAddress(ctx context.Context, accountID string, a *domain.Address, phone string) (string, error)
	ListAddresses(ctx context.Context, accountID string) ([]domain.Address, error)
	CheckCoupon(ctx context.Context, code, accountID, cartID string, amount float64) (*commerce.Coupon, error)
	ListCoupons(ctx context.Context, accountID, tenantID string) ([]commerce.Coupon, error)
}

// Payments is the payment-session contract.
type Payments interface {
	CreateSession(ctx context.Context, req domain.PaymentSession) (*domain.PaymentSession, error)
	PollStatus(ctx context.Context, sessionID string) (domain.PaymentStatus, error)
	LatestOrder(ctx context.Context, accountID string) (*commerce.Order, error)
}

// Prices supplies the presentation-only line estimates used when the
// authoritative fetch is unavailable.
type Prices interface {
	Estimate(ctx context.Context, tenantID string, items []domain.CartLineItem) ([]catalog.LineEstimate, decimal.Decimal)
}

// Engine is the checkout state machine plus its trampoline driver.
type Engine struct {
	identity Identity
	carts    Carts
	backend  Directory
	payments Payments
	prices   Prices

	minPayableCents int64
	maxHops         int

	flights *flightGuard
	buttons map[string]handlerFn
}

type outcome struct {
	replies []Reply
	next    handlerFn
}

type handlerFn func(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error)

// NewEngine wires the checkout engine. minPayableCents guards the payment
// transition (50 means $0.50); maxHops bounds handler chaining per turn.
func NewEngine(id Identity, carts Carts, backend Directory, payments Payments, prices Prices, minPayableCents int64, maxHops int) *Engine {
	if maxHops < 1 {
		maxHops = 4
	}
	e := &Engine{
		identity:        id,
		carts:           carts,
		backend:         backend,
		payments:        payments,
		prices:          prices,
		minPayableCents: minPayableCents,
		maxHops:         maxHops,
		flights:         newFlightGuard(),
	}
	e.buttons = map[string]handlerFn{
		btnMainMenu:       e.onMenu,
		btnViewCart:       e.onViewCart,
		btnConfirmPay:     e.onConfirmPay,
		btnCheckPayment:   e.onCheckPayment,
		btnShareLocation:  e.onShareLocation,
		btnTypeAddress:    e.onTypeAddress,
		btnSavedAddresses: e.onSavedAddresses,
		btnChangeAddress:  e.onChangeAddress,
		btnViewOffers:     e.onViewOffers,
		btnRemoveCoupon:   e.onRemoveCoupon,
		btnLogout:         e.onLogout,
	}
	return e
}

// Interactive ids understood by the dispatch table. The prefixed forms
// carry a payload after the underscore.
const (
	btnMainMenu       = "main_menu"
	btnViewCart       = "view_cart"
	btnConfirmPay     = "confirm_and_pay"
	btnCheckPayment   = "check_payment"
	btnShareLocation  = "share_location"
	btnTypeAddress    = "type_address"
	btnSavedAddresses = "saved_addresses"
	btnChangeAddress  = "change_address"
	btnViewOffers     = "view_offers"
	btnRemoveCoupon   = "remove_coupon"
	btnLogout         = "logout"

	prefSelectAddress = "select_address_"
	prefApplyCoupon   = "apply_coupon_"
	prefProduct       = "product_"
)

var errHopBudget = errors.New("checkout: handler hop budget exhausted")

// retryReply is the uniform degradation for remote failures: the turn never
// crashes, the user is asked to try again.
func retryReply() Reply {
	return Reply{Text: "Sorry, something went wrong on our side. Please try that again."}
}

// Handle runs one conversation turn. It mutates st in place; the caller is
// responsible for persisting it afterwards. Remote failures degrade to a
// retry message rather than an error: the returned error is reserved for
// internal faults worth alerting on.
func (e *Engine) Handle(ctx context.Context, st *domain.ConversationState, ev Event) ([]Reply, error) {
	var replies []Reply

	h := e.dispatch
	for hops := 0; h != nil; hops++ {
		if hops >= e.maxHops {
			log.Error().Str("conversation_id", st.ID).Int("hops", hops).
				Msg("handler chain exceeded hop budget")
			return append(replies, retryReply()), errHopBudget
		}
		out, err := h(ctx, st, ev)
		replies = append(replies, out.replies...)
		if err != nil {
			log.Warn().Err(err).
				Str("conversation_id", st.ID).
				Str("step", string(st.Step)).
				Msg("turn degraded")
			return append(replies, retryReply()), nil
		}
		h = out.next
	}
	return replies, nil
}

// dispatch is the first hop: identify the sender if needed, then route by
// event kind.
func (e *Engine) dispatch(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	if st.AccountID == "" {
		return outcome{next: e.identify}, nil
	}
	return outcome{next: e.route}, nil
}

// identify runs the identity ladder and applies the default-address fast
// path: an account with a stored default address skips collection and lands
// on ADDRESS_CONFIRMED with the address shown for review.
func (e *Engine) identify(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	acc, isNew, err := e.identity.ResolveOrCreate(ctx, st.SenderID)
	if err != nil {
		return outcome{}, fmt.Errorf("identify: %w", err)
	}
	st.AccountID = acc.ID
	st.AccountName = acc.Name
	st.IsGuest = isNew

	var out outcome
	if acc.DefaultAddress != nil && acc.DefaultAddress.ID != "" {
		st.AddressID = acc.DefaultAddress.ID
		st.Step = domain.StepAddressConfirmed
		out.replies = append(out.replies, Reply{
			Text: "Delivering to your saved address:\n" + formatAddress(*acc.DefaultAddress),
			Buttons: []ReplyButton{
				{ID: btnConfirmPay, Title: "Confirm & pay"},
				{ID: btnChangeAddress, Title: "Change address"},
			},
		})
	} else {
		st.Step = domain.StepIdentifiedNoAddress
	}
	out.next = e.route
	return out, nil
}

// route sends the event to its transition handler.
func (e *Engine) route(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	switch v := ev.(type) {
	case NativeCartOrder:
		return e.onCartOrder(ctx, st, ev)
	case Location:
		return e.onLocation(ctx, st, ev)
	case Text:
		if st.Step == domain.StepAwaitingTypedAddr {
			return e.onTypedAddress(ctx, st, ev)
		}
		return e.onMenu(ctx, st, ev)
	case Button:
		return e.routeID(ctx, st, ev, v.ID)
	case ListItem:
		return e.routeID(ctx, st, ev, v.ID)
	}
	return e.onMenu(ctx, st, ev)
}

func (e *Engine) routeID(ctx context.Context, st *domain.ConversationState, ev Event, id string) (outcome, error) {
	if h, ok := e.buttons[id]; ok {
		return h(ctx, st, ev)
	}
	switch {
	case strings.HasPrefix(id, prefSelectAddress):
		return e.onSelectAddress(ctx, st, strings.TrimPrefix(id, prefSelectAddress))
	case strings.HasPrefix(id, prefApplyCoupon):
		return e.onApplyCoupon(ctx, st, strings.TrimPrefix(id, prefApplyCoupon))
	case strings.HasPrefix(id, prefProduct):
		return e.onProduct(ctx, st, strings.TrimPrefix(id, prefProduct))
	}
	log.Debug().Str("id", id).Msg("unmapped interactive id")
	return e.onMenu(ctx, st, ev)
}

// ----- formatting helpers -----

func formatAddress(a domain.Address) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.City, a.State, a.Zip, a.Country} {
		if p != "" && p != domain.UnknownState {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func formatMoney(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

func toCents(v float64) int64 {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func formatListing(l *commerce.CartListing) string {
	var b strings.Builder
	b.WriteString("Your cart:\n")
	for _, li := range l.LineItems {
		fmt.Fprintf(&b, "• %s × %d — %s\n", li.Name, li.Quantity, formatMoney(li.LineTotal))
	}
	t := l.Totals
	fmt.Fprintf(&b, "Subtotal: %s\n", formatMoney(t.Subtotal))
	if t.CouponDiscount > 0 {
		fmt.Fprintf(&b, "Coupon: −%s\n", formatMoney(t.CouponDiscount))
	}
	if t.Tax > 0 {
		fmt.Fprintf(&b, "Tax: %s\n", formatMoney(t.Tax))
	}
	if t.DeliveryFee > 0 {
		fmt.Fprintf(&b, "Delivery: %s\n", formatMoney(t.DeliveryFee))
	}
	if t.PlatformFee > 0 {
		fmt.Fprintf(&b, "Platform fee: %s\n", formatMoney(t.PlatformFee))
	}
	fmt.Fprintf(&b, "Total: %s", formatMoney(t.Total))
	return b.String()
}

func senderPhone(st *domain.ConversationState) string {
	return identity.Normalize(st.SenderID)
}
