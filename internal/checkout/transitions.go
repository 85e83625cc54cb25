package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/delivio/go-commerce-bot/internal/cart"
	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

const addressFormatHint = "Please type your full address, for example:\n" +
	"11A, 2nd Cross Rd, Bengaluru, 560037, KA, IN"

// onCartOrder reconciles a chat-native cart into the backend and reports
// the authoritative totals. A partial sync degrades to the local estimate
// with a note; only a total sync failure asks the user to retry.
func (e *Engine) onCartOrder(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	order := ev.(NativeCartOrder)

	res, err := e.carts.Reconcile(ctx, st.AccountID, st.TenantID, st.CouponID, order.Items)
	if err != nil {
		if errors.Is(err, cart.ErrNothingSynced) {
			return outcome{replies: []Reply{{
				Text: "None of those items could be added right now. Please try your order again.",
			}}}, nil
		}
		if res != nil && res.SyncedItems > 0 {
			// Authoritative fetch failed after a (possibly partial) replay.
			_, total := e.prices.Estimate(ctx, st.TenantID, order.Items)
			st.CartItemCount = res.SyncedItems
			st.CartTotal, _ = total.Float64()
			out := outcome{replies: []Reply{{
				Text: fmt.Sprintf("Added %d item(s). Estimated total %s (final total confirmed at checkout).",
					res.SyncedItems, "$"+total.StringFixed(2)),
				Buttons: e.postCartButtons(st),
			}}}
			if nudge := e.addressNudge(st); nudge.Text != "" {
				out.replies = append(out.replies, nudge)
			}
			return out, nil
		}
		return outcome{}, err
	}

	st.CartItemCount = len(res.Listing.LineItems)
	st.CartTotal = res.Listing.Totals.Total

	reply := Reply{Text: formatListing(res.Listing), Buttons: e.postCartButtons(st)}
	if res.Degraded() {
		reply.Text = fmt.Sprintf("%d item(s) couldn't be added.\n%s", len(res.Failed), reply.Text)
	}

	out := outcome{replies: []Reply{reply}}
	if nudge := e.addressNudge(st); nudge.Text != "" {
		out.replies = append(out.replies, nudge)
	}
	return out, nil
}

// postCartButtons picks the actions that make sense after a cart update.
func (e *Engine) postCartButtons(st *domain.ConversationState) []ReplyButton {
	if st.Step == domain.StepAddressConfirmed {
		return []ReplyButton{
			{ID: btnConfirmPay, Title: "Confirm & pay"},
			{ID: btnChangeAddress, Title: "Change address"},
		}
	}
	return []ReplyButton{
		{ID: btnViewCart, Title: "View cart"},
		{ID: btnViewOffers, Title: "Offers"},
	}
}

// addressNudge prompts for a delivery address when none is on file yet.
func (e *Engine) addressNudge(st *domain.ConversationState) Reply {
	if st.Step != domain.StepIdentifiedNoAddress {
		return Reply{}
	}
	st.Step = domain.StepAwaitingLocation
	return Reply{
		Text: "Where should we deliver?",
		Buttons: []ReplyButton{
			{ID: btnShareLocation, Title: "Share location"},
			{ID: btnTypeAddress, Title: "Type address"},
			{ID: btnSavedAddresses, Title: "Saved addresses"},
		},
	}
}

func (e *Engine) onShareLocation(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	st.Step = domain.StepAwaitingLocation
	return outcome{replies: []Reply{{
		Text: "Share your location pin, or type the address instead.",
	}}}, nil
}

func (e *Engine) onTypeAddress(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	st.Step = domain.StepAwaitingTypedAddr
	return outcome{replies: []Reply{{Text: addressFormatHint}}}, nil
}

// onLocation handles a shared location pin. The pin's attached free text is
// the address source; a pin with no usable text falls back to typing.
func (e *Engine) onLocation(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	loc := ev.(Location)
	switch st.Step {
	case domain.StepAwaitingLocation, domain.StepAwaitingTypedAddr, domain.StepIdentifiedNoAddress:
	default:
		return e.onMenu(ctx, st, ev)
	}

	addr, err := ParseAddress(loc.AddressText)
	if err != nil {
		st.Step = domain.StepAwaitingTypedAddr
		return outcome{replies: []Reply{{
			Text: "We couldn't read an address from that pin.\n" + addressFormatHint,
		}}}, nil
	}
	return e.saveAddress(ctx, st, addr)
}

// onTypedAddress parses a typed address. Too-short input is rejected
// locally with the format hint and no remote call.
func (e *Engine) onTypedAddress(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	txt := ev.(Text)
	addr, err := ParseAddress(txt.Body)
	if err != nil {
		return outcome{replies: []Reply{{
			Text: "That doesn't look like a complete address.\n" + addressFormatHint,
		}}}, nil
	}
	return e.saveAddress(ctx, st, addr)
}

func (e *Engine) saveAddress(ctx context.Context, st *domain.ConversationState, addr domain.Address) (outcome, error) {
	addr.Label = "WhatsApp"
	id, err := e.backend.SaveAddress(ctx, st.AccountID, &addr, senderPhone(st))
	if err != nil {
		return outcome{}, fmt.Errorf("save address: %w", err)
	}
	st.AddressID = id
	st.Step = domain.StepAddressConfirmed
	return outcome{replies: []Reply{{
		Text: "Delivering to:\n" + formatAddress(addr),
		Buttons: []ReplyButton{
			{ID: btnConfirmPay, Title: "Confirm & pay"},
			{ID: btnChangeAddress, Title: "Change address"},
		},
	}}}, nil
}

func (e *Engine) onSavedAddresses(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	addrs, err := e.backend.ListAddresses(ctx, st.AccountID)
	if err != nil {
		return outcome{}, fmt.Errorf("list addresses: %w", err)
	}
	if len(addrs) == 0 {
		st.Step = domain.StepAwaitingLocation
		return outcome{replies: []Reply{{
			Text: "No saved addresses yet.",
			Buttons: []ReplyButton{
				{ID: btnShareLocation, Title: "Share location"},
				{ID: btnTypeAddress, Title: "Type address"},
			},
		}}}, nil
	}

	if len(addrs) > 10 {
		addrs = addrs[:10]
	}
	rows := make([]ReplyRow, 0, len(addrs))
	for _, a := range addrs {
		rows = append(rows, ReplyRow{
			ID:          prefSelectAddress + a.ID,
			Title:       a.Label,
			Description: formatAddress(a),
		})
	}
	return outcome{replies: []Reply{{
		Text: "Pick a delivery address:",
		List: &ReplyList{Button: "Addresses", Rows: rows},
	}}}, nil
}

func (e *Engine) onSelectAddress(ctx context.Context, st *domain.ConversationState, addressID string) (outcome, error) {
	st.AddressID = addressID
	st.Step = domain.StepAddressConfirmed
	return outcome{replies: []Reply{{
		Text: "Address selected.",
		Buttons: []ReplyButton{
			{ID: btnConfirmPay, Title: "Confirm & pay"},
			{ID: btnChangeAddress, Title: "Change address"},
		},
	}}}, nil
}

func (e *Engine) onChangeAddress(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	st.AddressID = ""
	st.Step = domain.StepAwaitingLocation
	return outcome{replies: []Reply{{
		Text: "Where should we deliver?",
		Buttons: []ReplyButton{
			{ID: btnShareLocation, Title: "Share location"},
			{ID: btnTypeAddress, Title: "Type address"},
			{ID: btnSavedAddresses, Title: "Saved addresses"},
		},
	}}}, nil
}

// onConfirmPay is the only transition out of ADDRESS_CONFIRMED. The cart is
// re-fetched as a checkpoint so the session amount is the backend's total,
// and a per-conversation flight guard stops a double-tap from creating two
// provider sessions.
func (e *Engine) onConfirmPay(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	switch st.Step {
	case domain.StepAddressConfirmed:
	case domain.StepPaymentCreated:
		return outcome{replies: []Reply{{
			Text:    "A payment is already in progress.",
			Buttons: []ReplyButton{{ID: btnCheckPayment, Title: "Check payment"}},
		}}}, nil
	default:
		return outcome{replies: []Reply{{
			Text: "Let's finish setting up delivery first.",
		}}, next: e.onChangeAddress}, nil
	}

	if !e.flights.begin(st.ID) {
		return outcome{replies: []Reply{{
			Text: "Hold on, we're already setting up your payment.",
		}}}, nil
	}
	defer e.flights.end(st.ID)

	listing, err := e.carts.Refresh(ctx, st.AccountID, st.TenantID, st.CouponID)
	if err != nil {
		return outcome{}, fmt.Errorf("checkout refresh: %w", err)
	}
	st.CartItemCount = len(listing.LineItems)
	st.CartTotal = listing.Totals.Total

	cents := toCents(listing.Totals.Total)
	if cents < e.minPayableCents {
		return outcome{replies: []Reply{{
			Text: fmt.Sprintf("Your cart total %s is below the minimum payable amount.",
				formatMoney(listing.Totals.Total)),
			Buttons: []ReplyButton{{ID: btnViewCart, Title: "View cart"}},
		}}}, nil
	}

	sess, err := e.payments.CreateSession(ctx, domain.PaymentSession{
		AmountCents:    cents,
		Currency:       "usd",
		AccountID:      st.AccountID,
		TenantID:       st.TenantID,
		AddressID:      st.AddressID,
		CouponID:       st.CouponID,
		ConversationID: st.ID,
	})
	if err != nil {
		return outcome{}, fmt.Errorf("create payment session: %w", err)
	}

	st.PaymentSessionID = sess.ID
	st.Step = domain.StepPaymentCreated
	return outcome{replies: []Reply{{
		Text:     fmt.Sprintf("Your total is %s. Complete your payment here:", formatMoney(listing.Totals.Total)),
		LinkURL:  sess.URL,
		LinkText: "Pay now",
		Buttons:  []ReplyButton{{ID: btnCheckPayment, Title: "I've paid"}},
	}}}, nil
}

// onCheckPayment polls the active session. Paid is terminal: the session id
// and any applied coupon are cleared, and the latest order is looked up
// best-effort for the invoice number. An expired session drops back to
// ADDRESS_CONFIRMED so checkout can be retried from the confirm step.
func (e *Engine) onCheckPayment(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	if st.PaymentSessionID == "" {
		return outcome{replies: []Reply{{Text: "There's no payment in progress."}}}, nil
	}

	status, err := e.payments.PollStatus(ctx, st.PaymentSessionID)
	if err != nil {
		return outcome{}, fmt.Errorf("poll payment: %w", err)
	}

	switch status {
	case domain.PaymentPaid:
		st.Step = domain.StepPaid
		st.PaymentSessionID = ""
		st.CouponID, st.CouponCode = "", ""

		msg := "Payment received, your order is confirmed!"
		if order, err := e.payments.LatestOrder(ctx, st.AccountID); err == nil && order != nil && order.InvoiceNo != "" {
			msg = fmt.Sprintf("Payment received! Your order %s is confirmed.", order.InvoiceNo)
		} else if err != nil {
			log.Debug().Err(err).Str("account_id", st.AccountID).Msg("latest-order lookup failed")
		}
		return outcome{replies: []Reply{{Text: msg}}}, nil

	case domain.PaymentExpired:
		st.PaymentSessionID = ""
		st.Step = domain.StepAddressConfirmed
		return outcome{replies: []Reply{{
			Text:    "That payment link expired. Confirm again to get a new one.",
			Buttons: []ReplyButton{{ID: btnConfirmPay, Title: "Confirm & pay"}},
		}}}, nil

	default:
		return outcome{replies: []Reply{{
			Text:    "We haven't received your payment yet.",
			Buttons: []ReplyButton{{ID: btnCheckPayment, Title: "Check again"}},
		}}}, nil
	}
}

// onApplyCoupon validates a code against the current cart and, when valid,
// re-fetches totals with the coupon applied.
func (e *Engine) onApplyCoupon(ctx context.Context, st *domain.ConversationState, code string) (outcome, error) {
	listing, err := e.carts.Refresh(ctx, st.AccountID, st.TenantID, "")
	if err != nil {
		return outcome{}, fmt.Errorf("coupon refresh: %w", err)
	}

	coupon, err := e.backend.CheckCoupon(ctx, code, st.AccountID, listing.CartID, listing.Totals.Total)
	if err != nil {
		if errors.Is(err, commerce.ErrNotFound) {
			return outcome{replies: []Reply{{
				Text: fmt.Sprintf("Coupon %q isn't valid for this cart.", code),
			}}}, nil
		}
		return outcome{}, fmt.Errorf("check coupon: %w", err)
	}

	st.CouponID = coupon.CouponID
	st.CouponCode = coupon.Code
	return outcome{next: e.onViewCart, replies: []Reply{{
		Text: fmt.Sprintf("Coupon %s applied.", coupon.Code),
	}}}, nil
}

// onViewOffers lists the coupons available to this account as a picker;
// picking a row routes through the apply-coupon prefix.
func (e *Engine) onViewOffers(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	coupons, err := e.backend.ListCoupons(ctx, st.AccountID, st.TenantID)
	if err != nil && !errors.Is(err, commerce.ErrNotFound) {
		return outcome{}, fmt.Errorf("list coupons: %w", err)
	}
	if len(coupons) == 0 {
		return outcome{replies: []Reply{{Text: "No offers available right now."}}}, nil
	}

	if len(coupons) > 10 {
		coupons = coupons[:10]
	}
	rows := make([]ReplyRow, 0, len(coupons))
	for _, cp := range coupons {
		rows = append(rows, ReplyRow{
			ID:          prefApplyCoupon + cp.Code,
			Title:       cp.Code,
			Description: couponBlurb(cp),
		})
	}
	return outcome{replies: []Reply{{
		Text: "Available offers:",
		List: &ReplyList{Button: "Offers", Rows: rows},
	}}}, nil
}

// couponBlurb renders a coupon's discount for a list row.
func couponBlurb(cp commerce.Coupon) string {
	if cp.Type == "percent" {
		return strconv.FormatFloat(cp.Discount, 'f', -1, 64) + "% off"
	}
	return formatMoney(cp.Discount) + " off"
}

func (e *Engine) onRemoveCoupon(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	if st.CouponID == "" {
		return outcome{replies: []Reply{{Text: "No coupon is applied."}}}, nil
	}
	st.CouponID, st.CouponCode = "", ""
	return outcome{next: e.onViewCart, replies: []Reply{{Text: "Coupon removed."}}}, nil
}

// onProduct adds one unit of a picked product to the remote cart.
func (e *Engine) onProduct(ctx context.Context, st *domain.ConversationState, productID string) (outcome, error) {
	if err := e.carts.AddItem(ctx, st.AccountID, productID, 1, st.TenantID); err != nil {
		return outcome{}, fmt.Errorf("add product: %w", err)
	}
	return outcome{next: e.onViewCart}, nil
}

func (e *Engine) onViewCart(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	listing, err := e.carts.Refresh(ctx, st.AccountID, st.TenantID, st.CouponID)
	if err != nil {
		return outcome{}, fmt.Errorf("view cart: %w", err)
	}
	st.CartItemCount = len(listing.LineItems)
	st.CartTotal = listing.Totals.Total

	if len(listing.LineItems) == 0 {
		return outcome{replies: []Reply{{Text: "Your cart is empty. Browse the catalog to add something!"}}}, nil
	}
	return outcome{replies: []Reply{{
		Text:    formatListing(listing),
		Buttons: e.postCartButtons(st),
	}}}, nil
}

func (e *Engine) onMenu(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	name := st.TenantName
	if name == "" {
		name = "our store"
	}
	return outcome{replies: []Reply{{
		Text: fmt.Sprintf("Welcome to %s! Order from the catalog, and I'll handle delivery and payment.", name),
		Buttons: []ReplyButton{
			{ID: btnViewCart, Title: "View cart"},
			{ID: btnSavedAddresses, Title: "My addresses"},
			{ID: btnLogout, Title: "Start over"},
		},
	}}}, nil
}

// onLogout wipes the conversation state bag entirely.
func (e *Engine) onLogout(ctx context.Context, st *domain.ConversationState, ev Event) (outcome, error) {
	st.Reset()
	return outcome{replies: []Reply{{Text: "You've been signed out. Say hi anytime to start again!"}}}, nil
}
