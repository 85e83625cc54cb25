package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v79"

	"github.com/delivio/go-commerce-bot/internal/domain"
)

type fakeSessions struct {
	newParams *stripe.CheckoutSessionParams
	newResult *stripe.CheckoutSession
	newErr    error

	getID     string
	getResult *stripe.CheckoutSession
	getErr    error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.newParams = params
	if f.newErr != nil {
		return nil, f.newErr
	}
	return f.newResult, nil
}

func (f *fakeSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.getID = id
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getResult, nil
}

func newManager(f *fakeSessions) *Manager {
	return &Manager{
		sessions:   f,
		successURL: "https://bot.example/paid",
		cancelURL:  "https://bot.example/cancelled",
	}
}

func TestCreateSession(t *testing.T) {
	f := &fakeSessions{newResult: &stripe.CheckoutSession{
		ID:  "cs_test_1",
		URL: "https://checkout.stripe.com/pay/cs_test_1",
	}}
	m := newManager(f)

	sess, err := m.CreateSession(context.Background(), domain.PaymentSession{
		AmountCents:    1337,
		AccountID:      "acc-1",
		TenantID:       "966",
		AddressID:      "addr-1",
		CouponID:       "cpn-1",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if sess.ID != "cs_test_1" || sess.URL != "https://checkout.stripe.com/pay/cs_test_1" {
		t.Fatalf("session = %+v", sess)
	}
	if sess.Status != domain.PaymentCreated || sess.Currency != "usd" {
		t.Fatalf("session = %+v", sess)
	}

	p := f.newParams
	if *p.Mode != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("mode = %q", *p.Mode)
	}
	li := p.LineItems[0].PriceData
	if *li.UnitAmount != 1337 || *li.Currency != "usd" {
		t.Fatalf("line item = %+v", li)
	}
	for k, want := range map[string]string{
		"account_id":      "acc-1",
		"tenant_id":       "966",
		"address_id":      "addr-1",
		"coupon_id":       "cpn-1",
		"conversation_id": "conv-1",
	} {
		if got := p.Metadata[k]; got != want {
			t.Errorf("metadata[%s] = %q; want %q", k, got, want)
		}
	}
}

func TestCreateSession_BelowMinimum(t *testing.T) {
	f := &fakeSessions{}
	m := newManager(f)

	_, err := m.CreateSession(context.Background(), domain.PaymentSession{AmountCents: 25})
	if !errors.Is(err, ErrAmountTooSmall) {
		t.Fatalf("expected ErrAmountTooSmall, got %v", err)
	}
	if f.newParams != nil {
		t.Fatalf("no remote call may happen for a sub-minimum amount")
	}
}

func TestCreateSession_ProviderError(t *testing.T) {
	sentinel := errors.New("stripe down")
	m := newManager(&fakeSessions{newErr: sentinel})

	if _, err := m.CreateSession(context.Background(), domain.PaymentSession{AmountCents: 100}); !errors.Is(err, sentinel) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestPollStatus(t *testing.T) {
	cases := []struct {
		name    string
		session *stripe.CheckoutSession
		want    domain.PaymentStatus
	}{
		{
			name:    "paid",
			session: &stripe.CheckoutSession{PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid, Status: stripe.CheckoutSessionStatusComplete},
			want:    domain.PaymentPaid,
		},
		{
			name:    "expired",
			session: &stripe.CheckoutSession{PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid, Status: stripe.CheckoutSessionStatusExpired},
			want:    domain.PaymentExpired,
		},
		{
			name:    "open and unpaid",
			session: &stripe.CheckoutSession{PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid, Status: stripe.CheckoutSessionStatusOpen},
			want:    domain.PaymentUnpaid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeSessions{getResult: tc.session}
			m := newManager(f)

			got, err := m.PollStatus(context.Background(), "cs_test_1")
			if err != nil {
				t.Fatalf("PollStatus error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("status = %s; want %s", got, tc.want)
			}
			if f.getID != "cs_test_1" {
				t.Fatalf("polled id = %q", f.getID)
			}
		})
	}
}

func TestPollStatus_ProviderError(t *testing.T) {
	sentinel := errors.New("stripe down")
	m := newManager(&fakeSessions{getErr: sentinel})

	if _, err := m.PollStatus(context.Background(), "cs_x"); !errors.Is(err, sentinel) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
