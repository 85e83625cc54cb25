package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ----- Fake backend -----

type fakeBackend struct {
	clearErr   error
	clearCalls int

	addErrs  map[string]error // productID → error
	added    []addCall
	listings *commerce.CartListing
	listErr  error
	listArgs []string // couponID, tenantID of last call
}

type addCall struct {
	productID string
	quantity  int
	tenantID  string
}

func (f *fakeBackend) ClearCart(ctx context.Context, accountID string) error {
	f.clearCalls++
	return f.clearErr
}

func (f *fakeBackend) AddToCart(ctx context.Context, accountID, productID string, quantity int, tenantID string) error {
	if err, ok := f.addErrs[productID]; ok {
		return err
	}
	f.added = append(f.added, addCall{productID, quantity, tenantID})
	return nil
}

func (f *fakeBackend) ListCart(ctx context.Context, accountID, couponID, tenantID string) (*commerce.CartListing, error) {
	f.listArgs = []string{couponID, tenantID}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings, nil
}

func items(ids ...string) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.CartLineItem{ProductID: id, Quantity: 1, UnitPrice: 5})
	}
	return out
}

// ----- Tests -----

func TestReconcile_BackendTotalsWin(t *testing.T) {
	// Channel-quoted prices sum to 10.00, but the backend says 13.37 after
	// tax and delivery. The backend figure must be reported verbatim.
	f := &fakeBackend{listings: &commerce.CartListing{
		CartID: "c1",
		LineItems: []commerce.CartLine{
			{ProductID: "p1", Quantity: 1, UnitPrice: 5, LineTotal: 5},
			{ProductID: "p2", Quantity: 1, UnitPrice: 5, LineTotal: 5},
		},
		Totals: domain.CartTotals{Subtotal: 10, Tax: 1.37, DeliveryFee: 2, Total: 13.37},
	}}
	r := NewReconciler(f)

	res, err := r.Reconcile(context.Background(), "acc-1", "966", "", items("p1", "p2"))
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if res.SyncedItems != 2 || res.Degraded() {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Listing.Totals.Total != 13.37 {
		t.Fatalf("total = %v; want backend's 13.37", res.Listing.Totals.Total)
	}
	if f.clearCalls != 1 {
		t.Fatalf("expected one clear, got %d", f.clearCalls)
	}
}

func TestReconcile_PartialAddFailureContinues(t *testing.T) {
	f := &fakeBackend{
		addErrs:  map[string]error{"p2": errors.New("out of stock")},
		listings: &commerce.CartListing{CartID: "c1", Totals: domain.CartTotals{Total: 5}},
	}
	r := NewReconciler(f)

	res, err := r.Reconcile(context.Background(), "acc-1", "966", "", items("p1", "p2", "p3"))
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if res.SyncedItems != 2 {
		t.Fatalf("synced = %d; want 2", res.SyncedItems)
	}
	if !res.Degraded() || len(res.Failed) != 1 || res.Failed[0].ProductID != "p2" {
		t.Fatalf("failed items = %+v", res.Failed)
	}
	// p3 must still have been attempted after p2 failed.
	if len(f.added) != 2 || f.added[1].productID != "p3" {
		t.Fatalf("added = %+v", f.added)
	}
}

func TestReconcile_AllAddsFail(t *testing.T) {
	f := &fakeBackend{addErrs: map[string]error{
		"p1": errors.New("nope"),
		"p2": errors.New("nope"),
	}}
	r := NewReconciler(f)

	res, err := r.Reconcile(context.Background(), "acc-1", "966", "", items("p1", "p2"))
	if !errors.Is(err, ErrNothingSynced) {
		t.Fatalf("expected ErrNothingSynced, got %v", err)
	}
	if res == nil || res.SyncedItems != 0 || len(res.Failed) != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestReconcile_ClearFailureIsBestEffort(t *testing.T) {
	f := &fakeBackend{
		clearErr: errors.New("clear timed out"),
		listings: &commerce.CartListing{CartID: "c1", Totals: domain.CartTotals{Total: 5}},
	}
	r := NewReconciler(f)

	res, err := r.Reconcile(context.Background(), "acc-1", "", "", items("p1"))
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if res.SyncedItems != 1 {
		t.Fatalf("synced = %d; want 1", res.SyncedItems)
	}
}

func TestReconcile_ListFailureKeepsSyncCounts(t *testing.T) {
	f := &fakeBackend{listErr: errors.New("listing down")}
	r := NewReconciler(f)

	res, err := r.Reconcile(context.Background(), "acc-1", "966", "", items("p1"))
	if err == nil {
		t.Fatalf("expected fetch error")
	}
	if res.SyncedItems != 1 || res.Listing != nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestReconcile_QuantityClampedToOne(t *testing.T) {
	f := &fakeBackend{listings: &commerce.CartListing{Totals: domain.CartTotals{Total: 5}}}
	r := NewReconciler(f)

	_, err := r.Reconcile(context.Background(), "acc-1", "966", "",
		[]domain.CartLineItem{{ProductID: "p1", Quantity: 0}})
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if f.added[0].quantity != 1 {
		t.Fatalf("quantity = %d; want clamped to 1", f.added[0].quantity)
	}
}

func TestReconcile_EmptyItemsSkipsReplay(t *testing.T) {
	f := &fakeBackend{listings: &commerce.CartListing{Totals: domain.CartTotals{Total: 0}}}
	r := NewReconciler(f)

	res, err := r.Reconcile(context.Background(), "acc-1", "966", "cpn-1", nil)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if f.clearCalls != 0 || len(f.added) != 0 {
		t.Fatalf("empty reconcile must not touch the remote cart")
	}
	if res.Listing == nil {
		t.Fatalf("expected a listing")
	}
	if f.listArgs[0] != "cpn-1" {
		t.Fatalf("coupon id not forwarded: %v", f.listArgs)
	}
}
