// Package cart replays chat-native cart submissions into the backend's
// authoritative cart and re-fetches backend-computed totals.
//
// The replay is clear-then-re-add: a failed clear is logged and the replay
// continues, since an empty remote cart plus a populate-by-add sequence is
// still correct. Single add failures are recorded per item without aborting
// the remaining adds; reconciliation counts as successful when at least one
// item synced. Whatever was estimated locally for display is superseded by
// the backend totals the moment the final fetch succeeds.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ErrNothingSynced is returned when every add call failed.
var ErrNothingSynced = errors.New("cart: no items could be synced")

// Backend is the commerce contract required by the Reconciler.
type Backend interface {
	ClearCart(ctx context.Context, accountID string) error
	AddToCart(ctx context.Context, accountID, productID string, quantity int, tenantID string) error
	ListCart(ctx context.Context, accountID, couponID, tenantID string) (*commerce.CartListing, error)
}

// ItemError records a single failed add.
type ItemError struct {
	ProductID string
	Err       error
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	SyncedItems int
	Failed      []ItemError
	Listing     *commerce.CartListing // nil when the authoritative fetch failed
}

// Degraded reports whether some lines failed to sync.
func (r *Result) Degraded() bool { return len(r.Failed) > 0 }

// Reconciler syncs chat-native carts into the backend.
type Reconciler struct {
	Backend Backend
}

// NewReconciler builds a Reconciler over the given backend.
func NewReconciler(b Backend) *Reconciler {
	return &Reconciler{Backend: b}
}

// Reconcile clears the remote cart, re-adds the given lines, and fetches the
// authoritative listing. tenantID may be empty in shared/marketplace mode;
// couponID scopes the totals when a coupon is applied.
//
// The returned Result is always non-nil. The error is non-nil when every add
// failed (ErrNothingSynced) or when the final authoritative fetch failed; in
// the latter case Result still carries the sync counts so the caller can
// report degraded totals from its local estimate.
func (r *Reconciler) Reconcile(ctx context.Context, accountID, tenantID, couponID string, items []domain.CartLineItem) (*Result, error) {
	tr := otel.Tracer("cart/Reconciler")
	ctx, span := tr.Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("tenant.id", tenantID),
			attribute.Int("items", len(items)),
		),
	)
	defer span.End()

	res := &Result{}

	if len(items) > 0 {
		// Destructive clear is best-effort.
		if err := r.Backend.ClearCart(ctx, accountID); err != nil {
			log.Warn().Err(err).Str("account_id", accountID).
				Msg("cart clear failed, continuing with replay")
		}

		for _, it := range items {
			qty := it.Quantity
			if qty < 1 {
				qty = 1
			}
			if err := r.Backend.AddToCart(ctx, accountID, it.ProductID, qty, tenantID); err != nil {
				log.Warn().Err(err).Str("account_id", accountID).Str("product_id", it.ProductID).
					Msg("cart add failed")
				res.Failed = append(res.Failed, ItemError{ProductID: it.ProductID, Err: err})
				continue
			}
			res.SyncedItems++
		}

		if res.SyncedItems == 0 {
			return res, ErrNothingSynced
		}
	}

	listing, err := r.Backend.ListCart(ctx, accountID, couponID, tenantID)
	if err != nil {
		return res, fmt.Errorf("cart: authoritative fetch: %w", err)
	}
	res.Listing = listing
	return res, nil
}

// AddItem appends a single product to the remote cart without clearing it.
// Used for list-driven "add this product" selections.
func (r *Reconciler) AddItem(ctx context.Context, accountID, productID string, quantity int, tenantID string) error {
	if quantity < 1 {
		quantity = 1
	}
	return r.Backend.AddToCart(ctx, accountID, productID, quantity, tenantID)
}

// Refresh fetches the authoritative listing without replaying anything.
// Used at checkpoints (coupon apply/remove, view cart, pre-payment).
func (r *Reconciler) Refresh(ctx context.Context, accountID, tenantID, couponID string) (*commerce.CartListing, error) {
	return r.Backend.ListCart(ctx, accountID, couponID, tenantID)
}
