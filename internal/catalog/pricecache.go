// Package catalog maintains per-tenant snapshots of the product catalog and
// computes display pricing for chat-native cart lines before the backend's
// authoritative totals arrive. All money math runs on decimals so that
// 20.00 at 50% off is exactly 10.00.
package catalog

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/delivio/go-commerce-bot/internal/cache"
	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// PriceEntry is one cached catalog item.
type PriceEntry struct {
	ProductID       string
	Name            string
	OriginalPrice   decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountedPrice decimal.Decimal
}

// Discounted reports whether the entry carries a product-level discount.
func (e PriceEntry) Discounted() bool { return e.DiscountPercent.IsPositive() }

// Source is the backend contract required by the PriceCache.
type Source interface {
	StoreProducts(ctx context.Context, tenantID string) ([]commerce.Product, error)
}

// PriceCache holds per-tenant catalog snapshots, fetched on demand.
type PriceCache struct {
	backend Source
	cache   *cache.Cache[map[string]PriceEntry]
}

// NewPriceCache builds a PriceCache over the given backend and TTL cache.
func NewPriceCache(backend Source, c *cache.Cache[map[string]PriceEntry]) *PriceCache {
	return &PriceCache{backend: backend, cache: c}
}

// computeDiscounted derives the discounted price when the backend did not
// provide one: original × (1 − discount/100), rounded to cents.
func computeDiscounted(original, discountPercent decimal.Decimal) decimal.Decimal {
	if !discountPercent.IsPositive() {
		return original
	}
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(hundred))
	return original.Mul(factor).Round(2)
}

// Snapshot returns the catalog snapshot for a tenant, fetching it remotely
// on a cache miss. On a transient backend failure an expired snapshot is
// served when available.
func (p *PriceCache) Snapshot(ctx context.Context, tenantID string) (map[string]PriceEntry, error) {
	if snap, found, negative := p.cache.Get(tenantID); found && !negative {
		return snap, nil
	}

	rows, err := p.backend.StoreProducts(ctx, tenantID)
	if err != nil {
		if snap, ok := p.cache.GetStale(tenantID); ok {
			log.Warn().Err(err).Str("tenant_id", tenantID).
				Msg("catalog fetch failed, serving stale snapshot")
			return snap, nil
		}
		return nil, err
	}

	snap := make(map[string]PriceEntry, len(rows))
	for _, row := range rows {
		entry := PriceEntry{
			ProductID:       row.ProductID,
			Name:            row.Name,
			OriginalPrice:   decimal.NewFromFloat(row.Price),
			DiscountPercent: decimal.NewFromFloat(row.DiscountPercent),
		}
		if row.DiscountedPrice > 0 {
			entry.DiscountedPrice = decimal.NewFromFloat(row.DiscountedPrice)
		} else {
			entry.DiscountedPrice = computeDiscounted(entry.OriginalPrice, entry.DiscountPercent)
		}
		snap[row.ProductID] = entry
	}
	p.cache.Put(tenantID, snap)
	return snap, nil
}

// Lookup returns the cached entry for a product id.
func (p *PriceCache) Lookup(ctx context.Context, tenantID, productID string) (PriceEntry, bool) {
	snap, err := p.Snapshot(ctx, tenantID)
	if err != nil {
		return PriceEntry{}, false
	}
	e, ok := snap[productID]
	return e, ok
}

// LineEstimate is the display pricing for one chat-native cart line.
type LineEstimate struct {
	ProductID     string
	Name          string
	Quantity      int
	UnitPrice     decimal.Decimal // effective (discounted) unit price
	OriginalPrice decimal.Decimal // pre-discount, equal to UnitPrice when undiscounted
	LineTotal     decimal.Decimal
	Discounted    bool
	FromCatalog   bool // false when only the channel-quoted price was available
}

// Estimate prices the given chat-native lines from the catalog snapshot,
// falling back to each line's channel-quoted unit price when the product is
// not in the snapshot. The result is presentation-only scaffolding: the
// backend's reconciled totals always supersede it.
func (p *PriceCache) Estimate(ctx context.Context, tenantID string, items []domain.CartLineItem) ([]LineEstimate, decimal.Decimal) {
	lines := make([]LineEstimate, 0, len(items))
	total := decimal.Zero

	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		if entry, ok := p.Lookup(ctx, tenantID, it.ProductID); ok {
			lt := entry.DiscountedPrice.Mul(qty).Round(2)
			lines = append(lines, LineEstimate{
				ProductID:     it.ProductID,
				Name:          entry.Name,
				Quantity:      it.Quantity,
				UnitPrice:     entry.DiscountedPrice,
				OriginalPrice: entry.OriginalPrice,
				LineTotal:     lt,
				Discounted:    entry.Discounted(),
				FromCatalog:   true,
			})
			total = total.Add(lt)
			continue
		}

		unit := decimal.NewFromFloat(it.UnitPrice)
		lt := unit.Mul(qty).Round(2)
		lines = append(lines, LineEstimate{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			UnitPrice:     unit,
			OriginalPrice: unit,
			LineTotal:     lt,
		})
		total = total.Add(lt)
	}
	return lines, total
}

// Invalidate drops a tenant's snapshot, forcing a refetch on next use.
func (p *PriceCache) Invalidate(tenantID string) {
	p.cache.Delete(tenantID)
}
