// Package tenant resolves which merchant an inbound channel message belongs
// to. Resolution tiers, in order: cache, backend lookup by routing id,
// backend lookup by display number (preferring a result that carries a
// usable messaging credential), and finally a compiled-in fallback table.
//
// Every successful remote lookup populates the cache under both the
// routing-id key and, when known, the display-number key, so later turns
// resolve without a remote call. A total miss is not fatal: callers proceed
// in shared "marketplace" mode without tenant-specific behavior.
package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/delivio/go-commerce-bot/internal/cache"
	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ErrTenantNotFound is returned when every resolution tier misses.
var ErrTenantNotFound = errors.New("tenant: not found")

// Lookup is the backend contract required by the Resolver.
type Lookup interface {
	TenantByRoutingID(ctx context.Context, routingID string) (*domain.TenantConfig, error)
	TenantByDisplayNumber(ctx context.Context, display string) (*domain.TenantConfig, error)
}

// Resolver maps routing ids to tenant configurations.
type Resolver struct {
	backend  Lookup
	cache    *cache.Cache[*domain.TenantConfig]
	fallback []domain.TenantConfig
}

// NewResolver builds a Resolver over the given backend and cache, using the
// default compiled-in fallback table.
func NewResolver(backend Lookup, c *cache.Cache[*domain.TenantConfig]) *Resolver {
	return &Resolver{backend: backend, cache: c, fallback: fallbackTenants}
}

// WithFallback replaces the static fallback table. Intended for tests.
func (r *Resolver) WithFallback(tenants []domain.TenantConfig) *Resolver {
	r.fallback = tenants
	return r
}

func routingKey(id string) string  { return "rid:" + id }
func displayKey(num string) string { return "num:" + num }

// CleanNumber strips the channel prefix and guarantees a leading "+".
func CleanNumber(num string) string {
	n := strings.TrimSpace(strings.TrimPrefix(num, "whatsapp:"))
	if n == "" {
		return ""
	}
	if !strings.HasPrefix(n, "+") {
		n = "+" + n
	}
	return n
}

// Resolve returns the tenant for a routing id and optional display number.
// On a total miss it returns ErrTenantNotFound; the caller then proceeds
// ungated.
func (r *Resolver) Resolve(ctx context.Context, routingID, displayNumber string) (*domain.TenantConfig, error) {
	displayNumber = CleanNumber(displayNumber)

	// Tier 1: cache by routing id. A fresh negative entry suppresses the
	// remote call and drops straight to the fallback table.
	if routingID != "" {
		if v, found, negative := r.cache.Get(routingKey(routingID)); found {
			if !negative {
				return v, nil
			}
			return r.fromFallback(routingID, displayNumber)
		}
	}
	if displayNumber != "" && routingID == "" {
		if v, found, negative := r.cache.Get(displayKey(displayNumber)); found && !negative {
			return v, nil
		}
	}

	// Tier 2: backend by routing id.
	var (
		cfg          *domain.TenantConfig
		transientErr error
	)
	if routingID != "" {
		got, err := r.backend.TenantByRoutingID(ctx, routingID)
		switch {
		case err == nil && got.Connected:
			cfg = got
		case err == nil:
			log.Warn().Str("routing_id", routingID).Msg("tenant found but not connected")
		case errors.Is(err, commerce.ErrNotFound):
			// remote answered: a real miss
		default:
			transientErr = err
		}
	}

	// Tier 3: backend by display number when the routing-id tier failed or
	// produced a config without a usable credential. A credentialed result
	// wins; a credential-less one only fills a total miss.
	if displayNumber != "" && (cfg == nil || !cfg.HasCredential()) {
		got, err := r.backend.TenantByDisplayNumber(ctx, displayNumber)
		switch {
		case err == nil && got.Connected:
			if got.HasCredential() || cfg == nil {
				cfg = got
			}
		case err == nil:
		case errors.Is(err, commerce.ErrNotFound):
		default:
			transientErr = err
		}
	}

	if cfg != nil {
		r.store(routingID, displayNumber, cfg)
		return cfg, nil
	}

	// Transient remote failure: serve a stale entry if one exists rather
	// than dropping to the fallback table.
	if transientErr != nil {
		if routingID != "" {
			if v, ok := r.cache.GetStale(routingKey(routingID)); ok {
				log.Warn().Err(transientErr).Str("routing_id", routingID).
					Msg("tenant lookup failed, serving stale cache")
				return v, nil
			}
		}
		if displayNumber != "" {
			if v, ok := r.cache.GetStale(displayKey(displayNumber)); ok {
				log.Warn().Err(transientErr).Str("display_number", displayNumber).
					Msg("tenant lookup failed, serving stale cache")
				return v, nil
			}
		}
	} else if routingID != "" {
		// Confirmed miss: remember it briefly so repeated turns from an
		// unmapped number do not hammer the backend.
		r.cache.PutNegative(routingKey(routingID))
	}

	return r.fromFallback(routingID, displayNumber)
}

// store caches cfg under both keys. The display-number key uses the number
// reported by the backend when present, else the webhook-provided one.
func (r *Resolver) store(routingID, displayNumber string, cfg *domain.TenantConfig) {
	if cfg.RoutingID == "" {
		cfg.RoutingID = routingID
	}
	if key := cfg.RoutingID; key != "" {
		r.cache.Put(routingKey(key), cfg)
	}
	num := CleanNumber(cfg.DisplayNumber)
	if num == "" {
		num = displayNumber
	}
	if num != "" {
		r.cache.Put(displayKey(num), cfg)
	}
}

// fromFallback checks the compiled-in table by routing id, then by display
// number.
func (r *Resolver) fromFallback(routingID, displayNumber string) (*domain.TenantConfig, error) {
	for i := range r.fallback {
		t := r.fallback[i]
		if routingID != "" && t.RoutingID == routingID {
			return &t, nil
		}
		if displayNumber != "" && CleanNumber(t.DisplayNumber) == displayNumber {
			return &t, nil
		}
	}
	return nil, ErrTenantNotFound
}

// ClearCache drops the cached entries for a routing id, or everything when
// the id is empty.
func (r *Resolver) ClearCache(routingID string) {
	if routingID == "" {
		r.cache.Clear()
		return
	}
	r.cache.Delete(routingKey(routingID))
}
