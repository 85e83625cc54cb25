package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/delivio/go-commerce-bot/internal/cache"
	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ----- Fake backend -----

type fakeLookup struct {
	byRouting     map[string]*domain.TenantConfig
	byDisplay     map[string]*domain.TenantConfig
	routingErr    error
	displayErr    error
	routingCalls  int
	displayCalls  int
}

func (f *fakeLookup) TenantByRoutingID(ctx context.Context, id string) (*domain.TenantConfig, error) {
	f.routingCalls++
	if f.routingErr != nil {
		return nil, f.routingErr
	}
	if t, ok := f.byRouting[id]; ok {
		return t, nil
	}
	return nil, commerce.ErrNotFound
}

func (f *fakeLookup) TenantByDisplayNumber(ctx context.Context, num string) (*domain.TenantConfig, error) {
	f.displayCalls++
	if f.displayErr != nil {
		return nil, f.displayErr
	}
	if t, ok := f.byDisplay[num]; ok {
		return t, nil
	}
	return nil, commerce.ErrNotFound
}

func newCache() *cache.Cache[*domain.TenantConfig] {
	return cache.New[*domain.TenantConfig](30*time.Minute, 5*time.Minute)
}

func connected(id, name, routing, display, token string) *domain.TenantConfig {
	return &domain.TenantConfig{
		TenantID: id, Name: name, RoutingID: routing,
		DisplayNumber: display, AccessToken: token, Connected: true,
	}
}

// ----- Tests -----

func TestResolve_RoutingIDHit_PopulatesBothCacheKeys(t *testing.T) {
	f := &fakeLookup{byRouting: map[string]*domain.TenantConfig{
		"pn-1": connected("966", "Dear Delhi", "pn-1", "+17158826516", "tok"),
	}}
	r := NewResolver(f, newCache())

	got, err := r.Resolve(context.Background(), "pn-1", "+17158826516")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.TenantID != "966" {
		t.Fatalf("tenant = %+v", got)
	}

	// Second resolve by either key must be served from cache.
	if _, err := r.Resolve(context.Background(), "pn-1", ""); err != nil {
		t.Fatalf("cached routing resolve: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "", "whatsapp:+17158826516"); err != nil {
		t.Fatalf("cached display resolve: %v", err)
	}
	if f.routingCalls != 1 || f.displayCalls != 0 {
		t.Fatalf("expected a single remote call, got routing=%d display=%d", f.routingCalls, f.displayCalls)
	}
}

func TestResolve_DisplayTierPreferredWhenCredentialMissing(t *testing.T) {
	// Routing-id lookup yields a config without a token; display lookup has
	// one with a token, which must win.
	f := &fakeLookup{
		byRouting: map[string]*domain.TenantConfig{
			"pn-2": connected("12", "Tokenless", "pn-2", "+15550001111", ""),
		},
		byDisplay: map[string]*domain.TenantConfig{
			"+15550001111": connected("12", "Tokenful", "pn-2", "+15550001111", "tok-12"),
		},
	}
	r := NewResolver(f, newCache())

	got, err := r.Resolve(context.Background(), "pn-2", "+15550001111")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !got.HasCredential() || got.Name != "Tokenful" {
		t.Fatalf("expected credentialed display result, got %+v", got)
	}
}

func TestResolve_CredentiallessDisplayOnlyFillsTotalMiss(t *testing.T) {
	f := &fakeLookup{
		byRouting: map[string]*domain.TenantConfig{
			"pn-3": connected("13", "ByRouting", "pn-3", "", ""),
		},
		byDisplay: map[string]*domain.TenantConfig{
			"+15550002222": connected("13", "ByDisplay", "pn-3", "+15550002222", ""),
		},
	}
	r := NewResolver(f, newCache())

	got, err := r.Resolve(context.Background(), "pn-3", "+15550002222")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	// Neither has a token: routing-id result stands.
	if got.Name != "ByRouting" {
		t.Fatalf("expected routing-id result to stand, got %+v", got)
	}
}

func TestResolve_NotConnectedIsAMiss(t *testing.T) {
	f := &fakeLookup{byRouting: map[string]*domain.TenantConfig{
		"pn-4": {TenantID: "14", RoutingID: "pn-4", Connected: false},
	}}
	r := NewResolver(f, newCache()).WithFallback(nil)

	if _, err := r.Resolve(context.Background(), "pn-4", ""); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound for disconnected tenant, got %v", err)
	}
}

func TestResolve_TransientFailureServesStaleCache(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	c := cache.New[*domain.TenantConfig](30*time.Minute, 5*time.Minute).
		WithClock(func() time.Time { return now })

	f := &fakeLookup{byRouting: map[string]*domain.TenantConfig{
		"pn-5": connected("15", "Stale Mart", "pn-5", "+15550003333", "tok"),
	}}
	r := NewResolver(f, c)

	if _, err := r.Resolve(context.Background(), "pn-5", ""); err != nil {
		t.Fatalf("warm-up resolve: %v", err)
	}

	// Entry expires, then the backend starts failing.
	now = t0.Add(31 * time.Minute)
	f.routingErr = errors.New("gateway timeout")

	got, err := r.Resolve(context.Background(), "pn-5", "")
	if err != nil {
		t.Fatalf("expected stale fallback, got error %v", err)
	}
	if got.Name != "Stale Mart" {
		t.Fatalf("unexpected stale value: %+v", got)
	}
}

func TestResolve_ConfirmedMissIsNegativeCached(t *testing.T) {
	f := &fakeLookup{}
	r := NewResolver(f, newCache()).WithFallback(nil)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "pn-unknown", ""); !errors.Is(err, ErrTenantNotFound) {
			t.Fatalf("expected ErrTenantNotFound, got %v", err)
		}
	}
	// Only the first turn should have hit the backend.
	if f.routingCalls != 1 {
		t.Fatalf("negative cache not honored: %d remote calls", f.routingCalls)
	}
}

func TestResolve_FallbackTableByDisplayNumber(t *testing.T) {
	r := NewResolver(&fakeLookup{}, newCache())

	got, err := r.Resolve(context.Background(), "pn-none", "+17158826516")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.TenantID != "966" || got.Name != "Dear Delhi" {
		t.Fatalf("fallback tenant = %+v", got)
	}
}

func TestClearCache_ForcesFreshLookup(t *testing.T) {
	f := &fakeLookup{byRouting: map[string]*domain.TenantConfig{
		"pn-6": connected("16", "Refetch", "pn-6", "", "tok"),
	}}
	r := NewResolver(f, newCache())

	_, _ = r.Resolve(context.Background(), "pn-6", "")
	r.ClearCache("pn-6")
	_, _ = r.Resolve(context.Background(), "pn-6", "")

	if f.routingCalls != 2 {
		t.Fatalf("expected 2 remote calls after cache clear, got %d", f.routingCalls)
	}
}

func TestCleanNumber(t *testing.T) {
	cases := map[string]string{
		"whatsapp:+918826516009": "+918826516009",
		"17158826516":            "+17158826516",
		"+17158826516":           "+17158826516",
		"  whatsapp:911234  ":    "+911234",
		"":                       "",
	}
	for in, want := range cases {
		if got := CleanNumber(in); got != want {
			t.Errorf("CleanNumber(%q) = %q; want %q", in, got, want)
		}
	}
}
