package tenant

import "github.com/delivio/go-commerce-bot/internal/domain"

// fallbackTenants is the compiled-in mapping used when both the cache and
// the backend miss. Entries here carry no messaging credential; messages for
// them go out on the process-default token.
var fallbackTenants = []domain.TenantConfig{
	{TenantID: "966", Name: "Dear Delhi", DisplayNumber: "+17158826516", Connected: true},
}
