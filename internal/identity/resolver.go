// Package identity – Resolver
//
// Resolver walks the candidate ladder against the backend's find-by-phone
// lookup and falls back to guest registration. A transient backend failure
// aborts resolution instead of registering a guest: provisioning a duplicate
// shell account for someone who already has a real one is worse than asking
// them to retry.
package identity

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ErrUnresolvable is returned when the raw identifier yields no usable
// candidate formats.
var ErrUnresolvable = errors.New("identity: no usable phone candidates")

// Directory is the backend contract required by the Resolver.
type Directory interface {
	AccountByPhone(ctx context.Context, phone string) (*domain.Account, error)
	RegisterGuest(ctx context.Context, phoneLocal, name, countryCode string) (*domain.Account, bool, error)
}

// Resolver resolves chat sender identifiers to backend accounts.
type Resolver struct {
	Backend Directory

	// GuestName is the display name given to auto-provisioned accounts.
	GuestName string
}

// NewResolver builds a Resolver with the default guest display name.
func NewResolver(backend Directory) *Resolver {
	return &Resolver{Backend: backend, GuestName: "Guest"}
}

// ResolveOrCreate finds the account for a raw phone-like identifier, trying
// each candidate format in order; the first hit wins. When every candidate
// misses it registers a guest account keyed by the inferred country code and
// local number, returning isNew = true.
func (r *Resolver) ResolveOrCreate(ctx context.Context, rawPhone string) (*domain.Account, bool, error) {
	candidates := Candidates(rawPhone)
	if len(candidates) == 0 {
		return nil, false, ErrUnresolvable
	}

	for _, phone := range candidates {
		acc, err := r.Backend.AccountByPhone(ctx, phone)
		if err == nil {
			log.Debug().Str("candidate", phone).Str("account_id", acc.ID).
				Msg("identity resolved via existing account")
			return acc, false, nil
		}
		if errors.Is(err, commerce.ErrNotFound) {
			continue
		}
		// Transient failure: do not fall through to guest registration.
		return nil, false, err
	}

	digits := Normalize(rawPhone)
	code, local, country := SplitCountryCode(digits)
	acc, isNew, err := r.Backend.RegisterGuest(ctx, local, r.GuestName, code)
	if err != nil {
		return nil, false, err
	}
	log.Info().Str("account_id", acc.ID).Str("country_code", code).Str("country", country).
		Bool("is_new", isNew).Msg("guest account provisioned")
	return acc, isNew, nil
}
