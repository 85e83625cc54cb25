package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/delivio/go-commerce-bot/internal/commerce"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ----- Fake directory -----

type fakeDirectory struct {
	accounts map[string]*domain.Account // keyed by phone variant
	tried    []string

	lookupErr error

	regLocal   string
	regName    string
	regCode    string
	regAccount *domain.Account
	regIsNew   bool
	regErr     error
	regCalls   int
}

func (f *fakeDirectory) AccountByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	f.tried = append(f.tried, phone)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if acc, ok := f.accounts[phone]; ok {
		return acc, nil
	}
	return nil, commerce.ErrNotFound
}

func (f *fakeDirectory) RegisterGuest(ctx context.Context, local, name, code string) (*domain.Account, bool, error) {
	f.regCalls++
	f.regLocal, f.regName, f.regCode = local, name, code
	return f.regAccount, f.regIsNew, f.regErr
}

// ----- Tests -----

func TestResolveOrCreate_ShortFormWinsOverFull(t *testing.T) {
	// Both the local form (real account) and the international form (guest
	// shell) exist; the short form must win.
	f := &fakeDirectory{accounts: map[string]*domain.Account{
		"8826516009":   {ID: "real-1", Name: "Asha"},
		"918826516009": {ID: "guest-9", Name: "Guest"},
	}}
	r := NewResolver(f)

	acc, isNew, err := r.ResolveOrCreate(context.Background(), "whatsapp:+918826516009")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if isNew {
		t.Fatalf("expected existing account")
	}
	if acc.ID != "real-1" {
		t.Fatalf("expected the real account to win, got %+v", acc)
	}
	if f.tried[0] != "8826516009" {
		t.Fatalf("first candidate tried = %q", f.tried[0])
	}
}

func TestResolveOrCreate_AllMiss_RegistersGuest(t *testing.T) {
	f := &fakeDirectory{
		regAccount: &domain.Account{ID: "777", Name: "Guest"},
		regIsNew:   true,
	}
	r := NewResolver(f)

	acc, isNew, err := r.ResolveOrCreate(context.Background(), "+17158826516")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if !isNew || acc.ID != "777" {
		t.Fatalf("expected new guest, got acc=%+v isNew=%v", acc, isNew)
	}
	if f.regCode != "1" || f.regLocal != "7158826516" {
		t.Fatalf("guest registered with code=%q local=%q", f.regCode, f.regLocal)
	}
	if f.regName != "Guest" {
		t.Fatalf("guest name = %q", f.regName)
	}
}

func TestResolveOrCreate_IndiaCountryInference(t *testing.T) {
	f := &fakeDirectory{
		regAccount: &domain.Account{ID: "888"},
		regIsNew:   true,
	}
	r := NewResolver(f)

	if _, _, err := r.ResolveOrCreate(context.Background(), "918826516009"); err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if f.regCode != "91" || f.regLocal != "8826516009" {
		t.Fatalf("expected India split, got code=%q local=%q", f.regCode, f.regLocal)
	}
}

func TestResolveOrCreate_TransientFailureDoesNotRegister(t *testing.T) {
	sentinel := errors.New("backend down")
	f := &fakeDirectory{lookupErr: sentinel}
	r := NewResolver(f)

	_, _, err := r.ResolveOrCreate(context.Background(), "+17158826516")
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected transport error to propagate, got %v", err)
	}
	if f.regCalls != 0 {
		t.Fatalf("guest registration must not run on transient failure")
	}
}

func TestResolveOrCreate_NoCandidates(t *testing.T) {
	r := NewResolver(&fakeDirectory{})
	if _, _, err := r.ResolveOrCreate(context.Background(), "123"); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
}

func TestResolveOrCreate_RegistrationErrorPropagates(t *testing.T) {
	sentinel := errors.New("registration rejected")
	f := &fakeDirectory{regErr: sentinel}
	r := NewResolver(f)

	_, _, err := r.ResolveOrCreate(context.Background(), "+17158826516")
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected registration error, got %v", err)
	}
}
