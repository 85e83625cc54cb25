package checkout

import (
	"errors"
	"testing"

	"github.com/delivio/go-commerce-bot/internal/domain"
)

func TestParseAddress_FullSharedLocationText(t *testing.T) {
	addr, err := ParseAddress("11A, 2nd Cross Rd, Bengaluru, 560037, KA, IN")
	if err != nil {
		t.Fatalf("ParseAddress error: %v", err)
	}
	if addr.Street != "11A, 2nd Cross Rd" {
		t.Errorf("street = %q", addr.Street)
	}
	if addr.City != "Bengaluru" {
		t.Errorf("city = %q", addr.City)
	}
	if addr.State != "KA" {
		t.Errorf("state = %q", addr.State)
	}
	if addr.Zip != "560037" {
		t.Errorf("zip = %q", addr.Zip)
	}
	if addr.Country != "India" {
		t.Errorf("country = %q", addr.Country)
	}
}

func TestParseAddress_StateZipInOneFragment(t *testing.T) {
	addr, err := ParseAddress("MG Road, Bengaluru, KA 560037")
	if err != nil {
		t.Fatalf("ParseAddress error: %v", err)
	}
	if addr.State != "KA" || addr.Zip != "560037" {
		t.Fatalf("state/zip = %q/%q; want KA/560037", addr.State, addr.Zip)
	}
	if addr.City != "Bengaluru" || addr.Street != "MG Road" {
		t.Fatalf("city/street = %q/%q", addr.City, addr.Street)
	}
}

func TestParseAddress_USStateAfterCity(t *testing.T) {
	addr, err := ParseAddress("101 State St, Madison, WI, 53703, US")
	if err != nil {
		t.Fatalf("ParseAddress error: %v", err)
	}
	if addr.State != "WI" || addr.Zip != "53703" || addr.Country != "United States" {
		t.Fatalf("parsed = %+v", addr)
	}
}

func TestParseAddress_MissingStateGetsSentinel(t *testing.T) {
	addr, err := ParseAddress("42 Harbour View, Singapore, 018956, SG")
	if err != nil {
		t.Fatalf("ParseAddress error: %v", err)
	}
	if addr.State != domain.UnknownState {
		t.Fatalf("state = %q; want sentinel %q", addr.State, domain.UnknownState)
	}
	if addr.Country != "Singapore" || addr.Zip != "018956" {
		t.Fatalf("parsed = %+v", addr)
	}
}

func TestParseAddress_TooShort(t *testing.T) {
	if _, err := ParseAddress("short"); !errors.Is(err, ErrAddressTooShort) {
		t.Fatalf("expected ErrAddressTooShort, got %v", err)
	}
	if _, err := ParseAddress("   x,   "); !errors.Is(err, ErrAddressTooShort) {
		t.Fatalf("whitespace padding must not defeat the length gate, got %v", err)
	}
}

func TestParseAddress_KeepsRawText(t *testing.T) {
	raw := "  221B Baker Street, London, NW1, UK "
	addr, err := ParseAddress(raw)
	if err != nil {
		t.Fatalf("ParseAddress error: %v", err)
	}
	if addr.Raw != "221B Baker Street, London, NW1, UK" {
		t.Fatalf("raw = %q", addr.Raw)
	}
	if addr.Country != "United Kingdom" {
		t.Fatalf("country = %q", addr.Country)
	}
}

func TestParseAddress_SingleFragmentIsStreet(t *testing.T) {
	addr, err := ParseAddress("Plot 7 Industrial Estate")
	if err != nil {
		t.Fatalf("ParseAddress error: %v", err)
	}
	if addr.Street != "Plot 7 Industrial Estate" || addr.City != "" {
		t.Fatalf("parsed = %+v", addr)
	}
}
