package checkout

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/delivio/go-commerce-bot/internal/domain"
)

// ErrAddressTooShort gates obviously incomplete typed addresses before any
// remote call is made; the caller re-prompts with a format hint.
var ErrAddressTooShort = errors.New("checkout: address text too short")

// minAddressLen is the minimum raw length accepted for a typed address.
const minAddressLen = 10

// countryByCode maps ISO-ish country tokens seen in shared-location text to
// display names. Unknown tokens pass through title-cased.
var countryByCode = map[string]string{
	"IN":  "India",
	"US":  "United States",
	"USA": "United States",
	"GB":  "United Kingdom",
	"UK":  "United Kingdom",
	"CA":  "Canada",
	"AE":  "United Arab Emirates",
	"AU":  "Australia",
	"SG":  "Singapore",
}

var titleCaser = cases.Title(language.English)

// ParseAddress extracts street/city/state/zip/country from comma-separated
// address text, as produced by a location share or typed by the user.
//
// Classification runs from the tail: a trailing country token, a 2-letter
// state token, and an all-digit zip fragment are peeled off in any order,
// the next fragment back is the city, and everything remaining is the
// street. A fragment like "KA 560037" is split on its last whitespace first.
// State falls back to the "N/A" sentinel when absent, because the backend
// rejects blank state values.
func ParseAddress(raw string) (domain.Address, error) {
	text := strings.TrimSpace(raw)
	if len(text) < minAddressLen {
		return domain.Address{}, ErrAddressTooShort
	}

	frags := splitFragments(text)
	addr := domain.Address{Raw: text, State: domain.UnknownState}

	// Peel country, state and zip off the tail, tolerating any order.
	for len(frags) > 0 {
		last := frags[len(frags)-1]
		switch {
		case addr.Country == "" && isCountry(last):
			addr.Country = countryName(last)
		case addr.State == domain.UnknownState && isStateToken(last):
			addr.State = strings.ToUpper(last)
		case addr.Zip == "" && isZip(last):
			addr.Zip = last
		default:
			goto tail
		}
		frags = frags[:len(frags)-1]
	}
tail:

	if len(frags) > 0 {
		addr.City = frags[len(frags)-1]
		frags = frags[:len(frags)-1]
	}
	addr.Street = strings.Join(frags, ", ")

	if addr.Street == "" && addr.City != "" {
		// Single-fragment input: treat it as the street line.
		addr.Street, addr.City = addr.City, ""
	}
	return addr, nil
}

// splitFragments comma-splits and then breaks "STATE ZIP" pairs apart on
// their last whitespace so the tail classifier sees one token per fragment.
func splitFragments(text string) []string {
	var frags []string
	for _, f := range strings.Split(text, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		frags = append(frags, f)
	}
	if n := len(frags); n > 0 {
		last := frags[n-1]
		if i := strings.LastIndexAny(last, " \t"); i > 0 {
			head, tail := strings.TrimSpace(last[:i]), strings.TrimSpace(last[i+1:])
			if isZip(tail) && isStateToken(head) || isStateToken(tail) && isZip(head) {
				frags = append(frags[:n-1], head, tail)
			}
		}
	}
	return frags
}

func isStateToken(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func isZip(s string) bool {
	if len(s) < 4 || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isCountry(s string) bool {
	if _, ok := countryByCode[strings.ToUpper(s)]; ok {
		return true
	}
	for _, name := range countryByCode {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

func countryName(s string) string {
	if name, ok := countryByCode[strings.ToUpper(s)]; ok {
		return name
	}
	return titleCaser.String(strings.ToLower(s))
}
