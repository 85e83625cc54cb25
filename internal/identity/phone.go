// Package identity resolves a raw phone-like chat identifier to a backend
// account, auto-provisioning a guest account when no existing account
// matches any known format variant of the number.
package identity

import "strings"

// minCandidateDigits is the shortest variant worth looking up.
const minCandidateDigits = 6

// Normalize reduces a raw identifier to digits only. It is idempotent:
// Normalize(Normalize(x)) == Normalize(x) for any input.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Candidates generates the ordered list of format variants to try against
// the backend's phone lookup, shortest meaningful suffix first: last 10
// digits, last 9 digits, the number with a presumed 2- then 1-digit country
// code stripped, and the full cleaned string last.
//
// The ordering is a deliberate tie-break: short, locally formatted numbers
// are how manually registered accounts tend to be keyed, while the full
// international form is how auto-provisioned guests get keyed. Trying short
// forms first avoids matching a guest shell account when a real account
// exists. Duplicates and variants shorter than 6 digits are skipped.
func Candidates(raw string) []string {
	digits := Normalize(raw)
	if digits == "" {
		return nil
	}

	variants := make([]string, 0, 5)
	if n := len(digits); n >= 10 {
		variants = append(variants, digits[n-10:])
	}
	if n := len(digits); n >= 9 {
		variants = append(variants, digits[n-9:])
	}
	if len(digits) > 2 {
		variants = append(variants, digits[2:])
	}
	if len(digits) > 1 {
		variants = append(variants, digits[1:])
	}
	variants = append(variants, digits)

	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if len(v) < minCandidateDigits {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitCountryCode infers a country code from digit-length/prefix patterns
// and returns (countryCode, localNumber, countryName). Patterns follow the
// numbers this bot actually sees; anything unrecognized with more than 10
// digits treats the excess leading digits as the country code, and a bare
// 10-digit number is assumed North American.
func SplitCountryCode(digits string) (code, local, country string) {
	n := len(digits)
	switch {
	case strings.HasPrefix(digits, "91") && n >= 12:
		return "91", digits[2:], "India"
	case strings.HasPrefix(digits, "44") && n >= 12:
		return "44", digits[2:], "United Kingdom"
	case strings.HasPrefix(digits, "1") && n == 11:
		return "1", digits[1:], "United States"
	case n > 10:
		return digits[:n-10], digits[n-10:], ""
	default:
		return "1", digits, "United States"
	}
}
