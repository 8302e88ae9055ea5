// Package plates canonicalizes Brazilian license plates. Normalization is
// permissive (any noisy hand-typed input), validation is strict against the
// two real issuance formats.
package plates

import (
	"regexp"
	"strings"
)

var (
	nonAlnum   = regexp.MustCompile(`[^A-Za-z0-9]`)
	legacyRe   = regexp.MustCompile(`^[A-Z]{3}[0-9]{4}$`)
	mercosulRe = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z0-9][0-9]{2}$`)

	legacyMask   = regexp.MustCompile(`^([A-Z]{3})([0-9]{0,4}).*`)
	mercosulMask = regexp.MustCompile(`^([A-Z]{3})([0-9])([A-Z0-9]?)([0-9]{0,2}).*`)
)

// Normalize strips everything outside [A-Za-z0-9], upper-cases and truncates
// to 7 characters. Total and idempotent.
func Normalize(raw string) string {
	p := strings.ToUpper(nonAlnum.ReplaceAllString(raw, ""))
	if len(p) > 7 {
		p = p[:7]
	}
	return p
}

// IsValid reports whether a normalized plate matches the legacy (AAA9999) or
// Mercosul (AAA9A99) format. Callers must Normalize first.
func IsValid(plate string) bool {
	return mercosulRe.MatchString(plate) || legacyRe.MatchString(plate)
}

// Mask formats a possibly partial plate for display: legacy plates get the
// ABC-1234 hyphen, Mercosul ones stay ABC1D23.
func Mask(raw string) string {
	p := Normalize(raw)
	if len(p) <= 3 {
		return p
	}
	if len(p) > 4 && p[4] >= '0' && p[4] <= '9' {
		out := legacyMask.ReplaceAllString(p, "$1-$2")
		if len(out) > 8 {
			out = out[:8]
		}
		return out
	}
	out := mercosulMask.ReplaceAllString(p, "$1$2$3$4")
	if len(out) > 7 {
		out = out[:7]
	}
	return out
}
