// Package edgar talks to SEC EDGAR: a paced, identified, cache-backed
// source client plus a filing locator over the submissions and archive hosts.
package edgar

import (
	"strings"

	"github.com/rotisserie/eris"
)

// NormalizeCIK reduces any company identifier to the fixed-width form EDGAR
// URLs require: digits only, left-padded with zeros to 10 characters.
// Idempotent. URL construction depends on this, so it is tested on its own.
func NormalizeCIK(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" {
		if b.Len() == 0 {
			return "", eris.Errorf("edgar: no digits in CIK %q", raw)
		}
		digits = "0"
	}
	if len(digits) > 10 {
		return "", eris.Errorf("edgar: CIK %q longer than 10 digits", raw)
	}
	return strings.Repeat("0", 10-len(digits)) + digits, nil
}

// cikDigits strips the left padding for archive paths, which use the bare
// numeric form.
func cikDigits(cik string) string {
	d := strings.TrimLeft(cik, "0")
	if d == "" {
		return "0"
	}
	return d
}
