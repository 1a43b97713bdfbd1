// Package phone canonicalizes phone numbers and derives the pseudonymous
// identifiers that are allowed to leave the device.
package phone

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/callshield/internal/common"
)

const (
	minDigits = 7
	maxDigits = 15 // E.164 upper bound
)

// Normalize strips every non-digit character. It is not locale-aware:
// "+1 (555) 010-2030" and "15550102030" normalize to the same string.
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

// Validate reports whether a normalized number has a plausible length.
func Validate(normalized string) error {
	n := len(normalized)
	if n < minDigits || n > maxDigits {
		return fmt.Errorf("%w: phone number must have %d..%d digits, got %d", common.ErrValidation, minDigits, maxDigits, n)
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: phone number must be digits only", common.ErrValidation)
		}
	}
	return nil
}

// NormalizeValid normalizes raw and validates the result.
func NormalizeValid(raw string) (string, error) {
	n := Normalize(raw)
	if err := Validate(n); err != nil {
		return "", err
	}
	return n, nil
}

// AreaCode extracts the area code using NANP rules: 11 digits with a leading
// country code 1 or a bare 10 digit number. Other lengths fall back to the
// first three digits.
func AreaCode(normalized string) string {
	switch {
	case len(normalized) == 11 && normalized[0] == '1':
		return normalized[1:4]
	case len(normalized) >= 3:
		return normalized[:3]
	default:
		return ""
	}
}
