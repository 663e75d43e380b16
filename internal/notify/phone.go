package notify

import (
	"fmt"
	"strings"
)

// NormalizePhone converts a stored phone number to E.164-ish international
// form. Formatting characters are dropped, a 00 prefix becomes +, and local
// numbers (leading zero or bare digits) get the configured country code.
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("notify: phone %q contains invalid character %q", raw, r)
		}
	}
	cleaned := b.String()

	var normalized string
	switch {
	case cleaned == "" || cleaned == "+":
		return "", fmt.Errorf("notify: phone %q has no digits", raw)
	case strings.HasPrefix(cleaned, "+"):
		normalized = cleaned
	case strings.HasPrefix(cleaned, "00"):
		normalized = "+" + cleaned[2:]
	case strings.HasPrefix(cleaned, "0"):
		normalized = countryCode + cleaned[1:]
	default:
		normalized = countryCode + cleaned
	}

	digits := len(normalized) - 1
	if digits < 8 || digits > 15 {
		return "", fmt.Errorf("notify: phone %q normalizes to %d digits, expected 8 to 15", raw, digits)
	}
	return normalized, nil
}
