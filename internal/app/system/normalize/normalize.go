// Package normalize canonicalizes user-supplied identifiers before they are
// compared or stored.
package normalize

import (
	"strings"
	"unicode"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Phone strips formatting and a leading "+" so that "+1 (555) 123-4567" and
// "15551234567" compare equal.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LoginID reports whether s looks like an email and returns it normalized
// for lookup as either an email or a phone.
func LoginID(s string) (value string, isEmail bool) {
	if strings.Contains(s, "@") {
		return Email(s), true
	}
	return Phone(s), false
}
