/*
Package isbn validates and canonicalizes catalog identifiers.

PURPOSE:
  Uploaded files and API clients hand the system ISBNs in whatever
  shape they have them: hyphenated, with spaces, ISBN-10 or ISBN-13.
  The rest of the system only ever sees the canonical form, a bare
  13-digit ISBN-13, so this package is the single place identifier
  shape is dealt with.

RULES:
  - Hyphens and spaces are ignored.
  - ISBN-13 must be 13 digits with a valid EAN-13 check digit.
  - ISBN-10 must be 9 digits plus a digit or 'X' check character, and
    is converted to its 978-prefixed ISBN-13 equivalent.
*/
package isbn

import (
	"errors"
	"strings"
)

// ErrInvalid is returned for anything that is not a structurally valid
// ISBN-10 or ISBN-13.
var ErrInvalid = errors.New("invalid isbn")

// Valid reports whether s is a structurally valid ISBN-10 or ISBN-13.
func Valid(s string) bool {
	_, err := Canonical(s)
	return err == nil
}

// Canonical normalizes s to a bare ISBN-13 string.
func Canonical(s string) (string, error) {
	cleaned := clean(s)
	switch len(cleaned) {
	case 10:
		if !validISBN10(cleaned) {
			return "", ErrInvalid
		}
		return toISBN13(cleaned), nil
	case 13:
		if !validISBN13(cleaned) {
			return "", ErrInvalid
		}
		return cleaned, nil
	default:
		return "", ErrInvalid
	}
}

func clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func validISBN10(s string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		c := s[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += (10 - i) * v
	}
	return sum%11 == 0
}

func validISBN13(s string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		v := int(c - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}

// toISBN13 converts a valid ISBN-10 to its 978-prefixed ISBN-13.
func toISBN13(s string) string {
	body := "978" + s[:9]
	sum := 0
	for i := 0; i < 12; i++ {
		v := int(body[i] - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	check := (10 - sum%10) % 10
	return body + string(rune('0'+check))
}
