// Package identifier validates and normalizes the bibliographic identifiers
// the catalog understands: ISBN-10, ISBN-13 and LCCN. All checksum arithmetic
// lives here; other packages call through rather than re-implementing it.
package identifier

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Scheme tags a normalized identifier with the system it belongs to.
type Scheme string

const (
	SchemeISBN10 Scheme = "ISBN10"
	SchemeISBN13 Scheme = "ISBN13"
	SchemeLCCN   Scheme = "LCCN"
)

// ErrInvalidFormat is returned when a raw identifier fails scheme validation.
var ErrInvalidFormat = errors.New("invalid identifier format")

// Identifier is a validated, normalized identifier value. Immutable once
// constructed via ValidateAndClassify.
type Identifier struct {
	Value  string
	Scheme Scheme
}

// NormalizeISBN strips hyphens and whitespace and uppercases the value so a
// trailing X check character survives comparison.
func NormalizeISBN(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// ValidateISBN reports whether a normalized value is a checksum-valid ISBN-10
// or ISBN-13.
func ValidateISBN(normalized string) bool {
	switch len(normalized) {
	case 10:
		return validISBN10(normalized)
	case 13:
		return validISBN13(normalized)
	}
	return false
}

// validISBN10 checks the weighted-sum checksum: digits weighted 10..2, check
// character worth its face value (X counts as 10), total divisible by 11.
func validISBN10(isbn string) bool {
	sum := 0
	for i := 0; i < 9; i++ {
		c := isbn[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * (10 - i)
	}

	switch check := isbn[9]; {
	case check == 'X':
		sum += 10
	case check >= '0' && check <= '9':
		sum += int(check - '0')
	default:
		return false
	}

	return sum%11 == 0
}

// validISBN13 checks the alternating 1/3-weighted checksum modulo 10.
func validISBN13(isbn string) bool {
	sum := 0
	for i := 0; i < 12; i++ {
		c := isbn[i]
		if c < '0' || c > '9' {
			return false
		}
		if i%2 == 0 {
			sum += int(c - '0')
		} else {
			sum += int(c-'0') * 3
		}
	}

	check := isbn[12]
	if check < '0' || check > '9' {
		return false
	}

	return int(check-'0') == (10-sum%10)%10
}

// ValidateAndClassify normalizes a raw ISBN and returns it with its scheme,
// or ErrInvalidFormat when it fails validation.
func ValidateAndClassify(raw string) (Identifier, error) {
	normalized := NormalizeISBN(raw)
	if !ValidateISBN(normalized) {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}

	scheme := SchemeISBN10
	if len(normalized) == 13 {
		scheme = SchemeISBN13
	}
	return Identifier{Value: normalized, Scheme: scheme}, nil
}

// NormalizeLCCN strips spaces and hyphens and lowercases. The scheme has no
// checksum, so any non-empty normalized value is usable; empty means there is
// nothing to look up.
func NormalizeLCCN(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
