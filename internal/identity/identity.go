// Package identity normalizes and hashes the user identifiers found in
// WhatsApp exports: phone numbers, ~nicknames, and plain display names.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// HashLength is the number of hex characters kept from the SHA-256 digest.
const HashLength = 16

// Normalize canonicalizes a raw identifier. Phone numbers collapse to a bare
// digit string regardless of spacing or formatting ("+52 55 1234 5678" ->
// "525512345678"). Nicknames keep their "~" prefix with the separator space
// removed. Plain display names pass through with directional marks and
// surrounding whitespace trimmed.
func Normalize(raw string) string {
	s := trimMarks(raw)

	if strings.HasPrefix(s, "+") {
		var b strings.Builder
		for _, r := range s {
			if unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		return b.String()
	}

	if strings.HasPrefix(s, "~") {
		// WhatsApp renders "~ Nickname" with a narrow no-break space.
		rest := trimMarks(strings.TrimPrefix(s, "~"))
		return "~" + rest
	}

	return s
}

// Hash returns the first HashLength hex characters of the SHA-256 digest of
// the normalized identifier. Deterministic by construction.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(Normalize(raw)))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// trimMarks strips the invisible control characters WhatsApp sprinkles into
// system messages (U+200E left-to-right mark, U+202F narrow no-break space)
// along with ordinary whitespace.
func trimMarks(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\u200e' || r == '\u202f'
	})
}
