package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName prepares a personal or company name for comparison:
// lowercased, trimmed, diacritics removed. Registry entries and document
// extractions disagree on accents and casing, so all matching happens on
// normalized values.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	stripped, _, err := transform.String(diacriticsStripper, name)
	if err != nil {
		return name
	}

	return stripped
}

// NameMatches reports whether two names refer to the same person or
// entity. Both inputs are normalized, then compared by substring in
// either direction or by token containment. Token containment covers
// compound names where word order differs between sources.
func NameMatches(a, b string) bool {
	a = NormalizeName(a)
	b = NormalizeName(b)

	if a == "" || b == "" {
		return false
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	return tokensContained(a, b) || tokensContained(b, a)
}

// tokensContained reports whether every token of inner appears as a
// token of outer.
func tokensContained(inner, outer string) bool {
	innerTokens := strings.Fields(inner)
	if len(innerTokens) == 0 {
		return false
	}

	outerTokens := make(map[string]struct{})
	for _, tok := range strings.Fields(outer) {
		outerTokens[tok] = struct{}{}
	}

	for _, tok := range innerTokens {
		if _, ok := outerTokens[tok]; !ok {
			return false
		}
	}

	return true
}

// ExtractFirstName extracts the first name from a full name
func ExtractFirstName(fullName string) string {
	if fullName == "" {
		return ""
	}

	cleanName := strings.TrimSpace(fullName)

	parts := strings.FieldsFunc(cleanName, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})

	if len(parts) == 0 {
		return ""
	}

	return strings.TrimSpace(parts[0])
}

// MaskName masks a full name for privacy (e.g., "Anna Meier Keller" -> "Anna M**** Keller")
func MaskName(fullName string) string {
	if fullName == "" {
		return ""
	}

	parts := strings.Fields(strings.TrimSpace(fullName))
	if len(parts) == 0 {
		return ""
	}

	if len(parts) == 1 {
		// Single name - mask all but first character
		name := parts[0]
		if len(name) <= 1 {
			return name
		}
		return name[:1] + strings.Repeat("*", len(name)-1)
	}

	if len(parts) == 2 {
		// Two names - mask the last name
		firstName := parts[0]
		lastName := parts[1]
		if len(lastName) <= 1 {
			return firstName + " " + lastName
		}
		return firstName + " " + lastName[:1] + strings.Repeat("*", len(lastName)-1)
	}

	// Three or more names - mask middle names
	firstName := parts[0]
	lastName := parts[len(parts)-1]

	middleMask := ""
	for i := 1; i < len(parts)-1; i++ {
		if len(parts[i]) > 0 {
			middleMask += parts[i][:1] + strings.Repeat("*", len(parts[i])-1) + " "
		}
	}
	middleMask = strings.TrimSpace(middleMask)

	return firstName + " " + middleMask + " " + lastName
}
