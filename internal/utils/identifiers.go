package utils

import (
	"regexp"
	"strings"
)

var (
	nonDigitRe  = regexp.MustCompile(`\D`)
	uidFormatRe = regexp.MustCompile(`^CHE-\d{3}\.\d{3}\.\d{3}$`)
	uidCharsRe  = regexp.MustCompile(`[^A-Z0-9.-]`)
)

// ValidateGLN validates a Global Location Number as issued to Swiss health
// professionals and facilities. It checks for 13 digits and verifies the
// EAN-13 check digit.
func ValidateGLN(gln string) bool {
	gln = nonDigitRe.ReplaceAllString(gln, "")

	if len(gln) != 13 {
		return false
	}

	// Check if all digits are the same
	allSame := true
	for i := 1; i < len(gln); i++ {
		if gln[i] != gln[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	// EAN-13: digits at even positions weigh 1, odd positions weigh 3
	sum := 0
	for i := 0; i < 12; i++ {
		digit := int(gln[i] - '0')
		if i%2 == 0 {
			sum += digit
		} else {
			sum += digit * 3
		}
	}
	check := (10 - sum%10) % 10

	return int(gln[12]-'0') == check
}

// ValidateUID validates a Swiss enterprise identification number in its
// canonical form, e.g. CHE-123.456.789. Inputs should be normalized with
// NormalizeUID first.
func ValidateUID(uid string) bool {
	return uidFormatRe.MatchString(uid)
}

// NormalizeUID brings a UID into canonical form: uppercase, stray
// characters removed, and the CHE-DDD.DDD.DDD grouping reconstructed when
// user input dropped the separators (CHE106029451 → CHE-106.029.451).
// Input that does not reduce to CHE plus nine digits is returned cleaned
// but unreconstructed, so validation fails on it.
func NormalizeUID(uid string) string {
	uid = strings.ToUpper(uid)
	uid = uidCharsRe.ReplaceAllString(uid, "")

	compact := strings.NewReplacer("-", "", ".", "").Replace(uid)
	if strings.HasPrefix(compact, "CHE") {
		digits := compact[3:]
		if len(digits) == 9 && !nonDigitRe.MatchString(digits) {
			return "CHE-" + digits[0:3] + "." + digits[3:6] + "." + digits[6:9]
		}
	}

	return uid
}
