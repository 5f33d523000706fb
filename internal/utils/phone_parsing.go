package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// defaultPhoneRegion is used when a number is entered without a country
// prefix. Most users register with Swiss numbers.
const defaultPhoneRegion = "CH"

// NormalizePhoneNumber parses a phone number and returns it in E.164
// form. Numbers without an international prefix are interpreted as
// Swiss numbers.
func NormalizePhoneNumber(phoneString string) (string, error) {
	cleanPhone := strings.TrimSpace(phoneString)
	if cleanPhone == "" {
		return "", fmt.Errorf("empty phone number")
	}

	num, err := phonenumbers.Parse(cleanPhone, defaultPhoneRegion)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number: %s", phoneString)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ValidatePhoneFormat validates if a phone string is in a valid format
func ValidatePhoneFormat(phoneString string) error {
	phoneRegex := regexp.MustCompile(`^\+?[0-9]{9,15}$`)
	if !phoneRegex.MatchString(strings.ReplaceAll(phoneString, " ", "")) {
		return fmt.Errorf("invalid phone number format: %s", phoneString)
	}
	return nil
}

// MaskPhoneNumber hides the middle digits of an E.164 number for logs,
// e.g. "+41791234567" -> "+4179*****67".
func MaskPhoneNumber(phone string) string {
	if len(phone) < 8 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:5] + strings.Repeat("*", len(phone)-7) + phone[len(phone)-2:]
}
