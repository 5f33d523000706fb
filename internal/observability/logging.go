package observability

import (
	"github.com/caremarket/onboarding-api/internal/logging"
)

// Logger returns the global safe logger instance
func Logger() *logging.SafeLogger {
	return logging.Logger
}

// MaskIdentifier masks a GLN or UID for logging, keeping only leading and
// trailing characters.
func MaskIdentifier(id string) string {
	if len(id) < 6 {
		return "******"
	}
	return id[:3] + "*******" + id[len(id)-3:]
}

// MaskSensitiveData masks sensitive data in a map
func MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	sensitiveFields := []string{"first_name", "last_name", "date_of_birth", "phone", "iban", "document_number"}
	masked := make(map[string]interface{})

	for k, v := range data {
		if contains(sensitiveFields, k) {
			masked[k] = "********"
		} else {
			masked[k] = v
		}
	}

	return masked
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
