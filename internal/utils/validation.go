package utils

import (
	"regexp"
	"strings"

	"github.com/caremarket/onboarding-api/internal/models"
)

// ValidationError represents a validation error with field and message
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		IsValid: true,
		Errors:  []ValidationError{},
	}
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.IsValid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

var validDocumentTypes = map[string]struct{}{
	models.DocumentTypeIdentity:       {},
	models.DocumentTypeWorkPermit:     {},
	models.DocumentTypeDiploma:        {},
	models.DocumentTypeBilling:        {},
	models.DocumentTypeCommercialReg:  {},
	models.DocumentTypeGLNCertificate: {},
	models.DocumentTypeGeneric:        {},
}

// IsValidDocumentType reports whether the given document type is known
func IsValidDocumentType(documentType string) bool {
	_, ok := validDocumentTypes[documentType]
	return ok
}

// ValidateDocumentType validates a document type value
func ValidateDocumentType(documentType string) *ValidationResult {
	result := NewValidationResult()

	if strings.TrimSpace(documentType) == "" {
		result.AddError("document_type", "Document type is required")
		return result
	}

	if !IsValidDocumentType(documentType) {
		result.AddError("document_type", "Unknown document type")
	}

	return result
}

// ValidateRole validates an onboarding role value
func ValidateRole(role string) *ValidationResult {
	result := NewValidationResult()

	if strings.TrimSpace(role) == "" {
		result.AddError("role", "Role is required")
		return result
	}

	if !models.ValidRole(role) {
		result.AddError("role", "Unknown role")
	}

	return result
}

// SanitizeString removes leading/trailing whitespace and normalizes string
func SanitizeString(s string) string {
	return strings.TrimSpace(s)
}

var (
	chainPrefixRe = regexp.MustCompile(`^\+\d{1,3}$`)
	chainNumberRe = regexp.MustCompile(`^\d{6,12}$`)
)

// ValidateChainContact validates the contact number a chain provides in
// place of phone verification: an international prefix and the national
// number digits.
func ValidateChainContact(prefix, number string) *ValidationResult {
	result := NewValidationResult()

	if !chainPrefixRe.MatchString(strings.TrimSpace(prefix)) {
		result.AddError("chain_phone_prefix", "Prefix must be + followed by 1-3 digits")
	}

	number = strings.ReplaceAll(number, " ", "")
	if !chainNumberRe.MatchString(number) {
		result.AddError("chain_phone_number", "Number must be 6-12 digits")
	}

	return result
}
