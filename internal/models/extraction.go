package models

import (
	"reflect"
	"time"
)

// ExtractedData is the normalized payload returned by the extraction
// provider for a single document. Fields are sparse; which ones are set
// depends on the document type.
type ExtractedData struct {
	FirstName         string   `json:"firstName,omitempty" bson:"first_name,omitempty"`
	LastName          string   `json:"lastName,omitempty" bson:"last_name,omitempty"`
	DateOfBirth       string   `json:"dateOfBirth,omitempty" bson:"date_of_birth,omitempty"`
	DocumentNumber    string   `json:"documentNumber,omitempty" bson:"document_number,omitempty"`
	ExpiryDate        string   `json:"expiryDate,omitempty" bson:"expiry_date,omitempty"`
	Nationality       string   `json:"nationality,omitempty" bson:"nationality,omitempty"`
	Gender            string   `json:"gender,omitempty" bson:"gender,omitempty"`
	CivilStatus       string   `json:"civilStatus,omitempty" bson:"civil_status,omitempty"`
	Address           string   `json:"address,omitempty" bson:"address,omitempty"`
	City              string   `json:"city,omitempty" bson:"city,omitempty"`
	PostalCode        string   `json:"postalCode,omitempty" bson:"postal_code,omitempty"`
	Canton            string   `json:"canton,omitempty" bson:"canton,omitempty"`
	IBAN              string   `json:"iban,omitempty" bson:"iban,omitempty"`
	BankName          string   `json:"bankName,omitempty" bson:"bank_name,omitempty"`
	AccountHolder     string   `json:"accountHolder,omitempty" bson:"account_holder,omitempty"`
	Professions       []string `json:"professions,omitempty" bson:"professions,omitempty"`
	Languages         []string `json:"languages,omitempty" bson:"languages,omitempty"`
	ResponsiblePerson string   `json:"responsiblePerson,omitempty" bson:"responsible_person,omitempty"`
}

// Empty reports whether the provider extracted nothing at all. A response
// with success=true but no usable fields is treated as a failed extraction.
func (d ExtractedData) Empty() bool {
	return reflect.DeepEqual(d, ExtractedData{})
}

// ExtractionResult is the provider's response envelope.
type ExtractionResult struct {
	Success             bool              `json:"success"`
	Data                ExtractedData     `json:"data"`
	VerificationDetails map[string]string `json:"verificationDetails,omitempty"`
}

// CachedExtraction is what the dual-tier autofill cache stores per
// (user, document type) pair.
type CachedExtraction struct {
	UserID       string           `bson:"user_id" json:"user_id"`
	DocumentType string           `bson:"document_type" json:"document_type"`
	Result       ExtractionResult `bson:"result" json:"result"`
	CachedAt     time.Time        `bson:"cached_at" json:"cached_at"`
	ExpiresAt    time.Time        `bson:"expires_at" json:"expires_at"`
}
