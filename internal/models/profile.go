package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProfessionalProfile is the durable profile for a worker. Verified data is
// merged in fill-only-if-empty; FieldSources records where each written
// field came from (REGISTRY or DOCUMENT).
type ProfessionalProfile struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID             string             `bson:"user_id" json:"user_id"`
	FirstName          string             `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName           string             `bson:"last_name,omitempty" json:"last_name,omitempty"`
	DateOfBirth        string             `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	Gender             string             `bson:"gender,omitempty" json:"gender,omitempty"`
	CivilStatus        string             `bson:"civil_status,omitempty" json:"civil_status,omitempty"`
	Nationality        string             `bson:"nationality,omitempty" json:"nationality,omitempty"`
	Address            string             `bson:"address,omitempty" json:"address,omitempty"`
	City               string             `bson:"city,omitempty" json:"city,omitempty"`
	PostalCode         string             `bson:"postal_code,omitempty" json:"postal_code,omitempty"`
	Canton             string             `bson:"canton,omitempty" json:"canton,omitempty"`
	Phone              string             `bson:"phone,omitempty" json:"phone,omitempty"`
	GLN                string             `bson:"gln,omitempty" json:"gln,omitempty"`
	IBAN               string             `bson:"iban,omitempty" json:"iban,omitempty"`
	Professions        []string           `bson:"professions,omitempty" json:"professions,omitempty"`
	Languages          []string           `bson:"languages,omitempty" json:"languages,omitempty"`
	VerificationStatus string             `bson:"verification_status,omitempty" json:"verification_status,omitempty"`
	AccessLevel        string             `bson:"access_level,omitempty" json:"access_level,omitempty"`
	FacilityID         string             `bson:"facility_id,omitempty" json:"facility_id,omitempty"`
	FieldSources       map[string]string  `bson:"field_sources,omitempty" json:"field_sources,omitempty"`
	Documents          []DocumentRecord   `bson:"documents,omitempty" json:"documents,omitempty"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// Access levels for professional profiles. Restricted profiles come from the
// facility-employee shortcut and stay unverified until upgraded.
const (
	AccessLevelFull       = "full"
	AccessLevelRestricted = "restricted"
)

// FacilityEmployee links a user to a facility with its roles there.
type FacilityEmployee struct {
	UserID string   `bson:"user_id" json:"user_id"`
	Roles  []string `bson:"roles" json:"roles"`
}

// FacilityProfile is the durable profile for a facility or chain.
type FacilityProfile struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID            string             `bson:"owner_id" json:"owner_id"`
	Name               string             `bson:"name,omitempty" json:"name,omitempty"`
	GLN                string             `bson:"gln,omitempty" json:"gln,omitempty"`
	UID                string             `bson:"uid,omitempty" json:"uid,omitempty"`
	Address            string             `bson:"address,omitempty" json:"address,omitempty"`
	City               string             `bson:"city,omitempty" json:"city,omitempty"`
	Canton             string             `bson:"canton,omitempty" json:"canton,omitempty"`
	VerificationStatus string             `bson:"verification_status,omitempty" json:"verification_status,omitempty"`
	CommercialStatus   string             `bson:"commercial_status,omitempty" json:"commercial_status,omitempty"`
	FieldSources       map[string]string  `bson:"field_sources,omitempty" json:"field_sources,omitempty"`
	Employees          []FacilityEmployee `bson:"employees,omitempty" json:"employees,omitempty"`
	Documents          []DocumentRecord   `bson:"documents,omitempty" json:"documents,omitempty"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// VerificationAudit records one verification attempt, successful or not.
type VerificationAudit struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID     string             `bson:"user_id" json:"user_id"`
	Track      string             `bson:"track" json:"track"`
	Identifier string             `bson:"identifier" json:"identifier"`
	Outcome    string             `bson:"outcome" json:"outcome"`
	Stage      string             `bson:"stage,omitempty" json:"stage,omitempty"`
	Warnings   []string           `bson:"warnings,omitempty" json:"warnings,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
