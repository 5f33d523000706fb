package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Onboarding roles
const (
	RoleWorker  = "worker"
	RoleCompany = "company"
	RoleChain   = "chain"
)

// Verification tracks
const (
	TrackProfessional = "professional"
	TrackFacility     = "facility"
)

// Phone sub-machine states within step 3
const (
	PhaseEnterNumber = "enterNumber"
	PhaseEnterCode   = "enterCode"
	PhaseVerified    = "verified"
)

// MaxStepForRole returns the final onboarding step for a role.
// Completing the final step completes onboarding.
func MaxStepForRole(role string) int {
	switch role {
	case RoleCompany:
		return 5
	case RoleWorker:
		return 4
	case RoleChain:
		return 3
	default:
		return 0
	}
}

// ValidRole reports whether role is one of the onboarding roles.
func ValidRole(role string) bool {
	return role == RoleWorker || role == RoleCompany || role == RoleChain
}

// ValidTrack reports whether track names an onboarding track.
func ValidTrack(track string) bool {
	return track == TrackProfessional || track == TrackFacility
}

// TrackForRole returns the onboarding track a role runs on.
func TrackForRole(role string) string {
	if role == RoleWorker {
		return TrackProfessional
	}
	return TrackFacility
}

// OnboardingProgress is the persisted state of a user's onboarding flow.
// It is saved after every forward transition so an interrupted session
// resumes where it left off.
type OnboardingProgress struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID            string             `bson:"user_id" json:"user_id"`
	Track             string             `bson:"track" json:"track"`
	Role              string             `bson:"role,omitempty" json:"role,omitempty"`
	DisplayName       string             `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Step              int                `bson:"step" json:"step"`
	PhonePhase        string             `bson:"phone_phase,omitempty" json:"phone_phase,omitempty"`
	PhoneNumber       string             `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	LegalConfirmed    bool               `bson:"legal_confirmed" json:"legal_confirmed"`
	BelongsToFacility bool               `bson:"belongs_to_facility" json:"belongs_to_facility"`
	FacilityID        string             `bson:"facility_id,omitempty" json:"facility_id,omitempty"`
	ChainPhonePrefix  string             `bson:"chain_phone_prefix,omitempty" json:"chain_phone_prefix,omitempty"`
	ChainPhoneNumber  string             `bson:"chain_phone_number,omitempty" json:"chain_phone_number,omitempty"`
	Bypass            bool               `bson:"bypass,omitempty" json:"bypass,omitempty"`
	Completed         bool               `bson:"completed" json:"completed"`
	CompletedAt       *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	Warnings          []string           `bson:"warnings,omitempty" json:"warnings,omitempty"`
	Version           int32              `bson:"version" json:"-"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
}

// NewOnboardingProgress returns a fresh progress document at step 1 for one
// onboarding track. A user holds at most one document per track.
func NewOnboardingProgress(userID, track string) *OnboardingProgress {
	now := time.Now()
	return &OnboardingProgress{
		UserID:     userID,
		Track:      track,
		Step:       1,
		PhonePhase: PhaseEnterNumber,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// OnboardingAdvanceRequest carries the per-step payload for a forward transition.
type OnboardingAdvanceRequest struct {
	Role              string `json:"role,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
	BelongsToFacility bool   `json:"belongs_to_facility,omitempty"`
	FacilityID        string `json:"facility_id,omitempty"`
	LegalConfirmed    bool   `json:"legal_confirmed,omitempty"`
	ChainPhonePrefix  string `json:"chain_phone_prefix,omitempty"`
	ChainPhoneNumber  string `json:"chain_phone_number,omitempty"`
	Restart           bool   `json:"restart,omitempty"`
}

// OnboardingStateResponse is what handlers return for progress queries and transitions.
type OnboardingStateResponse struct {
	Step       int      `json:"step"`
	Role       string   `json:"role,omitempty"`
	PhonePhase string   `json:"phone_phase,omitempty"`
	Completed  bool     `json:"completed"`
	MaxStep    int      `json:"max_step"`
	Warnings   []string `json:"warnings,omitempty"`
}
