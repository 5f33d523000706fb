package models

import "errors"

// Verification pipeline errors
var (
	ErrValidation       = errors.New("validation failed")
	ErrUploadFailed     = errors.New("document upload failed")
	ErrExtractionFailed = errors.New("document extraction failed")
	ErrNoRecordFound    = errors.New("no registry record found")
	ErrIdentityMismatch = errors.New("extracted identity does not match registry record")
	ErrDocumentExpired  = errors.New("document is expired")
	ErrTimeout          = errors.New("operation timed out")
)

// Onboarding errors
var (
	ErrOnboardingCompleted    = errors.New("onboarding already completed")
	ErrInvalidStep            = errors.New("invalid onboarding step")
	ErrInvalidRole            = errors.New("invalid onboarding role")
	ErrStepNotAllowed         = errors.New("step transition not allowed")
	ErrVerificationInProgress = errors.New("verification already in progress for this track")
	ErrProgressConflict       = errors.New("onboarding progress was modified concurrently")
)

// Phone verification errors
var (
	ErrVerificationCodeInvalid  = errors.New("verification code invalid or expired")
	ErrTooManyVerificationTries = errors.New("too many verification attempts")
	ErrInvalidPhoneNumber       = errors.New("invalid phone number")
)

// Storage errors
var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrProgressNotFound = errors.New("onboarding progress not found")
)
