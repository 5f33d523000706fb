package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PhoneVerification is a pending verification code for a user's phone.
// Documents expire via a TTL index on expires_at.
type PhoneVerification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	PhoneNumber string             `bson:"phone_number" json:"phone_number"`
	Code        string             `bson:"code" json:"code"`
	Attempts    int                `bson:"attempts" json:"attempts"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expires_at"`
}

// AccountPhone records a phone number verified at the account level. Once
// present, later onboarding runs skip verification for the same user.
type AccountPhone struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	PhoneNumber string             `bson:"phone_number" json:"phone_number"`
	VerifiedAt  time.Time          `bson:"verified_at" json:"verified_at"`
}

// PhoneCodeRequest starts phone verification for a number.
type PhoneCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// PhoneVerifyRequest submits the received code.
type PhoneVerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

const (
	VerificationCodeLength  = 6
	MaxVerificationAttempts = 3
)
