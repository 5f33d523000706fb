package utils

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/caremarket/onboarding-api/internal/models"
)

// GenerateVerificationCode generates a random 6-digit verification code
func GenerateVerificationCode() string {
	code := ""
	for i := 0; i < models.VerificationCodeLength; i++ {
		code += fmt.Sprintf("%d", rand.Intn(10))
	}
	return code
}

// SendVerificationCode sends a verification code to a single phone number
func SendVerificationCode(ctx context.Context, phone string, code string) error {
	message := fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code)
	return SendSMS(ctx, phone, message)
}
