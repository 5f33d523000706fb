package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DatabaseOperation represents a database operation that can be rolled back
type DatabaseOperation struct {
	Operation func() error
	Rollback  func() error
}

// ExecuteWithTransaction executes multiple database operations within a transaction
func ExecuteWithTransaction(ctx context.Context, operations []DatabaseOperation) error {
	logger := logging.Logger.With(zap.String("operation", "database_transaction"))

	session, err := config.MongoDB.Client().StartSession()
	if err != nil {
		logger.Error("failed to start database session", zap.Error(err))
		return fmt.Errorf("failed to start database session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		for i, op := range operations {
			if err := op.Operation(); err != nil {
				logger.Error("operation failed, rolling back",
					zap.Int("operation_index", i),
					zap.Error(err))

				for j := i - 1; j >= 0; j-- {
					if rollbackErr := operations[j].Rollback(); rollbackErr != nil {
						logger.Error("rollback operation failed",
							zap.Int("rollback_index", j),
							zap.Error(rollbackErr))
					}
				}
				return nil, err
			}
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("transaction failed", zap.Error(err))
		return fmt.Errorf("transaction failed: %w", err)
	}

	logger.Info("transaction completed successfully")
	return nil
}

// CreatePhoneVerification sends a verification code and records the attempt
func CreatePhoneVerification(ctx context.Context, userID, phoneNumber, code string, expiresAt time.Time) error {
	logger := logging.Logger.With(
		zap.String("user_id", userID),
		zap.String("phone", MaskPhoneNumber(phoneNumber)),
	)

	if err := SendVerificationCode(ctx, phoneNumber, code); err != nil {
		logger.Error("failed to send verification code", zap.Error(err))
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	verification := models.PhoneVerification{
		UserID:      userID,
		PhoneNumber: phoneNumber,
		Code:        code,
		Attempts:    0,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	}

	_, err := config.MongoDB.Collection(config.AppConfig.PhoneVerificationCollection).InsertOne(ctx, verification)
	if err != nil {
		logger.Error("failed to create phone verification record", zap.Error(err))
		return fmt.Errorf("failed to create verification record: %w", err)
	}

	logger.Info("phone verification record created successfully")
	return nil
}

// InvalidateUserCache invalidates cached verification data for a user
func InvalidateUserCache(ctx context.Context, userID string) error {
	if config.Redis == nil {
		return nil
	}

	logger := logging.Logger.With(zap.String("user_id", userID))

	// Invalidate cached extractions for every document type in one round trip
	documentTypes := []string{
		models.DocumentTypeIdentity,
		models.DocumentTypeWorkPermit,
		models.DocumentTypeDiploma,
		models.DocumentTypeBilling,
		models.DocumentTypeCommercialReg,
		models.DocumentTypeGLNCertificate,
		models.DocumentTypeGeneric,
	}
	keys := make([]string, 0, len(documentTypes))
	for _, documentType := range documentTypes {
		keys = append(keys, fmt.Sprintf("extraction:%s:%s", userID, documentType))
	}
	if err := NewRedisPipeline(ctx).BatchDelete(keys); err != nil {
		logger.Warn("failed to invalidate extraction cache", zap.Error(err))
		return fmt.Errorf("failed to invalidate extraction cache: %w", err)
	}

	// Invalidate cached profile
	profileCacheKey := fmt.Sprintf("profile:%s", userID)
	if err := config.Redis.Del(ctx, profileCacheKey).Err(); err != nil {
		logger.Warn("failed to invalidate profile cache", zap.Error(err))
		// Profile cache is repopulated on next read
	}

	logger.Info("user cache invalidated successfully")
	return nil
}
