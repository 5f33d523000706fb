package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/observability"
	"github.com/caremarket/onboarding-api/internal/utils/httpclient"
	"go.uber.org/zap"
)

type smsAuthResponse struct {
	Data struct {
		Token      string `json:"token"`
		Expiration int64  `json:"expiration"`
	} `json:"data"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type smsMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type smsErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// getSMSAuthToken gets an SMS gateway token, using Redis for caching
func getSMSAuthToken(ctx context.Context) (string, error) {
	logger := logging.Logger.With(zap.String("operation", "get_sms_auth_token"))

	// Try to get from Redis first
	cacheKey := "sms:token"
	token, err := config.Redis.Get(ctx, cacheKey).Result()
	if err == nil {
		observability.CacheHits.WithLabelValues("sms_token").Inc()
		return token, nil
	}

	// If not in cache, get new token
	authURL := fmt.Sprintf("%s/auth/login", config.AppConfig.SMSGatewayURL)
	authBody := map[string]string{
		"username": config.AppConfig.SMSGatewayUsername,
		"password": config.AppConfig.SMSGatewayPassword,
	}

	jsonBody, err := json.Marshal(authBody)
	if err != nil {
		logger.Error("failed to marshal auth request", zap.Error(err))
		return "", fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", authURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		logger.Error("failed to create auth request", zap.Error(err))
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	client := httpclient.Shared().Get()
	defer httpclient.Shared().Put(client)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("failed to send auth request", zap.Error(err))
		return "", fmt.Errorf("failed to send auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("failed to read auth response body", zap.Error(err))
		return "", fmt.Errorf("failed to read auth response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth request failed with status: %d", resp.StatusCode)
	}

	var authResp smsAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		logger.Error("failed to decode auth response", zap.Error(err))
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}

	// Cache the token in Redis with TTL slightly less than expiration
	expiresAt := time.Unix(0, authResp.Data.Expiration*int64(time.Millisecond))
	ttl := time.Until(expiresAt) - time.Minute
	if ttl > 0 {
		if err := config.Redis.Set(ctx, cacheKey, authResp.Data.Token, ttl).Err(); err != nil {
			logger.Warn("failed to cache SMS gateway token", zap.Error(err))
		}
	}

	return authResp.Data.Token, nil
}

// SendSMS sends a text message to a single phone number through the SMS gateway
func SendSMS(ctx context.Context, phone string, message string) error {
	logger := logging.Logger.With(
		zap.String("phone", MaskPhoneNumber(phone)),
	)

	// Without a configured gateway there is nothing to send; useful in
	// local development
	if config.AppConfig.SMSGatewayURL == "" {
		logger.Info("SMS gateway not configured, skipping message send")
		return nil
	}

	if err := ValidatePhoneFormat(phone); err != nil {
		logger.Error("invalid phone number", zap.Error(err))
		return err
	}

	token, err := getSMSAuthToken(ctx)
	if err != nil {
		logger.Error("failed to get auth token", zap.Error(err))
		return fmt.Errorf("failed to get auth token: %w", err)
	}

	msgReq := smsMessageRequest{
		To:      phone,
		Message: message,
	}

	jsonBody, err := json.Marshal(msgReq)
	if err != nil {
		logger.Error("failed to marshal message request", zap.Error(err))
		return fmt.Errorf("failed to marshal message request: %w", err)
	}

	url := fmt.Sprintf("%s/messages/send", config.AppConfig.SMSGatewayURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		logger.Error("failed to create message request", zap.Error(err))
		return fmt.Errorf("failed to create message request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	client := httpclient.Shared().Get()
	defer httpclient.Shared().Put(client)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("failed to send message request", zap.Error(err))
		return fmt.Errorf("failed to send message request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("failed to read response body", zap.Error(err))
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errResp smsErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			logger.Error("message request failed",
				zap.Int("status_code", resp.StatusCode),
				zap.String("error_message", errResp.Message))
			return fmt.Errorf("message request failed: %s", errResp.Message)
		}
		logger.Error("message request failed",
			zap.Int("status_code", resp.StatusCode))
		return fmt.Errorf("message request failed with status: %d", resp.StatusCode)
	}

	return nil
}
