package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/utils"
)

// ExtractionClient calls the AI extraction provider for uploaded documents.
type ExtractionClient struct {
	baseURL     string
	client      *http.Client
	logger      *logging.SafeLogger
	retryConfig RetryConfig
}

// RetryConfig defines retry behavior for provider requests.
type RetryConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns sensible defaults for provider retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

type extractionRequest struct {
	DocumentType string `json:"documentType"`
	FileURL      string `json:"fileUrl"`
}

// NewExtractionClient creates a client for the configured provider endpoint.
func NewExtractionClient(cfg *config.Config) *ExtractionClient {
	return &ExtractionClient{
		baseURL: cfg.ExtractionURL,
		client: &http.Client{
			Timeout: cfg.ExtractionTimeout,
		},
		logger:      logging.Logger.With(zap.String("service", "extraction_client")),
		retryConfig: DefaultRetryConfig(),
	}
}

// Extract submits a document for extraction and returns the normalized
// result. Provider rejections (success=false, non-2xx) map to
// models.ErrExtractionFailed; 5xx and network failures are retried with
// exponential backoff first.
func (c *ExtractionClient) Extract(ctx context.Context, token, documentType, fileURL string) (*models.ExtractionResult, error) {
	ctx, span := utils.TraceExternalService(ctx, "extraction_provider", "extract")
	defer span.End()

	payload, err := json.Marshal(extractionRequest{
		DocumentType: documentType,
		FileURL:      fileURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	var result models.ExtractionResult

	err = c.withRetry(ctx, "extract", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(payload))
		if err != nil {
			return fmt.Errorf("failed to create extraction request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		c.logger.Debug("sending extraction request",
			zap.String("document_type", documentType),
			zap.String("file_url", fileURL))

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call extraction provider: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("extraction provider server error: %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: provider returned status %d", models.ErrExtractionFailed, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read extraction response: %w", err)
		}

		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to unmarshal extraction response: %w", err)
		}

		return nil
	})
	if err != nil {
		utils.RecordErrorInSpan(span, err, nil)
		return nil, err
	}

	if !result.Success {
		c.logger.Warn("extraction provider rejected document",
			zap.String("document_type", documentType))
		return nil, fmt.Errorf("%w: provider reported failure for %s", models.ErrExtractionFailed, documentType)
	}

	// A success envelope with no fields is still a failed extraction.
	if result.Data.Empty() {
		c.logger.Warn("extraction provider returned no data",
			zap.String("document_type", documentType))
		return nil, fmt.Errorf("%w: provider returned no data for %s", models.ErrExtractionFailed, documentType)
	}

	return &result, nil
}

// withRetry executes fn with exponential backoff on retryable errors.
func (c *ExtractionClient) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retryConfig.BaseDelay) * math.Pow(c.retryConfig.BackoffFactor, float64(attempt-1)))
			if delay > c.retryConfig.MaxDelay {
				delay = c.retryConfig.MaxDelay
			}

			c.logger.Debug("retrying extraction operation",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("extraction operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempts", attempt+1))
			}
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		c.logger.Warn("extraction operation failed, will retry",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", c.retryConfig.MaxRetries),
			zap.Error(lastErr))
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operation, c.retryConfig.MaxRetries+1, lastErr)
}

// isRetryableError reports whether an error is worth another attempt:
// network failures and 5xx responses are, provider rejections are not.
func isRetryableError(err error) bool {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "dial") {
		return true
	}

	if strings.Contains(errStr, "server error") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") {
		return true
	}

	return false
}
