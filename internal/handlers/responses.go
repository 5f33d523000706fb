package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/observability"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// statusForError maps the service error taxonomy to HTTP status codes.
// Unknown errors are internal.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidStep),
		errors.Is(err, models.ErrInvalidRole),
		errors.Is(err, models.ErrStepNotAllowed),
		errors.Is(err, models.ErrInvalidPhoneNumber),
		errors.Is(err, models.ErrVerificationCodeInvalid):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoRecordFound),
		errors.Is(err, models.ErrProfileNotFound),
		errors.Is(err, models.ErrProgressNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrOnboardingCompleted),
		errors.Is(err, models.ErrVerificationInProgress),
		errors.Is(err, models.ErrProgressConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrIdentityMismatch),
		errors.Is(err, models.ErrDocumentExpired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrTooManyVerificationTries):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrUploadFailed),
		errors.Is(err, models.ErrExtractionFailed):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the mapped error response. Internal errors are logged
// and returned with a generic message so provider details do not leak.
func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		observability.Logger().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
