package middleware

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/observability"
	"github.com/caremarket/onboarding-api/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuditMiddleware logs all PUT/POST/DELETE requests automatically
// This ensures a comprehensive audit trail for all write operations
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method

		// Only audit write operations
		if method != "POST" && method != "PUT" && method != "DELETE" && method != "PATCH" {
			c.Next()
			return
		}

		// Skip health checks and metrics endpoints
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/v1/health") || strings.HasPrefix(path, "/metrics") {
			c.Next()
			return
		}

		userID := extractUserFromRequest(c)

		// Read request body (we need to preserve it for the handler)
		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		auditCtx := utils.GetAuditContextFromGin(c, userID)

		action := mapHTTPMethodToAction(method)

		metadata := map[string]string{
			"endpoint":   path,
			"method":     method,
			"ip_address": c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		if len(c.Request.URL.RawQuery) > 0 {
			metadata["query_params"] = c.Request.URL.RawQuery
		}

		if len(bodyBytes) > 0 {
			bodyStr := string(bodyBytes)
			if len(bodyStr) > 1000 {
				bodyStr = bodyStr[:1000] + "... (truncated)"
			}
			metadata["request_body"] = bodyStr
		}

		resource := extractResourceFromPath(path)
		resourceID := extractResourceID(c, path)

		c.Next()

		// Only log if request was successful (2xx status)
		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			metadata["response_status"] = strconv.Itoa(status)

			if err := utils.LogAuditEvent(c.Request.Context(), auditCtx, action, resource, resourceID, nil, nil, metadata); err != nil {
				observability.Logger().Warn("failed to log audit event",
					zap.Error(err),
					zap.String("endpoint", path),
					zap.String("method", method),
				)
			}
		}
	}
}

// extractUserFromRequest tries to extract the user ID from claims or path
func extractUserFromRequest(c *gin.Context) string {
	if claims, exists := c.Get("claims"); exists {
		if jwtClaims, ok := claims.(*models.JWTClaims); ok && jwtClaims.SUB != "" {
			return jwtClaims.SUB
		}
	}

	if userID := c.Param("userId"); userID != "" {
		return userID
	}

	return ""
}

// mapHTTPMethodToAction maps HTTP methods to audit actions
func mapHTTPMethodToAction(method string) string {
	switch method {
	case "POST":
		return utils.AuditActionCreate
	case "PUT", "PATCH":
		return utils.AuditActionUpdate
	case "DELETE":
		return utils.AuditActionDelete
	default:
		return utils.AuditActionUpdate
	}
}

// extractResourceFromPath extracts the resource type from the request path
func extractResourceFromPath(path string) string {
	path = strings.TrimPrefix(path, "/v1/")

	parts := strings.Split(path, "/")
	if len(parts) == 0 {
		return "unknown"
	}

	switch {
	case strings.HasPrefix(path, "onboarding") && strings.Contains(path, "/phone"):
		return utils.AuditResourcePhoneVerification
	case strings.HasPrefix(path, "onboarding"):
		return utils.AuditResourceOnboarding
	case strings.HasPrefix(path, "documents"):
		return utils.AuditResourceDocument
	case strings.HasPrefix(path, "verification"):
		return utils.AuditResourceVerification
	case strings.HasPrefix(path, "profiles") && strings.Contains(path, "/facility"):
		return utils.AuditResourceFacility
	case strings.HasPrefix(path, "profiles"):
		return utils.AuditResourceProfile
	default:
		return parts[0]
	}
}

// extractResourceID extracts the resource identifier from path or context
func extractResourceID(c *gin.Context, path string) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	if id := c.Param("userId"); id != "" {
		return id
	}
	if id := c.Param("documentType"); id != "" {
		return id
	}

	parts := strings.Split(strings.TrimPrefix(path, "/v1/"), "/")
	if len(parts) > 1 {
		return parts[1]
	}

	return ""
}
