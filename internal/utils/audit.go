package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"user_id" json:"user_id"`
	Action     string             `bson:"action" json:"action"`
	Resource   string             `bson:"resource" json:"resource"`
	ResourceID string             `bson:"resource_id" json:"resource_id"`
	OldValue   interface{}        `bson:"old_value,omitempty" json:"old_value,omitempty"`
	NewValue   interface{}        `bson:"new_value,omitempty" json:"new_value,omitempty"`
	IPAddress  string             `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent  string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	RequestID  string             `bson:"request_id,omitempty" json:"request_id,omitempty"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
	Metadata   map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// Audit constants
const (
	AuditActionCreate   = "CREATE"
	AuditActionRead     = "READ"
	AuditActionUpdate   = "UPDATE"
	AuditActionDelete   = "DELETE"
	AuditActionValidate = "VALIDATE"

	AuditResourceOnboarding        = "onboarding"
	AuditResourceDocument          = "document"
	AuditResourceVerification      = "verification"
	AuditResourcePhoneVerification = "phone_verification"
	AuditResourceProfile           = "profile"
	AuditResourceFacility          = "facility"
)

// AuditContext contains context information for audit logging
type AuditContext struct {
	UserID    string
	IPAddress string
	UserAgent string
	RequestID string
}

// AuditWorker manages asynchronous audit logging
type AuditWorker struct {
	auditChan chan AuditLog
	workers   int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

var (
	auditWorker *AuditWorker
	once        sync.Once
)

// InitAuditWorker initializes the audit worker
func InitAuditWorker(workers int, bufferSize int) {
	once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		auditWorker = &AuditWorker{
			auditChan: make(chan AuditLog, bufferSize),
			workers:   workers,
			ctx:       ctx,
			cancel:    cancel,
		}
		auditWorker.start()
	})
}

// start starts the audit worker pool
func (aw *AuditWorker) start() {
	aw.wg.Add(aw.workers)

	for i := 0; i < aw.workers; i++ {
		go func() {
			defer aw.wg.Done()
			aw.processAuditLogs()
		}()
	}

	logging.Logger.Info("audit worker started",
		zap.Int("workers", aw.workers),
		zap.Int("buffer_size", cap(aw.auditChan)))
}

// processAuditLogs processes audit logs in batches
func (aw *AuditWorker) processAuditLogs() {
	batchTicker := time.NewTicker(100 * time.Millisecond)
	monitorTicker := time.NewTicker(30 * time.Second)
	defer batchTicker.Stop()
	defer monitorTicker.Stop()

	var batch []AuditLog
	batchSize := 100

	for {
		select {
		case auditLog, ok := <-aw.auditChan:
			if !ok {
				if len(batch) > 0 {
					aw.flushBatch(batch)
				}
				return
			}
			batch = append(batch, auditLog)

			if len(batch) >= batchSize {
				aw.flushBatch(batch)
				batch = batch[:0]
			}
		case <-batchTicker.C:
			if len(batch) > 0 {
				aw.flushBatch(batch)
				batch = batch[:0]
			}
		case <-monitorTicker.C:
			aw.reportBufferUsage()
		}
	}
}

// flushBatch inserts a batch of audit logs with a single bulk write
func (aw *AuditWorker) flushBatch(batch []AuditLog) {
	if len(batch) == 0 {
		return
	}

	logger := logging.Logger.With(
		zap.Int("batch_size", len(batch)),
		zap.String("operation", "audit_batch_insert"),
	)

	var operations []mongo.WriteModel
	for _, log := range batch {
		operations = append(operations, mongo.NewInsertOneModel().SetDocument(log))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.BulkWrite().SetOrdered(false)

	result, err := config.MongoDB.Collection(config.AppConfig.AuditLogsCollection).BulkWrite(ctx, operations, opts)
	if err != nil {
		logger.Error("failed to insert audit log batch", zap.Error(err))
		return
	}

	logger.Debug("audit log batch inserted",
		zap.Int64("inserted", result.InsertedCount))
}

// Stop stops the audit worker
func (aw *AuditWorker) Stop() {
	if aw != nil {
		aw.cancel()
		close(aw.auditChan)
		aw.wg.Wait()
	}
}

// GetAuditWorker returns the global audit worker instance
func GetAuditWorker() *AuditWorker {
	return auditWorker
}

// LogAuditEvent logs an audit event to the audit collection asynchronously
func LogAuditEvent(ctx context.Context, auditCtx AuditContext, action, resource, resourceID string, oldValue, newValue interface{}, metadata map[string]string) error {
	if !config.AppConfig.AuditLogsEnabled {
		return nil
	}

	// If audit worker is not initialized, log synchronously as fallback
	if auditWorker == nil {
		return logAuditEventSync(ctx, auditCtx, action, resource, resourceID, oldValue, newValue, metadata)
	}

	auditLog := AuditLog{
		UserID:     auditCtx.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		OldValue:   oldValue,
		NewValue:   newValue,
		IPAddress:  auditCtx.IPAddress,
		UserAgent:  auditCtx.UserAgent,
		RequestID:  auditCtx.RequestID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}

	// Try to send to audit channel, but don't block
	select {
	case auditWorker.auditChan <- auditLog:
		return nil
	default:
		logging.Logger.Warn("audit channel full, falling back to synchronous logging",
			zap.String("user_id", auditCtx.UserID),
			zap.String("action", action))
		return logAuditEventSync(ctx, auditCtx, action, resource, resourceID, oldValue, newValue, metadata)
	}
}

// logAuditEventSync logs an audit event synchronously (fallback method)
func logAuditEventSync(ctx context.Context, auditCtx AuditContext, action, resource, resourceID string, oldValue, newValue interface{}, metadata map[string]string) error {
	logger := logging.Logger.With(
		zap.String("user_id", auditCtx.UserID),
		zap.String("action", action),
		zap.String("resource", resource),
	)

	auditLog := AuditLog{
		UserID:     auditCtx.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		OldValue:   oldValue,
		NewValue:   newValue,
		IPAddress:  auditCtx.IPAddress,
		UserAgent:  auditCtx.UserAgent,
		RequestID:  auditCtx.RequestID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}

	dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := config.MongoDB.Collection(config.AppConfig.AuditLogsCollection).InsertOne(dbCtx, auditLog)
	if err != nil {
		logger.Error("failed to insert audit log", zap.Error(err))
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// LogOnboardingTransition logs an onboarding step transition
func LogOnboardingTransition(ctx context.Context, auditCtx AuditContext, fromStep, toStep int) error {
	metadata := map[string]string{
		"operation": "onboarding_transition",
		"from_step": fmt.Sprintf("%d", fromStep),
		"to_step":   fmt.Sprintf("%d", toStep),
	}

	return LogAuditEvent(ctx, auditCtx, AuditActionUpdate, AuditResourceOnboarding, auditCtx.UserID, fromStep, toStep, metadata)
}

// LogDocumentUpload logs a document upload audit event
func LogDocumentUpload(ctx context.Context, auditCtx AuditContext, documentType, url string) error {
	metadata := map[string]string{
		"operation":     "document_upload",
		"document_type": documentType,
	}

	return LogAuditEvent(ctx, auditCtx, AuditActionCreate, AuditResourceDocument, auditCtx.UserID, nil, map[string]string{"url": url}, metadata)
}

// LogPhoneVerification logs a phone verification audit event
func LogPhoneVerification(ctx context.Context, auditCtx AuditContext, phoneNumber string) error {
	metadata := map[string]string{
		"operation": "phone_verification",
		"phone":     phoneNumber,
	}

	return LogAuditEvent(ctx, auditCtx, AuditActionCreate, AuditResourcePhoneVerification, auditCtx.UserID, nil, map[string]string{"phone": phoneNumber}, metadata)
}

// LogPhoneVerificationSuccess logs a successful phone verification
func LogPhoneVerificationSuccess(ctx context.Context, auditCtx AuditContext, phoneNumber string) error {
	metadata := map[string]string{
		"operation": "phone_verification_success",
		"phone":     phoneNumber,
	}

	return LogAuditEvent(ctx, auditCtx, AuditActionValidate, AuditResourcePhoneVerification, auditCtx.UserID, nil, map[string]string{"phone": phoneNumber, "status": "verified"}, metadata)
}

// GetAuditContextFromGin extracts audit context from Gin context
func GetAuditContextFromGin(c *gin.Context, userID string) AuditContext {
	return AuditContext{
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		RequestID: c.GetHeader("X-Request-ID"),
	}
}

// SanitizeAuditData removes sensitive information from audit data
func SanitizeAuditData(data interface{}) interface{} {
	if data == nil {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return data
	}

	var sanitized interface{}
	err = json.Unmarshal(jsonData, &sanitized)
	if err != nil {
		return data
	}

	sanitizeMap(sanitized)

	return sanitized
}

// sanitizeMap recursively removes sensitive fields from a map
func sanitizeMap(data interface{}) {
	switch v := data.(type) {
	case map[string]interface{}:
		sensitiveFields := []string{"password", "token", "secret", "key", "code", "iban"}
		for _, field := range sensitiveFields {
			if _, exists := v[field]; exists {
				v[field] = "[REDACTED]"
			}
		}

		for _, value := range v {
			sanitizeMap(value)
		}

	case []interface{}:
		for _, item := range v {
			sanitizeMap(item)
		}
	}
}

// reportBufferUsage logs when the audit buffer is running hot
func (aw *AuditWorker) reportBufferUsage() {
	currentBufferUsage := len(aw.auditChan)
	bufferCapacity := cap(aw.auditChan)

	bufferUsagePercentage := float64(currentBufferUsage) / float64(bufferCapacity) * 100

	if bufferUsagePercentage > 80 {
		logging.Logger.Warn("high audit buffer usage detected",
			zap.Int("current_usage", currentBufferUsage),
			zap.Int("buffer_capacity", bufferCapacity),
			zap.Float64("usage_percentage", bufferUsagePercentage))
	}
}

// GetAuditWorkerStats returns current audit worker statistics
func (aw *AuditWorker) GetAuditWorkerStats() map[string]interface{} {
	if aw == nil {
		return map[string]interface{}{
			"status": "not_initialized",
		}
	}

	return map[string]interface{}{
		"status":           "running",
		"workers":          aw.workers,
		"buffer_capacity":  cap(aw.auditChan),
		"buffer_usage":     len(aw.auditChan),
		"buffer_available": cap(aw.auditChan) - len(aw.auditChan),
	}
}
