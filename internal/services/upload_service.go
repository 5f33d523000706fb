package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/observability"
	"github.com/caremarket/onboarding-api/internal/storage"
	"github.com/caremarket/onboarding-api/internal/utils"
)

// ProgressFunc reports upload progress back to the caller. It is invoked at
// start, after the blob write, and after the metadata record.
type ProgressFunc func(stage string, pct int)

// UploadInput describes one document upload.
type UploadInput struct {
	OwnerID      string
	Facility     bool
	DocumentType string
	Subfolder    string
	FileName     string
	ContentType  string
	Content      io.Reader
}

// UploadService writes document blobs and keeps the owner's document
// metadata in sync.
type UploadService struct {
	blobs    storage.BlobStore
	database *mongo.Database
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewUploadService creates the service.
func NewUploadService(blobs storage.BlobStore, database *mongo.Database) *UploadService {
	return &UploadService{
		blobs:    blobs,
		database: database,
		logger:   logging.Logger.With(zap.String("service", "upload")),
		now:      time.Now,
	}
}

// Upload writes the blob and appends a document record to the owner's
// profile, replacing prior records with the same subfolder. A metadata
// failure is logged but the blob URL is still returned; a blob failure maps
// to models.ErrUploadFailed.
func (s *UploadService) Upload(ctx context.Context, in UploadInput, progress ProgressFunc) (*models.DocumentRecord, error) {
	ctx, span := utils.TraceBusinessLogic(ctx, "document_upload")
	defer span.End()

	if progress != nil {
		progress("starting", 0)
	}

	fileName := normalizeFileName(in.FileName, s.now())
	objectPath := buildObjectPath(in.OwnerID, in.Facility, in.Subfolder, fileName)

	url, size, err := s.blobs.Write(ctx, objectPath, in.ContentType, in.Content)
	if err != nil {
		observability.DocumentUploads.WithLabelValues(in.DocumentType, "failed").Inc()
		return nil, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	if progress != nil {
		progress("uploaded", 70)
	}

	record := models.DocumentRecord{
		ID:          utils.GenerateUUID(),
		Type:        in.DocumentType,
		Subfolder:   in.Subfolder,
		FileName:    fileName,
		URL:         url,
		Size:        size,
		ContentType: in.ContentType,
		UploadedAt:  s.now(),
	}

	if err := s.recordMetadata(ctx, in, record); err != nil {
		// The blob is written and its URL usable; metadata catches up on
		// the next upload for this subfolder.
		s.logger.Warn("failed to record document metadata",
			zap.String("owner_id", in.OwnerID),
			zap.String("subfolder", in.Subfolder),
			zap.Error(err))
	}

	if progress != nil {
		progress("completed", 100)
	}

	observability.DocumentUploads.WithLabelValues(in.DocumentType, "success").Inc()
	s.logger.Info("document uploaded",
		zap.String("owner_id", in.OwnerID),
		zap.String("document_type", in.DocumentType),
		zap.String("object", objectPath),
		zap.Int64("size", size))

	return &record, nil
}

// recordMetadata replaces same-subfolder records on the owner's profile
// with the new one.
func (s *UploadService) recordMetadata(ctx context.Context, in UploadInput, record models.DocumentRecord) error {
	collectionName := config.AppConfig.ProfessionalCollection
	filter := bson.M{"user_id": in.OwnerID}
	if in.Facility {
		collectionName = config.AppConfig.FacilityCollection
		filter = bson.M{"owner_id": in.OwnerID}
	}
	collection := s.database.Collection(collectionName)

	_, err := utils.UpdateOneWithTimeout(ctx, collection, filter, bson.M{
		"$pull": bson.M{"documents": bson.M{"subfolder": in.Subfolder}},
	}, utils.DefaultQueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to drop prior document records: %w", err)
	}

	_, err = utils.UpsertOneWithTimeout(ctx, collection, filter, bson.M{
		"$push": bson.M{"documents": record},
		"$set":  bson.M{"updated_at": s.now()},
	}, utils.DefaultQueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to append document record: %w", err)
	}

	return nil
}

// buildObjectPath returns the deterministic blob path for an owner's
// document.
func buildObjectPath(ownerID string, facility bool, subfolder, fileName string) string {
	if facility {
		return fmt.Sprintf("documents/facilities/%s/%s/%s", ownerID, subfolder, fileName)
	}
	return fmt.Sprintf("documents/%s/%s/%s", ownerID, subfolder, fileName)
}

// normalizeFileName lowercases the base name, replaces every rune outside
// [a-z0-9] with '_' and appends a millisecond timestamp before the
// extension.
func normalizeFileName(original string, now time.Time) string {
	ext := strings.ToLower(path.Ext(original))
	base := strings.ToLower(strings.TrimSuffix(path.Base(original), path.Ext(original)))

	var b strings.Builder
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	return fmt.Sprintf("%s_%d%s", b.String(), now.UnixMilli(), ext)
}
