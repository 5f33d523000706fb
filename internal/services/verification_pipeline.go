package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/observability"
	"github.com/caremarket/onboarding-api/internal/storage"
	"github.com/caremarket/onboarding-api/internal/utils"
)

// Pipeline stages, in execution order. The audit record carries the stage
// the attempt reached.
const (
	StageValidation = "validation"
	StageUpload     = "upload"
	StageExtraction = "extraction"
	StageRegistry   = "registry"
	StageMatching   = "matching"
	StageExpiry     = "expiry"
	StageMerge      = "merge"
	StageDone       = "done"
)

// DocumentInput is one document handed to the pipeline for upload and
// extraction.
type DocumentInput struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// ProfessionalVerificationInput drives VerifyProfessional. Billing is
// optional; when present its upload and extraction run concurrently with
// the identity leg.
type ProfessionalVerificationInput struct {
	UserID   string
	Token    string
	GLN      string
	Bypass   bool
	Identity *DocumentInput
	Billing  *DocumentInput
}

// FacilityVerificationInput drives VerifyFacility. ResponsibleName is the
// person extracted from the facility's paperwork; it must match one of the
// registry's responsible persons.
type FacilityVerificationInput struct {
	OwnerID         string
	GLN             string
	ResponsibleName string
	Bypass          bool
}

// ChainVerificationInput drives VerifyChain.
type ChainVerificationInput struct {
	OwnerID string
	UID     string
	Bypass  bool
}

// VerificationResult is what the pipeline returns for one attempt.
type VerificationResult struct {
	Status     string                 `json:"status"`
	Track      string                 `json:"track"`
	Identifier string                 `json:"identifier"`
	Stage      string                 `json:"stage"`
	Warnings   []string               `json:"warnings,omitempty"`
	Expiry     models.ExpiryCheck     `json:"expiry,omitempty"`
	Registry   *models.RegistryRecord `json:"registry,omitempty"`
}

// VerificationPipeline orchestrates the verification stages for the
// professional and facility tracks. Concurrent attempts for the same
// (user, track) are rejected via a Redis lock.
type VerificationPipeline struct {
	uploads   *UploadService
	extractor *ExtractionClient
	cache     *ExtractionCache
	registry  *RegistryService
	matcher   *IdentityMatcher
	expiry    *ExpiryPolicy
	merge     *MergeEngine
	database  *mongo.Database
	logger    *logging.SafeLogger
	now       func() time.Time
}

// NewVerificationPipeline wires the pipeline and its stage services.
func NewVerificationPipeline(database *mongo.Database, blobs storage.BlobStore, cfg *config.Config) *VerificationPipeline {
	return &VerificationPipeline{
		uploads:   NewUploadService(blobs, database),
		extractor: NewExtractionClient(cfg),
		cache:     NewExtractionCache(database, cfg.ExtractionCacheTTL),
		registry:  NewRegistryService(cfg),
		matcher:   NewIdentityMatcher(),
		expiry:    NewExpiryPolicy(cfg.ExpiryWarningDays),
		merge:     NewMergeEngine(database, DefaultOptionSets()),
		database:  database,
		logger:    logging.Logger.With(zap.String("service", "verification_pipeline")),
		now:       time.Now,
	}
}

// VerifyProfessional runs the worker track: upload and extract the identity
// document (and billing document, concurrently, when provided), look the
// GLN up in the professional registries, match the extracted identity
// against the registry record, apply the expiry policy and merge the
// verified data into the profile.
func (p *VerificationPipeline) VerifyProfessional(ctx context.Context, in ProfessionalVerificationInput) (*VerificationResult, error) {
	ctx, span := utils.TraceBusinessLogic(ctx, "verify_professional")
	defer span.End()

	monitor := utils.NewPerformanceMonitor(ctx, "verify_professional")
	defer monitor.End()

	result := &VerificationResult{
		Status:     models.StatusNotVerified,
		Track:      models.TrackProfessional,
		Identifier: in.GLN,
		Stage:      StageValidation,
	}

	if p.storedStatus(ctx, config.AppConfig.ProfessionalCollection, "user_id", in.UserID, "verification_status") == models.StatusVerified {
		result.Status = models.StatusVerified
		result.Stage = StageDone
		observability.VerificationAttempts.WithLabelValues(models.TrackProfessional, StageDone, "already_verified").Inc()
		return result, nil
	}

	release, err := p.acquireLock(ctx, in.UserID, models.TrackProfessional)
	if err != nil {
		return nil, err
	}
	defer release()

	if !utils.ValidateGLN(in.GLN) {
		return p.fail(ctx, in.UserID, result, fmt.Errorf("%w: invalid GLN %q", models.ErrValidation, observability.MaskIdentifier(in.GLN)))
	}
	if in.Identity == nil {
		return p.fail(ctx, in.UserID, result, fmt.Errorf("%w: identity document is required", models.ErrValidation))
	}
	monitor.Checkpoint("validated")

	result.Stage = StageUpload

	// Each leg owns its own slot; warnings are folded in after Wait so the
	// goroutines never touch shared state.
	var (
		identityData models.ExtractedData
		billingData  *models.ExtractedData
		record       *models.RegistryRecord
		billingWarn  string
		registryWarn string
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		data, err := p.uploadAndExtract(groupCtx, in.UserID, in.Token, models.DocumentTypeIdentity, in.Identity)
		if err != nil {
			return err
		}
		identityData = *data
		return nil
	})
	if in.Billing != nil {
		group.Go(func() error {
			data, err := p.uploadAndExtract(groupCtx, in.UserID, in.Token, models.DocumentTypeBilling, in.Billing)
			if err != nil {
				if in.Bypass {
					billingWarn = fmt.Sprintf("billing document skipped: %v", err)
					return nil
				}
				return err
			}
			billingData = data
			return nil
		})
	}
	group.Go(func() error {
		rec, err := p.registry.LookupProfessional(groupCtx, in.GLN)
		if err != nil {
			if in.Bypass {
				registryWarn = fmt.Sprintf("registry lookup skipped: %v", err)
				return nil
			}
			return err
		}
		record = rec
		return nil
	})
	if err := group.Wait(); err != nil {
		result.Stage = stageForError(err)
		return p.fail(ctx, in.UserID, result, err)
	}
	if billingWarn != "" {
		result.Warnings = append(result.Warnings, billingWarn)
	}
	if registryWarn != "" {
		result.Warnings = append(result.Warnings, registryWarn)
	}
	monitor.Checkpoint("documents_and_registry")

	result.Registry = record

	result.Stage = StageMatching
	if record != nil {
		if err := p.matcher.MatchPerson(identityData, *record); err != nil {
			if !in.Bypass {
				return p.fail(ctx, in.UserID, result, err)
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("identity match skipped: %v", err))
		}
	}
	monitor.Checkpoint("matched")

	result.Stage = StageExpiry
	check, err := p.expiry.Check(identityData.ExpiryDate)
	result.Expiry = check
	if err != nil {
		if !in.Bypass {
			return p.fail(ctx, in.UserID, result, err)
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("expiry check skipped: %v", err))
	}
	if check.ExpiringSoon {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("identity document expires in %d days", check.DaysUntilExpiry))
	}
	monitor.Checkpoint("expiry_checked")

	result.Stage = StageMerge
	merged := identityData
	if billingData != nil {
		if merged.IBAN == "" {
			merged.IBAN = billingData.IBAN
		}
		if merged.BankName == "" {
			merged.BankName = billingData.BankName
		}
		if merged.AccountHolder == "" {
			merged.AccountHolder = billingData.AccountHolder
		}
	}
	if err := p.merge.MergeProfessional(ctx, in.UserID, record, &merged); err != nil {
		return p.fail(ctx, in.UserID, result, err)
	}
	monitor.Checkpoint("merged")

	if err := p.markVerified(ctx, config.AppConfig.ProfessionalCollection, "user_id", in.UserID, "verification_status"); err != nil {
		return p.fail(ctx, in.UserID, result, err)
	}

	result.Status = models.StatusVerified
	result.Stage = StageDone
	p.recordAttempt(ctx, in.UserID, result, "verified")
	p.logger.Info("professional verified",
		zap.String("user_id", in.UserID),
		zap.String("gln", observability.MaskIdentifier(in.GLN)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

// VerifyFacility runs the facility track: company search and details by
// GLN, responsible-person match, merge into the facility profile.
func (p *VerificationPipeline) VerifyFacility(ctx context.Context, in FacilityVerificationInput) (*VerificationResult, error) {
	ctx, span := utils.TraceBusinessLogic(ctx, "verify_facility")
	defer span.End()

	monitor := utils.NewPerformanceMonitor(ctx, "verify_facility")
	defer monitor.End()

	result := &VerificationResult{
		Status:     models.StatusNotVerified,
		Track:      models.TrackFacility,
		Identifier: in.GLN,
		Stage:      StageValidation,
	}

	if p.storedStatus(ctx, config.AppConfig.FacilityCollection, "owner_id", in.OwnerID, "verification_status") == models.StatusVerified {
		result.Status = models.StatusVerified
		result.Stage = StageDone
		observability.VerificationAttempts.WithLabelValues(models.TrackFacility, StageDone, "already_verified").Inc()
		return result, nil
	}

	release, err := p.acquireLock(ctx, in.OwnerID, models.TrackFacility)
	if err != nil {
		return nil, err
	}
	defer release()

	if !utils.ValidateGLN(in.GLN) {
		return p.fail(ctx, in.OwnerID, result, fmt.Errorf("%w: invalid GLN %q", models.ErrValidation, observability.MaskIdentifier(in.GLN)))
	}
	monitor.Checkpoint("validated")

	result.Stage = StageRegistry
	record, err := p.registry.LookupCompany(ctx, in.GLN)
	if err != nil {
		if !in.Bypass {
			return p.fail(ctx, in.OwnerID, result, err)
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("registry lookup skipped: %v", err))
	}
	monitor.Checkpoint("registry")

	result.Registry = record

	result.Stage = StageMatching
	if record != nil && in.ResponsibleName != "" {
		if err := p.matcher.MatchResponsiblePerson(in.ResponsibleName, *record); err != nil {
			if !in.Bypass {
				return p.fail(ctx, in.OwnerID, result, err)
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("responsible-person match skipped: %v", err))
		}
	}
	monitor.Checkpoint("matched")

	result.Stage = StageMerge
	if err := p.merge.MergeFacility(ctx, in.OwnerID, record); err != nil {
		return p.fail(ctx, in.OwnerID, result, err)
	}
	if err := p.markVerified(ctx, config.AppConfig.FacilityCollection, "owner_id", in.OwnerID, "verification_status"); err != nil {
		return p.fail(ctx, in.OwnerID, result, err)
	}
	monitor.Checkpoint("merged")

	result.Status = models.StatusVerified
	result.Stage = StageDone
	p.recordAttempt(ctx, in.OwnerID, result, "verified")
	p.logger.Info("facility verified",
		zap.String("owner_id", in.OwnerID),
		zap.String("gln", observability.MaskIdentifier(in.GLN)))
	return result, nil
}

// VerifyChain runs the chain track: UID normalization and validation,
// commercial registry lookup, merge. The outcome lands on the facility
// profile's commercial status.
func (p *VerificationPipeline) VerifyChain(ctx context.Context, in ChainVerificationInput) (*VerificationResult, error) {
	ctx, span := utils.TraceBusinessLogic(ctx, "verify_chain")
	defer span.End()

	monitor := utils.NewPerformanceMonitor(ctx, "verify_chain")
	defer monitor.End()

	uid := utils.NormalizeUID(in.UID)
	result := &VerificationResult{
		Status:     models.StatusNotVerified,
		Track:      models.TrackFacility,
		Identifier: uid,
		Stage:      StageValidation,
	}

	if p.storedStatus(ctx, config.AppConfig.FacilityCollection, "owner_id", in.OwnerID, "commercial_status") == models.StatusVerified {
		result.Status = models.StatusVerified
		result.Stage = StageDone
		observability.VerificationAttempts.WithLabelValues(models.TrackFacility, StageDone, "already_verified").Inc()
		return result, nil
	}

	release, err := p.acquireLock(ctx, in.OwnerID, models.TrackFacility)
	if err != nil {
		return nil, err
	}
	defer release()

	if !utils.ValidateUID(uid) {
		return p.fail(ctx, in.OwnerID, result, fmt.Errorf("%w: invalid UID %q", models.ErrValidation, in.UID))
	}
	monitor.Checkpoint("validated")

	result.Stage = StageRegistry
	record, err := p.registry.LookupCommercial(ctx, uid)
	if err != nil {
		if !in.Bypass {
			return p.fail(ctx, in.OwnerID, result, err)
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("commercial registry skipped: %v", err))
	}
	monitor.Checkpoint("registry")

	result.Registry = record

	result.Stage = StageMerge
	if err := p.merge.MergeFacility(ctx, in.OwnerID, record); err != nil {
		return p.fail(ctx, in.OwnerID, result, err)
	}
	if err := p.markVerified(ctx, config.AppConfig.FacilityCollection, "owner_id", in.OwnerID, "commercial_status"); err != nil {
		return p.fail(ctx, in.OwnerID, result, err)
	}
	monitor.Checkpoint("merged")

	result.Status = models.StatusVerified
	result.Stage = StageDone
	p.recordAttempt(ctx, in.OwnerID, result, "verified")
	p.logger.Info("chain verified",
		zap.String("owner_id", in.OwnerID),
		zap.String("uid", uid))
	return result, nil
}

// uploadAndExtract runs one document leg: blob upload, then a fresh
// extraction of the uploaded file. The cache is write-only here; a freshly
// uploaded document must never be answered from an earlier document's
// extraction. Cached entries serve the autofill reads only.
func (p *VerificationPipeline) uploadAndExtract(ctx context.Context, userID, token, documentType string, doc *DocumentInput) (*models.ExtractedData, error) {
	record, err := p.uploads.Upload(ctx, UploadInput{
		OwnerID:      userID,
		DocumentType: documentType,
		Subfolder:    documentType,
		FileName:     doc.FileName,
		ContentType:  doc.ContentType,
		Content:      doc.Content,
	}, nil)
	if err != nil {
		return nil, err
	}

	extraction, err := p.extractor.Extract(ctx, token, documentType, record.URL)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, userID, documentType, *extraction); err != nil {
		p.logger.Warn("failed to cache extraction result",
			zap.String("user_id", userID),
			zap.String("document_type", documentType),
			zap.Error(err))
	}
	return &extraction.Data, nil
}

// acquireLock takes the per-(user, track) verification lock. The returned
// release func must be called when the attempt finishes; the TTL bounds the
// lock if the process dies mid-attempt.
func (p *VerificationPipeline) acquireLock(ctx context.Context, userID, track string) (func(), error) {
	key := fmt.Sprintf("verify:lock:%s:%s", userID, track)
	ok, err := config.Redis.SetNX(ctx, key, "1", config.AppConfig.VerificationLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire verification lock: %w", err)
	}
	if !ok {
		observability.VerificationAttempts.WithLabelValues(track, StageValidation, "locked").Inc()
		return nil, models.ErrVerificationInProgress
	}
	return func() {
		if err := config.Redis.Del(context.Background(), key).Err(); err != nil {
			p.logger.Warn("failed to release verification lock",
				zap.String("key", key),
				zap.Error(err))
		}
	}, nil
}

// fail records the failed attempt and returns err. The stored track status
// is left untouched so a later attempt starts from the same state.
func (p *VerificationPipeline) fail(ctx context.Context, userID string, result *VerificationResult, err error) (*VerificationResult, error) {
	result.Status = models.StatusFailed
	p.recordAttempt(ctx, userID, result, "failed")
	p.logger.Warn("verification failed",
		zap.String("user_id", userID),
		zap.String("track", result.Track),
		zap.String("stage", result.Stage),
		zap.Error(err))
	return nil, err
}

// recordAttempt writes the audit record and bumps the attempt counter.
// Audit write failures are logged, never surfaced.
func (p *VerificationPipeline) recordAttempt(ctx context.Context, userID string, result *VerificationResult, outcome string) {
	observability.VerificationAttempts.WithLabelValues(result.Track, result.Stage, outcome).Inc()

	audit := models.VerificationAudit{
		UserID:     userID,
		Track:      result.Track,
		Identifier: result.Identifier,
		Outcome:    outcome,
		Stage:      result.Stage,
		Warnings:   result.Warnings,
		CreatedAt:  p.now(),
	}
	collection := p.database.Collection(config.AppConfig.VerificationAuditCollection)
	if _, err := collection.InsertOne(ctx, audit); err != nil {
		p.logger.Warn("failed to write verification audit record",
			zap.String("user_id", userID),
			zap.String("track", result.Track),
			zap.Error(err))
	}
}

// storedStatus reads a status field off a profile. Missing profile or a
// read error both read as empty; the pipeline then runs normally.
func (p *VerificationPipeline) storedStatus(ctx context.Context, collectionName, keyField, id, statusField string) string {
	var doc bson.M
	err := p.database.Collection(collectionName).FindOne(ctx,
		bson.M{keyField: id},
		options.FindOne().SetProjection(bson.M{statusField: 1}),
	).Decode(&doc)
	if err != nil {
		return ""
	}
	status, _ := doc[statusField].(string)
	return status
}

// markVerified upserts the track's status field to verified.
func (p *VerificationPipeline) markVerified(ctx context.Context, collectionName, keyField, id, statusField string) error {
	now := p.now()
	update := bson.M{
		"$set":         bson.M{statusField: models.StatusVerified, "updated_at": now},
		"$setOnInsert": bson.M{keyField: id, "created_at": now},
	}
	_, err := p.database.Collection(collectionName).UpdateOne(ctx,
		bson.M{keyField: id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to persist verification status: %w", err)
	}
	return nil
}

// stageForError maps a concurrent-leg failure back to the stage it came
// from for the audit record.
func stageForError(err error) string {
	switch {
	case errors.Is(err, models.ErrUploadFailed):
		return StageUpload
	case errors.Is(err, models.ErrExtractionFailed):
		return StageExtraction
	case errors.Is(err, models.ErrNoRecordFound):
		return StageRegistry
	default:
		return StageExtraction
	}
}
