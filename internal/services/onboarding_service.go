package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/observability"
	"github.com/caremarket/onboarding-api/internal/utils"
)

// OnboardingService drives the stepped onboarding flow: forward and back
// transitions, the phone sub-machine inside step 3, and completion side
// effects. A user holds one progress document per track, keyed by
// (user_id, track); progress is persisted after every forward transition.
type OnboardingService struct {
	database *mongo.Database
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewOnboardingService creates the service.
func NewOnboardingService(database *mongo.Database) *OnboardingService {
	return &OnboardingService{
		database: database,
		logger:   logging.Logger.With(zap.String("service", "onboarding")),
		now:      time.Now,
	}
}

// GetProgress loads the user's progress for one track with a soft timeout.
// A store timeout falls back to a fresh default progress so the client can
// render step 1 instead of an error; the fallback is not persisted. A phone
// already verified at the account level puts the sub-machine directly in
// the verified state.
func (s *OnboardingService) GetProgress(ctx context.Context, userID, track string) (*models.OnboardingProgress, error) {
	loadCtx, cancel := context.WithTimeout(ctx, config.AppConfig.ProgressLoadTimeout)
	defer cancel()

	var progress models.OnboardingProgress
	err := s.progressCollection().FindOne(loadCtx, bson.M{"user_id": userID, "track": track}).Decode(&progress)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			fresh := models.NewOnboardingProgress(userID, track)
			s.applyAccountPhone(ctx, fresh)
			return fresh, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("progress load timed out, serving default progress",
				zap.String("user_id", userID),
				zap.String("track", track))
			return models.NewOnboardingProgress(userID, track), nil
		}
		return nil, fmt.Errorf("failed to load onboarding progress: %w", err)
	}

	s.applyAccountPhone(ctx, &progress)
	return &progress, nil
}

// applyAccountPhone skips the phone step when the user's number was already
// verified on a previous run. Best-effort: a store error leaves the
// sub-machine where it was.
func (s *OnboardingService) applyAccountPhone(ctx context.Context, progress *models.OnboardingProgress) {
	if progress.PhonePhase == models.PhaseVerified {
		return
	}

	var account models.AccountPhone
	err := s.accountPhoneCollection().FindOne(ctx, bson.M{"user_id": progress.UserID}).Decode(&account)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			s.logger.Warn("failed to load account phone record",
				zap.String("user_id", progress.UserID),
				zap.Error(err))
		}
		return
	}

	progress.PhonePhase = models.PhaseVerified
	progress.PhoneNumber = account.PhoneNumber
}

// Advance performs one forward transition. Completed flows short-circuit
// unless restart is requested. A step failure leaves the persisted
// progress untouched.
func (s *OnboardingService) Advance(ctx context.Context, userID, track string, req models.OnboardingAdvanceRequest) (*models.OnboardingProgress, error) {
	ctx, span := utils.TraceBusinessLogic(ctx, "onboarding_advance")
	defer span.End()

	progress, err := s.GetProgress(ctx, userID, track)
	if err != nil {
		return nil, err
	}

	if progress.Completed {
		if !req.Restart {
			return nil, models.ErrOnboardingCompleted
		}
		restarted := models.NewOnboardingProgress(userID, track)
		restarted.ID = progress.ID
		restarted.Version = progress.Version
		s.applyAccountPhone(ctx, restarted)
		if err := utils.InvalidateUserCache(ctx, userID); err != nil {
			s.logger.Warn("failed to invalidate caches on restart",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		progress = restarted
	}

	if err := s.applyStep(ctx, progress, req); err != nil {
		return nil, err
	}

	maxStep := models.MaxStepForRole(progress.Role)
	if progress.BelongsToFacility && progress.Role == models.RoleWorker {
		// Workers employed by an existing facility stop after legal
		// consent; a restricted profile is written on completion.
		maxStep = 2
	}

	if progress.Step >= maxStep {
		now := s.now()
		progress.Completed = true
		progress.CompletedAt = &now
	} else {
		progress.Step++
	}

	progress.UpdatedAt = s.now()
	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}

	// Profile synthesis runs only after the completed progress is durable,
	// so a retried request never repeats the transition.
	if progress.Completed {
		if err := s.runCompletionEffects(ctx, progress); err != nil {
			return nil, err
		}
	}

	observability.OnboardingTransitions.WithLabelValues(progress.Role, "forward").Inc()
	s.logger.Info("onboarding advanced",
		zap.String("user_id", userID),
		zap.String("track", track),
		zap.String("role", progress.Role),
		zap.Int("step", progress.Step),
		zap.Bool("completed", progress.Completed))

	return progress, nil
}

// applyStep validates and applies the per-step payload before the step
// counter moves.
func (s *OnboardingService) applyStep(ctx context.Context, progress *models.OnboardingProgress, req models.OnboardingAdvanceRequest) error {
	switch progress.Step {
	case 1:
		if result := utils.ValidateRole(req.Role); !result.IsValid {
			return fmt.Errorf("%w: %q", models.ErrInvalidRole, req.Role)
		}
		if models.TrackForRole(req.Role) != progress.Track {
			return fmt.Errorf("%w: role %q does not run on track %q", models.ErrInvalidRole, req.Role, progress.Track)
		}
		progress.Role = req.Role
		progress.DisplayName = utils.SanitizeString(req.DisplayName)
		progress.BelongsToFacility = req.BelongsToFacility
		progress.FacilityID = strings.TrimSpace(req.FacilityID)
		progress.Bypass = config.AppConfig.VerificationBypass
	case 2:
		if !req.LegalConfirmed {
			return fmt.Errorf("%w: legal confirmation required", models.ErrStepNotAllowed)
		}
		progress.LegalConfirmed = true
	case 3:
		if progress.Role == models.RoleChain {
			// Chains leave a contact number instead of running the
			// phone sub-machine.
			if result := utils.ValidateChainContact(req.ChainPhonePrefix, req.ChainPhoneNumber); !result.IsValid {
				return fmt.Errorf("%w: invalid chain contact number", models.ErrStepNotAllowed)
			}
			progress.ChainPhonePrefix = strings.TrimSpace(req.ChainPhonePrefix)
			progress.ChainPhoneNumber = strings.ReplaceAll(req.ChainPhoneNumber, " ", "")
			return nil
		}
		if progress.PhonePhase != models.PhaseVerified {
			return fmt.Errorf("%w: phone not verified", models.ErrStepNotAllowed)
		}
	case 4:
		if progress.Bypass {
			return nil
		}
		verified, err := s.trackVerified(ctx, progress)
		if err != nil {
			return err
		}
		if !verified {
			return fmt.Errorf("%w: credential verification incomplete", models.ErrStepNotAllowed)
		}
	case 5:
		if progress.Bypass {
			return nil
		}
		certified, err := s.facilityHasDocument(ctx, progress.UserID, models.DocumentTypeGLNCertificate)
		if err != nil {
			return err
		}
		if !certified {
			return fmt.Errorf("%w: GLN certificate missing", models.ErrStepNotAllowed)
		}
	default:
		return fmt.Errorf("%w: step %d", models.ErrInvalidStep, progress.Step)
	}
	return nil
}

// trackVerified reports whether the stored profile for the progress's track
// carries a verified status.
func (s *OnboardingService) trackVerified(ctx context.Context, progress *models.OnboardingProgress) (bool, error) {
	if progress.Track == models.TrackProfessional {
		var profile models.ProfessionalProfile
		err := s.database.Collection(config.AppConfig.ProfessionalCollection).
			FindOne(ctx, bson.M{"user_id": progress.UserID}).Decode(&profile)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return false, nil
			}
			return false, fmt.Errorf("failed to load professional profile: %w", err)
		}
		return profile.VerificationStatus == models.StatusVerified, nil
	}

	var facility models.FacilityProfile
	err := s.database.Collection(config.AppConfig.FacilityCollection).
		FindOne(ctx, bson.M{"owner_id": progress.UserID}).Decode(&facility)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, fmt.Errorf("failed to load facility profile: %w", err)
	}
	return facility.VerificationStatus == models.StatusVerified, nil
}

// facilityHasDocument reports whether the owner's facility profile carries a
// document of the given type.
func (s *OnboardingService) facilityHasDocument(ctx context.Context, ownerID, documentType string) (bool, error) {
	var facility models.FacilityProfile
	err := s.database.Collection(config.AppConfig.FacilityCollection).
		FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&facility)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, fmt.Errorf("failed to load facility profile: %w", err)
	}
	for _, doc := range facility.Documents {
		if doc.Type == documentType {
			return true, nil
		}
	}
	return false, nil
}

// Back performs one backward transition. Going back from step 4 with a
// verified phone lands on step 3 in the verified sub-state so the client
// does not re-run phone verification.
func (s *OnboardingService) Back(ctx context.Context, userID, track string) (*models.OnboardingProgress, error) {
	progress, err := s.GetProgress(ctx, userID, track)
	if err != nil {
		return nil, err
	}

	if progress.Completed {
		return nil, models.ErrOnboardingCompleted
	}
	if progress.Step <= 1 {
		return progress, nil
	}

	progress.Step--
	if progress.Step == 3 && progress.PhonePhase != models.PhaseVerified {
		progress.PhonePhase = models.PhaseEnterNumber
	}

	progress.UpdatedAt = s.now()
	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}

	observability.OnboardingTransitions.WithLabelValues(progress.Role, "back").Inc()
	return progress, nil
}

// StartPhoneVerification normalizes the number, issues a code and moves
// the sub-machine to enterCode.
func (s *OnboardingService) StartPhoneVerification(ctx context.Context, userID, track, phone string) (*models.OnboardingProgress, error) {
	ctx, span := utils.TraceBusinessLogic(ctx, "phone_verification_start")
	defer span.End()

	progress, err := s.GetProgress(ctx, userID, track)
	if err != nil {
		return nil, err
	}
	if progress.Completed {
		return nil, models.ErrOnboardingCompleted
	}

	normalized, err := utils.NormalizePhoneNumber(phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPhoneNumber, err)
	}

	code := utils.GenerateVerificationCode()
	expiresAt := s.now().Add(config.AppConfig.PhoneVerificationTTL)

	// Replace any pending code for this user before issuing a new one.
	if _, err := s.phoneCollection().DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		s.logger.Warn("failed to drop pending verification codes",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	if err := utils.CreatePhoneVerification(ctx, userID, normalized, code, expiresAt); err != nil {
		return nil, err
	}

	progress.PhoneNumber = normalized
	progress.PhonePhase = models.PhaseEnterCode
	progress.UpdatedAt = s.now()
	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}

	s.logger.Info("phone verification started",
		zap.String("user_id", userID),
		zap.String("phone", utils.MaskPhoneNumber(normalized)))

	return progress, nil
}

// ConfirmPhoneCode checks the submitted code. Codes expire after the
// configured TTL and allow at most MaxVerificationAttempts tries. A
// successful confirmation is also recorded at the account level so later
// runs skip the phone step.
func (s *OnboardingService) ConfirmPhoneCode(ctx context.Context, userID, track, code string) (*models.OnboardingProgress, error) {
	ctx, span := utils.TraceBusinessLogic(ctx, "phone_verification_confirm")
	defer span.End()

	progress, err := s.GetProgress(ctx, userID, track)
	if err != nil {
		return nil, err
	}
	if progress.PhonePhase != models.PhaseEnterCode {
		return nil, fmt.Errorf("%w: no code pending", models.ErrVerificationCodeInvalid)
	}

	var verification models.PhoneVerification
	err = s.phoneCollection().FindOne(ctx, bson.M{"user_id": userID}).Decode(&verification)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrVerificationCodeInvalid
		}
		return nil, fmt.Errorf("failed to load verification code: %w", err)
	}

	if s.now().After(verification.ExpiresAt) {
		_, _ = s.phoneCollection().DeleteOne(ctx, bson.M{"_id": verification.ID})
		return nil, models.ErrVerificationCodeInvalid
	}

	if verification.Attempts >= models.MaxVerificationAttempts {
		return nil, models.ErrTooManyVerificationTries
	}

	if verification.Code != code {
		_, err := s.phoneCollection().UpdateOne(ctx,
			bson.M{"_id": verification.ID},
			bson.M{"$inc": bson.M{"attempts": 1}})
		if err != nil {
			s.logger.Warn("failed to count verification attempt",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		if verification.Attempts+1 >= models.MaxVerificationAttempts {
			return nil, models.ErrTooManyVerificationTries
		}
		return nil, models.ErrVerificationCodeInvalid
	}

	_, _ = s.phoneCollection().DeleteOne(ctx, bson.M{"_id": verification.ID})

	if err := s.recordAccountPhone(ctx, userID, verification.PhoneNumber); err != nil {
		s.logger.Warn("failed to record account-level phone verification",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	progress.PhonePhase = models.PhaseVerified
	progress.UpdatedAt = s.now()
	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}

	s.logger.Info("phone verified",
		zap.String("user_id", userID),
		zap.String("phone", utils.MaskPhoneNumber(progress.PhoneNumber)))

	return progress, nil
}

// recordAccountPhone upserts the verified number on the user's account.
func (s *OnboardingService) recordAccountPhone(ctx context.Context, userID, phoneNumber string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"phone_number": phoneNumber,
			"verified_at":  s.now(),
		},
		"$setOnInsert": bson.M{"user_id": userID},
	}
	_, err := utils.UpsertOneWithTimeout(ctx, s.accountPhoneCollection(), filter, update, utils.DefaultQueryTimeout)
	return err
}

// runCompletionEffects creates the durable profile the completed flow
// implies. Workers get a minimal professional profile (restricted when they
// joined through the facility-employee shortcut); companies and chains get
// a minimal facility profile with the completing user as admin. Existing
// profiles from the verification pipeline are left untouched.
func (s *OnboardingService) runCompletionEffects(ctx context.Context, progress *models.OnboardingProgress) error {
	now := s.now()

	if progress.Role == models.RoleWorker {
		accessLevel := models.AccessLevelFull
		if progress.BelongsToFacility {
			accessLevel = models.AccessLevelRestricted
		}

		collection := s.database.Collection(config.AppConfig.ProfessionalCollection)
		filter := bson.M{"user_id": progress.UserID}
		update := bson.M{
			"$setOnInsert": bson.M{
				"user_id":             progress.UserID,
				"phone":               progress.PhoneNumber,
				"verification_status": models.StatusNotVerified,
				"access_level":        accessLevel,
				"facility_id":         progress.FacilityID,
				"created_at":          now,
			},
			"$set": bson.M{"updated_at": now},
		}
		opts := options.Update().SetUpsert(true)
		if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
			return fmt.Errorf("failed to synthesize professional profile: %w", err)
		}

		s.logger.Info("professional profile synthesized on completion",
			zap.String("user_id", progress.UserID),
			zap.String("access_level", accessLevel))
		return nil
	}

	collection := s.database.Collection(config.AppConfig.FacilityCollection)
	filter := bson.M{"owner_id": progress.UserID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"owner_id":            progress.UserID,
			"name":                progress.DisplayName,
			"verification_status": models.StatusNotVerified,
			"commercial_status":   models.StatusNotVerified,
			"employees": []models.FacilityEmployee{
				{UserID: progress.UserID, Roles: []string{"admin"}},
			},
			"created_at": now,
		},
		"$set": bson.M{"updated_at": now},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to synthesize facility profile: %w", err)
	}

	s.logger.Info("facility profile synthesized on completion",
		zap.String("user_id", progress.UserID))

	return nil
}

// saveProgress persists the progress document keyed by (user_id, track).
// Documents loaded from the store carry a version and are written with a
// compare-and-swap on it; a lost race surfaces as ErrProgressConflict. A
// fresh document is upserted at version 1.
func (s *OnboardingService) saveProgress(ctx context.Context, progress *models.OnboardingProgress) error {
	fields := bson.M{
		"role":                progress.Role,
		"display_name":        progress.DisplayName,
		"step":                progress.Step,
		"phone_phase":         progress.PhonePhase,
		"phone_number":        progress.PhoneNumber,
		"legal_confirmed":     progress.LegalConfirmed,
		"belongs_to_facility": progress.BelongsToFacility,
		"facility_id":         progress.FacilityID,
		"chain_phone_prefix":  progress.ChainPhonePrefix,
		"chain_phone_number":  progress.ChainPhoneNumber,
		"bypass":              progress.Bypass,
		"completed":           progress.Completed,
		"completed_at":        progress.CompletedAt,
		"warnings":            progress.Warnings,
		"updated_at":          progress.UpdatedAt,
	}

	if progress.Version > 0 {
		result, err := utils.UpdateProgressWithOptimisticLock(ctx, progress.UserID, progress.Track,
			bson.M{"$set": fields}, progress.Version)
		if err != nil {
			var conflict utils.OptimisticLockError
			if errors.As(err, &conflict) {
				return fmt.Errorf("%w: %v", models.ErrProgressConflict, err)
			}
			return fmt.Errorf("failed to persist onboarding progress: %w", err)
		}
		progress.Version = result.Version
		return nil
	}

	filter := bson.M{"user_id": progress.UserID, "track": progress.Track}
	update := bson.M{
		"$set": fields,
		"$setOnInsert": bson.M{
			"created_at": progress.CreatedAt,
			"version":    int32(1),
		},
	}
	_, err := utils.UpsertOneWithTimeout(ctx, s.progressCollection(), filter, update, utils.DefaultQueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to persist onboarding progress: %w", err)
	}
	progress.Version = 1
	return nil
}

func (s *OnboardingService) progressCollection() *mongo.Collection {
	return s.database.Collection(config.AppConfig.ProgressCollection)
}

func (s *OnboardingService) phoneCollection() *mongo.Collection {
	return s.database.Collection(config.AppConfig.PhoneVerificationCollection)
}

func (s *OnboardingService) accountPhoneCollection() *mongo.Collection {
	return s.database.Collection(config.AppConfig.AccountPhoneCollection)
}
