package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
)

// setupOnboardingTest connects to MongoDB and configures the onboarding
// collections. SMS delivery is disabled by leaving the gateway URL empty.
func setupOnboardingTest(t *testing.T) (*OnboardingService, func()) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping onboarding tests: MONGODB_URI not set")
	}

	_ = logging.InitLogger()

	if config.AppConfig == nil {
		config.AppConfig = &config.Config{}
	}
	config.AppConfig.ProgressCollection = "test_onboarding_progress"
	config.AppConfig.ProfessionalCollection = "test_onboarding_professionals"
	config.AppConfig.FacilityCollection = "test_onboarding_facilities"
	config.AppConfig.PhoneVerificationCollection = "test_onboarding_phone_codes"
	config.AppConfig.AccountPhoneCollection = "test_onboarding_account_phones"
	config.AppConfig.ProgressLoadTimeout = 3 * time.Second
	config.AppConfig.PhoneVerificationTTL = 5 * time.Minute
	config.AppConfig.SMSGatewayURL = ""
	config.AppConfig.VerificationBypass = false

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	require.NoError(t, err)
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("MongoDB not available: %v", err)
	}

	config.MongoDB = client.Database("onboarding_test_state_machine")
	for _, name := range []string{
		config.AppConfig.ProgressCollection,
		config.AppConfig.ProfessionalCollection,
		config.AppConfig.FacilityCollection,
		config.AppConfig.PhoneVerificationCollection,
		config.AppConfig.AccountPhoneCollection,
	} {
		_ = config.MongoDB.Collection(name).Drop(ctx)
	}

	service := NewOnboardingService(config.MongoDB)

	return service, func() {
		_ = config.MongoDB.Drop(ctx)
		_ = client.Disconnect(ctx)
	}
}

func verifyPhoneDirectly(t *testing.T, service *OnboardingService, userID, track string) {
	t.Helper()
	ctx := context.Background()

	_, err := service.StartPhoneVerification(ctx, userID, track, "+41 79 123 45 67")
	require.NoError(t, err)

	var stored models.PhoneVerification
	err = config.MongoDB.Collection(config.AppConfig.PhoneVerificationCollection).
		FindOne(ctx, bson.M{"user_id": userID}).Decode(&stored)
	require.NoError(t, err)

	_, err = service.ConfirmPhoneCode(ctx, userID, track, stored.Code)
	require.NoError(t, err)
}

func seedVerifiedProfessional(t *testing.T, userID string) {
	t.Helper()
	_, err := config.MongoDB.Collection(config.AppConfig.ProfessionalCollection).
		InsertOne(context.Background(), models.ProfessionalProfile{
			UserID:             userID,
			FirstName:          "Anna",
			LastName:           "Meier",
			VerificationStatus: models.StatusVerified,
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		})
	require.NoError(t, err)
}

func seedFacility(t *testing.T, ownerID, verificationStatus string, documents ...models.DocumentRecord) {
	t.Helper()
	_, err := config.MongoDB.Collection(config.AppConfig.FacilityCollection).
		InsertOne(context.Background(), models.FacilityProfile{
			OwnerID:            ownerID,
			Name:               "Spitex Zentrum AG",
			VerificationStatus: verificationStatus,
			Documents:          documents,
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		})
	require.NoError(t, err)
}

func TestGetProgress_DefaultsForNewUser(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	progress, err := service.GetProgress(context.Background(), "newuser", models.TrackProfessional)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Step)
	assert.Equal(t, models.TrackProfessional, progress.Track)
	assert.False(t, progress.Completed)
	assert.Equal(t, models.PhaseEnterNumber, progress.PhonePhase)
}

func TestGetProgress_TracksAreIndependent(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "dual1", models.TrackProfessional, models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)

	professional, err := service.GetProgress(ctx, "dual1", models.TrackProfessional)
	require.NoError(t, err)
	assert.Equal(t, 2, professional.Step)

	facility, err := service.GetProgress(ctx, "dual1", models.TrackFacility)
	require.NoError(t, err)
	assert.Equal(t, 1, facility.Step)
	assert.Empty(t, facility.Role)
}

func TestAdvance_Step1RequiresValidRole(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	_, err := service.Advance(context.Background(), "user1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: "superhero"})
	assert.ErrorIs(t, err, models.ErrInvalidRole)

	// The failed step must not have persisted anything beyond defaults.
	progress, err := service.GetProgress(context.Background(), "user1", models.TrackProfessional)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Step)
	assert.Empty(t, progress.Role)
}

func TestAdvance_Step1RoleMustMatchTrack(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "mixed1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleCompany})
	assert.ErrorIs(t, err, models.ErrInvalidRole)

	_, err = service.Advance(ctx, "mixed1", models.TrackFacility,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	assert.ErrorIs(t, err, models.ErrInvalidRole)
}

func TestAdvance_Step2RequiresLegalConfirmation(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "user2", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)

	_, err = service.Advance(ctx, "user2", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	assert.ErrorIs(t, err, models.ErrStepNotAllowed)

	progress, err := service.Advance(ctx, "user2", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Step)
}

func TestAdvance_Step3RequiresVerifiedPhone(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "user3", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "user3", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)

	_, err = service.Advance(ctx, "user3", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	assert.ErrorIs(t, err, models.ErrStepNotAllowed)

	verifyPhoneDirectly(t, service, "user3", models.TrackProfessional)

	progress, err := service.Advance(ctx, "user3", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, progress.Step)
}

func TestAdvance_Step4RequiresVerifiedCredentials(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "worker1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "worker1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "worker1", models.TrackProfessional)
	_, err = service.Advance(ctx, "worker1", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)

	// Without a verified professional profile the final step must not
	// complete onboarding.
	_, err = service.Advance(ctx, "worker1", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	assert.ErrorIs(t, err, models.ErrStepNotAllowed)

	progress, err := service.GetProgress(ctx, "worker1", models.TrackProfessional)
	require.NoError(t, err)
	assert.False(t, progress.Completed)
	assert.Equal(t, 4, progress.Step)

	seedVerifiedProfessional(t, "worker1")

	progress, err = service.Advance(ctx, "worker1", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	assert.True(t, progress.Completed)
	assert.NotNil(t, progress.CompletedAt)
}

func TestAdvance_BypassSkipsCredentialGate(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	config.AppConfig.VerificationBypass = true
	defer func() { config.AppConfig.VerificationBypass = false }()

	ctx := context.Background()
	_, err := service.Advance(ctx, "bypass1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "bypass1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "bypass1", models.TrackProfessional)
	_, err = service.Advance(ctx, "bypass1", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)

	progress, err := service.Advance(ctx, "bypass1", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	assert.True(t, progress.Completed)
}

func TestWorkerCompletion_WritesProfessionalProfile(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	config.AppConfig.VerificationBypass = true
	defer func() { config.AppConfig.VerificationBypass = false }()

	ctx := context.Background()
	_, err := service.Advance(ctx, "worker2", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "worker2", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "worker2", models.TrackProfessional)
	_, err = service.Advance(ctx, "worker2", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	progress, err := service.Advance(ctx, "worker2", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	require.True(t, progress.Completed)

	var profile models.ProfessionalProfile
	err = config.MongoDB.Collection(config.AppConfig.ProfessionalCollection).
		FindOne(ctx, bson.M{"user_id": "worker2"}).Decode(&profile)
	require.NoError(t, err)
	assert.Equal(t, models.AccessLevelFull, profile.AccessLevel)
	assert.Equal(t, models.StatusNotVerified, profile.VerificationStatus)
	assert.NotEmpty(t, profile.Phone)
}

func TestAdvance_FacilityWorkerCompletesAfterConsent(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "joiner1", models.TrackProfessional, models.OnboardingAdvanceRequest{
		Role:              models.RoleWorker,
		BelongsToFacility: true,
		FacilityID:        "fac1",
	})
	require.NoError(t, err)

	// Facility employees stop after legal consent; no phone verification
	// and no credential verification run.
	progress, err := service.Advance(ctx, "joiner1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	assert.True(t, progress.Completed)

	var profile models.ProfessionalProfile
	err = config.MongoDB.Collection(config.AppConfig.ProfessionalCollection).
		FindOne(ctx, bson.M{"user_id": "joiner1"}).Decode(&profile)
	require.NoError(t, err)
	assert.Equal(t, models.AccessLevelRestricted, profile.AccessLevel)
	assert.Equal(t, "fac1", profile.FacilityID)
	assert.Equal(t, models.StatusNotVerified, profile.VerificationStatus)
}

func TestAdvance_ChainContactCompletesStep3(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "chain1", models.TrackFacility,
		models.OnboardingAdvanceRequest{Role: models.RoleChain, DisplayName: "Pflege Gruppe AG"})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "chain1", models.TrackFacility,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)

	// Chains submit a contact number; the phone sub-machine never runs.
	_, err = service.Advance(ctx, "chain1", models.TrackFacility, models.OnboardingAdvanceRequest{})
	assert.ErrorIs(t, err, models.ErrStepNotAllowed)

	progress, err := service.Advance(ctx, "chain1", models.TrackFacility, models.OnboardingAdvanceRequest{
		ChainPhonePrefix: "+41",
		ChainPhoneNumber: "79 123 45 67",
	})
	require.NoError(t, err)
	assert.True(t, progress.Completed)
	assert.Equal(t, "+41", progress.ChainPhonePrefix)
	assert.Equal(t, "791234567", progress.ChainPhoneNumber)

	var stored models.OnboardingProgress
	err = config.MongoDB.Collection(config.AppConfig.ProgressCollection).
		FindOne(ctx, bson.M{"user_id": "chain1", "track": models.TrackFacility}).Decode(&stored)
	require.NoError(t, err)
	assert.Equal(t, "+41", stored.ChainPhonePrefix)
	assert.Equal(t, "791234567", stored.ChainPhoneNumber)
}

func TestAdvance_CompanyStep4RequiresVerifiedFacility(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "company1", models.TrackFacility,
		models.OnboardingAdvanceRequest{Role: models.RoleCompany, DisplayName: "Spitex Zentrum AG"})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "company1", models.TrackFacility,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "company1", models.TrackFacility)
	_, err = service.Advance(ctx, "company1", models.TrackFacility, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)

	_, err = service.Advance(ctx, "company1", models.TrackFacility, models.OnboardingAdvanceRequest{})
	assert.ErrorIs(t, err, models.ErrStepNotAllowed)

	seedFacility(t, "company1", models.StatusVerified)

	progress, err := service.Advance(ctx, "company1", models.TrackFacility, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, progress.Step)

	// Step 5 requires the GLN certificate document.
	_, err = service.Advance(ctx, "company1", models.TrackFacility, models.OnboardingAdvanceRequest{})
	assert.ErrorIs(t, err, models.ErrStepNotAllowed)

	_, err = config.MongoDB.Collection(config.AppConfig.FacilityCollection).UpdateOne(ctx,
		bson.M{"owner_id": "company1"},
		bson.M{"$push": bson.M{"documents": models.DocumentRecord{
			Type:     models.DocumentTypeGLNCertificate,
			FileName: "gln.pdf",
		}}})
	require.NoError(t, err)

	progress, err = service.Advance(ctx, "company1", models.TrackFacility, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	assert.True(t, progress.Completed)
}

func TestAdvance_CompletedShortCircuits(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "chain2", models.TrackFacility,
		models.OnboardingAdvanceRequest{Role: models.RoleChain})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "chain2", models.TrackFacility,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	progress, err := service.Advance(ctx, "chain2", models.TrackFacility, models.OnboardingAdvanceRequest{
		ChainPhonePrefix: "+41",
		ChainPhoneNumber: "791234567",
	})
	require.NoError(t, err)
	require.True(t, progress.Completed)

	_, err = service.Advance(ctx, "chain2", models.TrackFacility, models.OnboardingAdvanceRequest{})
	assert.ErrorIs(t, err, models.ErrOnboardingCompleted)
}

func TestAdvance_RestartResetsCompletedFlow(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "chain3", models.TrackFacility,
		models.OnboardingAdvanceRequest{Role: models.RoleChain})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "chain3", models.TrackFacility,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "chain3", models.TrackFacility, models.OnboardingAdvanceRequest{
		ChainPhonePrefix: "+41",
		ChainPhoneNumber: "791234567",
	})
	require.NoError(t, err)

	progress, err := service.Advance(ctx, "chain3", models.TrackFacility, models.OnboardingAdvanceRequest{
		Restart: true,
		Role:    models.RoleCompany,
	})
	require.NoError(t, err)
	assert.False(t, progress.Completed)
	assert.Equal(t, models.RoleCompany, progress.Role)
	assert.Equal(t, 2, progress.Step)
}

func TestCompanyCompletion_SynthesizesFacilityProfile(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	config.AppConfig.VerificationBypass = true
	defer func() { config.AppConfig.VerificationBypass = false }()

	ctx := context.Background()
	_, err := service.Advance(ctx, "company2", models.TrackFacility, models.OnboardingAdvanceRequest{
		Role:        models.RoleCompany,
		DisplayName: "Spitex Zentrum AG",
	})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "company2", models.TrackFacility,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "company2", models.TrackFacility)
	_, err = service.Advance(ctx, "company2", models.TrackFacility, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "company2", models.TrackFacility, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	progress, err := service.Advance(ctx, "company2", models.TrackFacility, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	require.True(t, progress.Completed)

	var facility models.FacilityProfile
	err = config.MongoDB.Collection(config.AppConfig.FacilityCollection).
		FindOne(ctx, bson.M{"owner_id": "company2"}).Decode(&facility)
	require.NoError(t, err)
	assert.Equal(t, "Spitex Zentrum AG", facility.Name)
	assert.Equal(t, models.StatusNotVerified, facility.VerificationStatus)
	require.Len(t, facility.Employees, 1)
	assert.Equal(t, "company2", facility.Employees[0].UserID)
	assert.Contains(t, facility.Employees[0].Roles, "admin")
}

func TestCompletion_ProgressSavedBeforeProfileSynthesis(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	config.AppConfig.VerificationBypass = true
	defer func() { config.AppConfig.VerificationBypass = false }()

	ctx := context.Background()
	_, err := service.Advance(ctx, "worker3", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "worker3", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "worker3", models.TrackProfessional)
	_, err = service.Advance(ctx, "worker3", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)

	// Break profile synthesis: the store rejects the collection name, so
	// only the progress update can succeed.
	goodCollection := config.AppConfig.ProfessionalCollection
	config.AppConfig.ProfessionalCollection = "inv$alid"
	_, err = service.Advance(ctx, "worker3", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	config.AppConfig.ProfessionalCollection = goodCollection
	require.Error(t, err)

	var stored models.OnboardingProgress
	err = config.MongoDB.Collection(config.AppConfig.ProgressCollection).
		FindOne(ctx, bson.M{"user_id": "worker3", "track": models.TrackProfessional}).Decode(&stored)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
}

func TestSaveProgress_ConflictOnStaleVersion(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "racer1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)

	first, err := service.GetProgress(ctx, "racer1", models.TrackProfessional)
	require.NoError(t, err)
	second, err := service.GetProgress(ctx, "racer1", models.TrackProfessional)
	require.NoError(t, err)

	first.LegalConfirmed = true
	first.UpdatedAt = time.Now()
	require.NoError(t, service.saveProgress(ctx, first))

	second.UpdatedAt = time.Now()
	err = service.saveProgress(ctx, second)
	assert.ErrorIs(t, err, models.ErrProgressConflict)
}

func TestAccountPhone_SkipsVerificationAcrossRuns(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "acct1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "acct1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "acct1", models.TrackProfessional)

	var account models.AccountPhone
	err = config.MongoDB.Collection(config.AppConfig.AccountPhoneCollection).
		FindOne(ctx, bson.M{"user_id": "acct1"}).Decode(&account)
	require.NoError(t, err)
	assert.NotEmpty(t, account.PhoneNumber)

	// The other track starts with the phone already verified.
	progress, err := service.GetProgress(ctx, "acct1", models.TrackFacility)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVerified, progress.PhonePhase)
	assert.Equal(t, account.PhoneNumber, progress.PhoneNumber)
}

func TestAdvance_RestartKeepsAccountPhone(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	config.AppConfig.VerificationBypass = true
	defer func() { config.AppConfig.VerificationBypass = false }()

	ctx := context.Background()
	_, err := service.Advance(ctx, "acct2", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "acct2", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "acct2", models.TrackProfessional)
	_, err = service.Advance(ctx, "acct2", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	progress, err := service.Advance(ctx, "acct2", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)
	require.True(t, progress.Completed)

	restarted, err := service.Advance(ctx, "acct2", models.TrackProfessional, models.OnboardingAdvanceRequest{
		Restart: true,
		Role:    models.RoleWorker,
	})
	require.NoError(t, err)
	assert.False(t, restarted.Completed)
	assert.Equal(t, models.PhaseVerified, restarted.PhonePhase)
}

func TestBack_FromStep4KeepsVerifiedPhone(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.Advance(ctx, "back1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = service.Advance(ctx, "back1", models.TrackProfessional,
		models.OnboardingAdvanceRequest{LegalConfirmed: true})
	require.NoError(t, err)
	verifyPhoneDirectly(t, service, "back1", models.TrackProfessional)
	_, err = service.Advance(ctx, "back1", models.TrackProfessional, models.OnboardingAdvanceRequest{})
	require.NoError(t, err)

	progress, err := service.Back(ctx, "back1", models.TrackProfessional)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Step)
	assert.Equal(t, models.PhaseVerified, progress.PhonePhase)
}

func TestStartPhoneVerification_InvalidNumber(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	_, err := service.StartPhoneVerification(context.Background(), "phone1", models.TrackProfessional, "not a number")
	assert.ErrorIs(t, err, models.ErrInvalidPhoneNumber)
}

func TestConfirmPhoneCode_WrongCodeCountsAttempts(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.StartPhoneVerification(ctx, "phone2", models.TrackProfessional, "+41791234567")
	require.NoError(t, err)

	for i := 0; i < models.MaxVerificationAttempts-1; i++ {
		_, err = service.ConfirmPhoneCode(ctx, "phone2", models.TrackProfessional, "000000")
		assert.ErrorIs(t, err, models.ErrVerificationCodeInvalid)
	}

	_, err = service.ConfirmPhoneCode(ctx, "phone2", models.TrackProfessional, "000000")
	assert.ErrorIs(t, err, models.ErrTooManyVerificationTries)
}

func TestConfirmPhoneCode_ExpiredCode(t *testing.T) {
	service, cleanup := setupOnboardingTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.StartPhoneVerification(ctx, "phone3", models.TrackProfessional, "+41791234567")
	require.NoError(t, err)

	// Age the stored code past its TTL.
	collection := config.MongoDB.Collection(config.AppConfig.PhoneVerificationCollection)
	_, err = collection.UpdateOne(ctx,
		bson.M{"user_id": "phone3"},
		bson.M{"$set": bson.M{"expires_at": time.Now().Add(-time.Minute)}})
	require.NoError(t, err)

	var stored models.PhoneVerification
	require.NoError(t, collection.FindOne(ctx, bson.M{"user_id": "phone3"}).Decode(&stored))

	_, err = service.ConfirmPhoneCode(ctx, "phone3", models.TrackProfessional, stored.Code)
	assert.ErrorIs(t, err, models.ErrVerificationCodeInvalid)
}
