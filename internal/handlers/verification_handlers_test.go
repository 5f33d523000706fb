package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
)

func newVerificationRouter(h *VerificationHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/users/:userId/verification/professional", h.VerifyProfessional)
	router.POST("/v1/users/:userId/verification/facility", h.VerifyFacility)
	router.POST("/v1/users/:userId/verification/chain", h.VerifyChain)
	router.GET("/v1/users/:userId/verification", h.GetStatus)
	return router
}

func ensureTestConfig() {
	if config.AppConfig == nil {
		config.AppConfig = &config.Config{}
	}
}

func TestVerifyProfessional_MissingGLN(t *testing.T) {
	_ = logging.InitLogger()
	ensureTestConfig()
	router := newVerificationRouter(NewVerificationHandlers(nil))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/v1/verification/professional", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyProfessional_MissingIdentityDocument(t *testing.T) {
	_ = logging.InitLogger()
	ensureTestConfig()
	router := newVerificationRouter(NewVerificationHandlers(nil))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("gln", "7601000000002"))
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/v1/verification/professional", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "identity")
}

func TestVerifyFacility_MissingGLN(t *testing.T) {
	_ = logging.InitLogger()
	ensureTestConfig()
	router := newVerificationRouter(NewVerificationHandlers(nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/v1/verification/facility",
		bytes.NewReader([]byte(`{"responsible_name":"Hans Meier"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyChain_MissingUID(t *testing.T) {
	_ = logging.InitLogger()
	ensureTestConfig()
	router := newVerificationRouter(NewVerificationHandlers(nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/v1/verification/chain",
		bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func setupStatusTest(t *testing.T) (*gin.Engine, func()) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping verification status tests: MONGODB_URI not set")
	}

	_ = logging.InitLogger()
	ensureTestConfig()
	config.AppConfig.ProfessionalCollection = "test_handlers_status_professionals"
	config.AppConfig.FacilityCollection = "test_handlers_status_facilities"

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	require.NoError(t, err)
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("MongoDB not available: %v", err)
	}
	config.MongoDB = client.Database("onboarding_test_status_handlers")
	_ = config.MongoDB.Drop(ctx)

	return newVerificationRouter(NewVerificationHandlers(nil)), func() {
		_ = config.MongoDB.Drop(ctx)
		_ = client.Disconnect(ctx)
	}
}

func TestGetStatus_EmptyForUnknownUser(t *testing.T) {
	router, cleanup := setupStatusTest(t)
	defer cleanup()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users/nobody/verification", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp VerificationStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Professional)
	assert.Empty(t, resp.Facility)
	assert.Empty(t, resp.Commercial)
}

func TestGetStatus_ReportsAllTracks(t *testing.T) {
	router, cleanup := setupStatusTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := config.MongoDB.Collection(config.AppConfig.ProfessionalCollection).
		InsertOne(ctx, models.ProfessionalProfile{UserID: "st1", VerificationStatus: models.StatusVerified})
	require.NoError(t, err)
	_, err = config.MongoDB.Collection(config.AppConfig.FacilityCollection).
		InsertOne(ctx, models.FacilityProfile{
			OwnerID:            "st1",
			VerificationStatus: models.StatusFailed,
			CommercialStatus:   models.StatusVerified,
		})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users/st1/verification", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp VerificationStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusVerified, resp.Professional)
	assert.Equal(t, models.StatusFailed, resp.Facility)
	assert.Equal(t, models.StatusVerified, resp.Commercial)
}
