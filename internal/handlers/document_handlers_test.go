package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/redisclient"
	"github.com/caremarket/onboarding-api/internal/services"
)

type memoryBlobStore struct {
	objects map[string][]byte
}

func (s *memoryBlobStore) Write(_ context.Context, objectPath, _ string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[objectPath] = data
	return "gs://test-bucket/" + objectPath, int64(len(data)), nil
}

func (s *memoryBlobStore) Delete(_ context.Context, objectPath string) error {
	delete(s.objects, objectPath)
	return nil
}

func newDocumentRouter(h *DocumentHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/users/:userId/documents/:documentType", h.Upload)
	router.GET("/v1/users/:userId/documents/:documentType/extraction", h.GetCachedExtraction)
	router.DELETE("/v1/users/:userId/documents/:documentType/extraction", h.InvalidateCachedExtraction)
	return router
}

func multipartDocument(t *testing.T, fieldName, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUpload_UnknownDocumentType(t *testing.T) {
	_ = logging.InitLogger()
	router := newDocumentRouter(NewDocumentHandlers(nil, nil))

	body, contentType := multipartDocument(t, "file", "scan.pdf", "data")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/documents/tax_return", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_MissingFileField(t *testing.T) {
	_ = logging.InitLogger()
	router := newDocumentRouter(NewDocumentHandlers(nil, nil))

	body, contentType := multipartDocument(t, "attachment", "scan.pdf", "data")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/documents/identity", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func setupDocumentHandlersTest(t *testing.T) (*gin.Engine, *memoryBlobStore, func()) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping document handler tests: MONGODB_URI not set")
	}

	_ = logging.InitLogger()

	if config.AppConfig == nil {
		config.AppConfig = &config.Config{}
	}
	config.AppConfig.ProfessionalCollection = "test_handlers_professionals"
	config.AppConfig.FacilityCollection = "test_handlers_doc_facilities"
	config.AppConfig.ExtractionCacheCollection = "test_handlers_extraction_cache"

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	require.NoError(t, err)
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("MongoDB not available: %v", err)
	}
	config.MongoDB = client.Database("onboarding_test_doc_handlers")
	_ = config.MongoDB.Drop(ctx)

	blobs := &memoryBlobStore{}
	handlers := NewDocumentHandlers(
		services.NewUploadService(blobs, config.MongoDB),
		services.NewExtractionCache(config.MongoDB, 30*24*time.Hour),
	)

	return newDocumentRouter(handlers), blobs, func() {
		_ = config.MongoDB.Drop(ctx)
		_ = client.Disconnect(ctx)
	}
}

func TestUpload_StoresBlobAndReturnsRecord(t *testing.T) {
	router, blobs, cleanup := setupDocumentHandlersTest(t)
	defer cleanup()

	body, contentType := multipartDocument(t, "file", "diploma.pdf", "pdf bytes")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/doc1/documents/diploma", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var record models.DocumentRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, models.DocumentTypeDiploma, record.Type)
	assert.Contains(t, record.URL, "gs://test-bucket/documents/doc1/diploma/")
	assert.Len(t, blobs.objects, 1)
}

func TestGetCachedExtraction_MissIs404(t *testing.T) {
	router, cleanup := setupExtractionRedis(t)
	defer cleanup()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users/doc2/documents/identity/extraction", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// setupExtractionRedis layers Redis on top of the Mongo-backed handler setup.
func setupExtractionRedis(t *testing.T) (*gin.Engine, func()) {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("Skipping extraction cache handler test: REDIS_ADDR not set")
	}
	router, _, cleanup := setupDocumentHandlersTest(t)

	config.Redis = redisclient.NewClient(redis.NewClient(&redis.Options{Addr: redisAddr}))
	if err := config.Redis.Ping(context.Background()).Err(); err != nil {
		cleanup()
		t.Skipf("Redis not available: %v", err)
	}
	return router, cleanup
}

func TestExtractionCacheRoundTrip(t *testing.T) {
	router, cleanup := setupExtractionRedis(t)
	defer cleanup()

	ctx := context.Background()
	_ = config.Redis.Del(ctx, "extraction:doc3:identity").Err()
	defer func() { _ = config.Redis.Del(ctx, "extraction:doc3:identity").Err() }()

	cache := services.NewExtractionCache(config.MongoDB, 30*24*time.Hour)
	require.NoError(t, cache.Set(ctx, "doc3", models.DocumentTypeIdentity,
		models.ExtractionResult{Success: true, Data: models.ExtractedData{FirstName: "Anna"}}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users/doc3/documents/identity/extraction", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var entry models.CachedExtraction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "Anna", entry.Result.Data.FirstName)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/users/doc3/documents/identity/extraction", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users/doc3/documents/identity/extraction", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
