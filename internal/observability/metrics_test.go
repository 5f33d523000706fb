package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsExist(t *testing.T) {
	// Verify all metrics are initialized
	assert.NotNil(t, RequestDuration)
	assert.NotNil(t, CacheHits)
	assert.NotNil(t, DatabaseOperations)
	assert.NotNil(t, VerificationAttempts)
	assert.NotNil(t, OnboardingTransitions)
	assert.NotNil(t, DocumentUploads)
	assert.NotNil(t, RegistryLookups)
	assert.NotNil(t, ActiveConnections)
}

func TestRequestDuration(t *testing.T) {
	// Should be able to record metrics
	RequestDuration.WithLabelValues("/test", "GET", "200").Observe(0.5)
	RequestDuration.WithLabelValues("/v1/onboarding", "POST", "201").Observe(1.2)
}

func TestCacheHits(t *testing.T) {
	CacheHits.WithLabelValues("extraction_local").Inc()
	CacheHits.WithLabelValues("extraction_durable").Inc()
}

func TestVerificationAttempts(t *testing.T) {
	VerificationAttempts.WithLabelValues("professional", "merge", "success").Inc()
	VerificationAttempts.WithLabelValues("professional", "matching", "identity_mismatch").Inc()
	VerificationAttempts.WithLabelValues("facility", "registry", "no_record").Inc()
}

func TestOnboardingTransitions(t *testing.T) {
	OnboardingTransitions.WithLabelValues("worker", "forward").Inc()
	OnboardingTransitions.WithLabelValues("company", "back").Inc()
}

func TestDocumentUploads(t *testing.T) {
	DocumentUploads.WithLabelValues("identity", "success").Inc()
	DocumentUploads.WithLabelValues("billing", "error").Inc()
}

func TestRegistryLookups(t *testing.T) {
	RegistryLookups.WithLabelValues("professional", "success").Inc()
	RegistryLookups.WithLabelValues("commercial", "no_record").Inc()
}

func TestActiveConnections(t *testing.T) {
	ActiveConnections.Inc()
	ActiveConnections.Dec()
	ActiveConnections.Set(5)
}
