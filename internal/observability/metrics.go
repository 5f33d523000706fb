package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onboarding_api_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)

	// CacheHits tracks cache hits/misses
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_api_cache_hits_total",
			Help: "Number of cache hits",
		},
		[]string{"operation"},
	)

	// DatabaseOperations tracks database operations
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_api_database_operations_total",
			Help: "Number of database operations",
		},
		[]string{"operation", "status"},
	)

	// VerificationAttempts tracks verification pipeline runs by track,
	// terminal stage and outcome
	VerificationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_api_verification_attempts_total",
			Help: "Number of verification pipeline attempts",
		},
		[]string{"track", "stage", "outcome"},
	)

	// OnboardingTransitions tracks onboarding step transitions
	OnboardingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_api_onboarding_transitions_total",
			Help: "Number of onboarding step transitions",
		},
		[]string{"role", "direction"},
	)

	// DocumentUploads tracks document uploads by type and status
	DocumentUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_api_document_uploads_total",
			Help: "Number of document uploads",
		},
		[]string{"document_type", "status"},
	)

	// RegistryLookups tracks registry provider calls
	RegistryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_api_registry_lookups_total",
			Help: "Number of registry lookups",
		},
		[]string{"registry", "status"},
	)

	// ActiveConnections tracks active connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onboarding_api_active_connections",
			Help: "Number of active connections",
		},
	)

	// OperationDuration tracks duration of monitored operations
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onboarding_api_operation_duration_seconds",
			Help: "Duration of monitored operations in seconds",
		},
		[]string{"operation"},
	)

	// OperationMemoryUsage tracks memory delta of monitored operations
	OperationMemoryUsage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onboarding_api_operation_memory_bytes",
			Help: "Memory allocated during monitored operations in bytes",
		},
		[]string{"operation"},
	)
)
