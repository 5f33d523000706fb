package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	// Server configuration
	Port        int    `json:"port"`
	Environment string `json:"environment"`

	// MongoDB configuration
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`

	// Redis configuration
	RedisURI      string        `json:"redis_uri"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
	RedisTTL      time.Duration `json:"redis_ttl"`

	// Collection names
	ProfessionalCollection      string `json:"mongo_professional_collection"`
	FacilityCollection          string `json:"mongo_facility_collection"`
	ProgressCollection          string `json:"mongo_progress_collection"`
	ExtractionCacheCollection   string `json:"mongo_extraction_cache_collection"`
	PhoneVerificationCollection string `json:"mongo_phone_verification_collection"`
	AccountPhoneCollection      string `json:"mongo_account_phone_collection"`
	VerificationAuditCollection string `json:"mongo_verification_audit_collection"`

	// Document storage
	StorageBucket string `json:"storage_bucket"`

	// Extraction provider
	ExtractionURL     string        `json:"extraction_url"`
	ExtractionTimeout time.Duration `json:"extraction_timeout"`

	// Registry providers
	ProfessionalRegistryURL string `json:"professional_registry_url"`
	PractitionerRegistryURL string `json:"practitioner_registry_url"`
	CompanyRegistryURL      string `json:"company_registry_url"`
	CommercialRegistryURL   string `json:"commercial_registry_url"`
	RegistryAPIKey          string `json:"registry_api_key"`

	// SMS gateway
	SMSGatewayURL      string `json:"sms_gateway_url"`
	SMSGatewayUsername string `json:"sms_gateway_username"`
	SMSGatewayPassword string `json:"sms_gateway_password"`

	// Auth configuration
	AdminGroup string `json:"admin_group"`

	// Audit configuration
	AuditLogsEnabled    bool   `json:"audit_logs_enabled"`
	AuditLogsCollection string `json:"mongo_audit_logs_collection"`

	// Tracing configuration
	TracingEnabled  bool   `json:"tracing_enabled"`
	TracingEndpoint string `json:"tracing_endpoint"`

	// Verification configuration
	PhoneVerificationTTL time.Duration `json:"phone_verification_ttl"`
	ExtractionCacheTTL   time.Duration `json:"extraction_cache_ttl"`
	VerificationLockTTL  time.Duration `json:"verification_lock_ttl"`
	ProgressLoadTimeout  time.Duration `json:"progress_load_timeout"`
	ExpiryWarningDays    int           `json:"expiry_warning_days"`
	VerificationBypass   bool          `json:"verification_bypass"`
}

var (
	AppConfig *Config
)

// LoadConfig loads configuration from environment variables
func LoadConfig() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	redisTTL, err := time.ParseDuration(getEnvOrDefault("REDIS_TTL", "60m"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_TTL: %w", err)
	}

	phoneVerificationTTL, err := time.ParseDuration(getEnvOrDefault("PHONE_VERIFICATION_TTL", "5m"))
	if err != nil {
		return fmt.Errorf("invalid PHONE_VERIFICATION_TTL: %w", err)
	}

	extractionCacheTTL, err := time.ParseDuration(getEnvOrDefault("EXTRACTION_CACHE_TTL", "720h"))
	if err != nil {
		return fmt.Errorf("invalid EXTRACTION_CACHE_TTL: %w", err)
	}

	verificationLockTTL, err := time.ParseDuration(getEnvOrDefault("VERIFICATION_LOCK_TTL", "2m"))
	if err != nil {
		return fmt.Errorf("invalid VERIFICATION_LOCK_TTL: %w", err)
	}

	progressLoadTimeout, err := time.ParseDuration(getEnvOrDefault("PROGRESS_LOAD_TIMEOUT", "3s"))
	if err != nil {
		return fmt.Errorf("invalid PROGRESS_LOAD_TIMEOUT: %w", err)
	}

	extractionTimeout, err := time.ParseDuration(getEnvOrDefault("EXTRACTION_TIMEOUT", "60s"))
	if err != nil {
		return fmt.Errorf("invalid EXTRACTION_TIMEOUT: %w", err)
	}

	expiryWarningDays, err := strconv.Atoi(getEnvOrDefault("EXPIRY_WARNING_DAYS", "90"))
	if err != nil {
		return fmt.Errorf("invalid EXPIRY_WARNING_DAYS: %w", err)
	}

	// Check if STORAGE_BUCKET is set
	storageBucket := os.Getenv("STORAGE_BUCKET")
	if storageBucket == "" {
		return fmt.Errorf("STORAGE_BUCKET environment variable is required")
	}

	extractionURL := os.Getenv("EXTRACTION_URL")
	if extractionURL == "" {
		return fmt.Errorf("EXTRACTION_URL environment variable is required")
	}

	AppConfig = &Config{
		// Server configuration
		Port:        port,
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		// MongoDB configuration
		MongoURI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "onboarding"),

		// Redis configuration
		RedisURI:      getEnvOrDefault("REDIS_URI", "redis://localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		RedisTTL:      redisTTL,

		// Collection names
		ProfessionalCollection:      getEnvOrDefault("MONGODB_PROFESSIONAL_COLLECTION", "professional_profiles"),
		FacilityCollection:          getEnvOrDefault("MONGODB_FACILITY_COLLECTION", "facility_profiles"),
		ProgressCollection:          getEnvOrDefault("MONGODB_PROGRESS_COLLECTION", "onboarding_progress"),
		ExtractionCacheCollection:   getEnvOrDefault("MONGODB_EXTRACTION_CACHE_COLLECTION", "extraction_cache"),
		PhoneVerificationCollection: getEnvOrDefault("MONGODB_PHONE_VERIFICATION_COLLECTION", "phone_verifications"),
		AccountPhoneCollection:      getEnvOrDefault("MONGODB_ACCOUNT_PHONE_COLLECTION", "account_phones"),
		VerificationAuditCollection: getEnvOrDefault("MONGODB_VERIFICATION_AUDIT_COLLECTION", "verification_audit"),

		// Document storage
		StorageBucket: storageBucket,

		// Extraction provider
		ExtractionURL:     extractionURL,
		ExtractionTimeout: extractionTimeout,

		// Registry providers
		ProfessionalRegistryURL: getEnvOrDefault("PROFESSIONAL_REGISTRY_URL", "https://ws.medregom.admin.ch/api"),
		PractitionerRegistryURL: getEnvOrDefault("PRACTITIONER_REGISTRY_URL", "https://ws.nareg.ch/api"),
		CompanyRegistryURL:      getEnvOrDefault("COMPANY_REGISTRY_URL", "https://company-registry.refdata.ch/api"),
		CommercialRegistryURL:   getEnvOrDefault("COMMERCIAL_REGISTRY_URL", "https://www.zefix.admin.ch/ZefixPublicREST/api/v1"),
		RegistryAPIKey:          getEnvOrDefault("REGISTRY_API_KEY", ""),

		// SMS gateway
		SMSGatewayURL:      getEnvOrDefault("SMS_GATEWAY_URL", ""),
		SMSGatewayUsername: getEnvOrDefault("SMS_GATEWAY_USERNAME", ""),
		SMSGatewayPassword: getEnvOrDefault("SMS_GATEWAY_PASSWORD", ""),

		// Auth configuration
		AdminGroup: getEnvOrDefault("ADMIN_GROUP", "onboarding-admin"),

		// Audit configuration
		AuditLogsEnabled:    getEnvOrDefault("AUDIT_LOGS_ENABLED", "true") == "true",
		AuditLogsCollection: getEnvOrDefault("MONGODB_AUDIT_LOGS_COLLECTION", "audit_logs"),

		// Tracing configuration
		TracingEnabled:  getEnvOrDefault("TRACING_ENABLED", "false") == "true",
		TracingEndpoint: getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),

		// Verification configuration
		PhoneVerificationTTL: phoneVerificationTTL,
		ExtractionCacheTTL:   extractionCacheTTL,
		VerificationLockTTL:  verificationLockTTL,
		ProgressLoadTimeout:  progressLoadTimeout,
		ExpiryWarningDays:    expiryWarningDays,
		VerificationBypass:   getEnvOrDefault("VERIFICATION_BYPASS", "false") == "true",
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
