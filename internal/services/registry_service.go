package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/observability"
	"github.com/caremarket/onboarding-api/internal/utils"
	"github.com/caremarket/onboarding-api/internal/utils/httpclient"
)

// RegistryService queries the public registries: professional and
// practitioner registries for workers, company registry for facilities,
// commercial registry for chains.
type RegistryService struct {
	professionalURL string
	practitionerURL string
	companyURL      string
	commercialURL   string
	apiKey          string
	logger          *logging.SafeLogger
}

// NewRegistryService creates the service from the configured provider URLs.
func NewRegistryService(cfg *config.Config) *RegistryService {
	return &RegistryService{
		professionalURL: cfg.ProfessionalRegistryURL,
		practitionerURL: cfg.PractitionerRegistryURL,
		companyURL:      cfg.CompanyRegistryURL,
		commercialURL:   cfg.CommercialRegistryURL,
		apiKey:          cfg.RegistryAPIKey,
		logger:          logging.Logger.With(zap.String("service", "registry")),
	}
}

// LookupProfessional queries the professional registry by GLN, falling back
// to the national practitioner registry when the primary has no record.
func (s *RegistryService) LookupProfessional(ctx context.Context, gln string) (*models.RegistryRecord, error) {
	ctx, span := utils.TraceExternalService(ctx, "professional_registry", "lookup")
	defer span.End()

	records, err := s.fetch(ctx, "professional", fmt.Sprintf("%s/professionals?gln=%s", s.professionalURL, url.QueryEscape(gln)))
	if err == nil {
		return &records[0], nil
	}
	if !errors.Is(err, models.ErrNoRecordFound) {
		return nil, err
	}

	s.logger.Debug("primary registry has no record, trying practitioner registry",
		zap.String("gln", observability.MaskIdentifier(gln)))

	records, err = s.fetch(ctx, "practitioner", fmt.Sprintf("%s/practitioners?gln=%s", s.practitionerURL, url.QueryEscape(gln)))
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// LookupCompany runs the two-call company sequence: search by GLN for
// candidates, then fetch details for the first candidate. The details
// record carries the responsible-person list.
func (s *RegistryService) LookupCompany(ctx context.Context, gln string) (*models.RegistryRecord, error) {
	ctx, span := utils.TraceExternalService(ctx, "company_registry", "lookup")
	defer span.End()

	candidates, err := s.fetch(ctx, "company_search", fmt.Sprintf("%s/companies/search?gln=%s", s.companyURL, url.QueryEscape(gln)))
	if err != nil {
		return nil, err
	}

	candidate := candidates[0]
	if candidate.ID == "" {
		// Search result already carries the full record
		return &candidate, nil
	}

	details, err := s.fetch(ctx, "company_details", fmt.Sprintf("%s/companies/%s", s.companyURL, url.PathEscape(candidate.ID)))
	if err != nil {
		if errors.Is(err, models.ErrNoRecordFound) {
			return &candidate, nil
		}
		return nil, err
	}
	return &details[0], nil
}

// LookupCommercial queries the commercial registry by normalized UID.
func (s *RegistryService) LookupCommercial(ctx context.Context, uid string) (*models.RegistryRecord, error) {
	ctx, span := utils.TraceExternalService(ctx, "commercial_registry", "lookup")
	defer span.End()

	records, err := s.fetch(ctx, "commercial", fmt.Sprintf("%s/company/uid/%s", s.commercialURL, url.PathEscape(uid)))
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// fetch performs one registry GET and normalizes the response. An empty
// result set returns models.ErrNoRecordFound; callers rely on the returned
// slice being non-empty otherwise.
func (s *RegistryService) fetch(ctx context.Context, registry, requestURL string) ([]models.RegistryRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	client := httpclient.Shared().Get()
	defer httpclient.Shared().Put(client)

	resp, err := client.Do(req)
	if err != nil {
		observability.RegistryLookups.WithLabelValues(registry, "error").Inc()
		return nil, fmt.Errorf("registry %s request failed: %w", registry, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		observability.RegistryLookups.WithLabelValues(registry, "not_found").Inc()
		return nil, fmt.Errorf("%w: registry %s", models.ErrNoRecordFound, registry)
	}
	if resp.StatusCode != http.StatusOK {
		observability.RegistryLookups.WithLabelValues(registry, "error").Inc()
		return nil, fmt.Errorf("registry %s returned status %d", registry, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry response: %w", err)
	}

	records, err := normalizeRegistryResponse(body)
	if err != nil {
		observability.RegistryLookups.WithLabelValues(registry, "error").Inc()
		return nil, fmt.Errorf("registry %s: %w", registry, err)
	}
	if len(records) == 0 {
		observability.RegistryLookups.WithLabelValues(registry, "not_found").Inc()
		return nil, fmt.Errorf("%w: registry %s", models.ErrNoRecordFound, registry)
	}

	observability.RegistryLookups.WithLabelValues(registry, "success").Inc()
	return records, nil
}

// normalizeRegistryResponse flattens the three provider envelopes
// ({"Data": [...]}, {"entries": [...]}, bare array) into a record slice.
func normalizeRegistryResponse(body []byte) ([]models.RegistryRecord, error) {
	var bare []models.RegistryRecord
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Data    []models.RegistryRecord `json:"Data"`
		Entries []models.RegistryRecord `json:"entries"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized registry response shape: %w", err)
	}
	if len(wrapped.Data) > 0 {
		return wrapped.Data, nil
	}
	return wrapped.Entries, nil
}
