package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/utils"
)

// IdentityMatcher checks extracted identities against registry records.
type IdentityMatcher struct {
	logger *logging.SafeLogger
}

// NewIdentityMatcher creates a matcher.
func NewIdentityMatcher() *IdentityMatcher {
	return &IdentityMatcher{
		logger: logging.Logger.With(zap.String("service", "identity_matcher")),
	}
}

// MatchPerson verifies that the extracted person is the registry person.
// Both first and last name must match under the fuzzy rules in
// utils.NameMatches; a failure returns models.ErrIdentityMismatch carrying
// both normalized names so the caller can see what was compared.
func (m *IdentityMatcher) MatchPerson(extracted models.ExtractedData, record models.RegistryRecord) error {
	registryFirst := record.FirstName
	registryLast := record.LastName
	if registryFirst == "" && record.Name != "" {
		// Some registries return only a combined name field.
		registryFirst = utils.ExtractFirstName(record.Name)
	}
	if registryLast == "" && record.Name != "" {
		registryLast = strings.TrimSpace(strings.TrimPrefix(record.Name, registryFirst))
	}

	firstOK := utils.NameMatches(extracted.FirstName, registryFirst)
	lastOK := utils.NameMatches(extracted.LastName, registryLast)

	if firstOK && lastOK {
		return nil
	}

	extractedName := utils.NormalizeName(extracted.FirstName + " " + extracted.LastName)
	registryName := utils.NormalizeName(registryFirst + " " + registryLast)

	m.logger.Info("identity mismatch against registry record",
		zap.Bool("first_name_match", firstOK),
		zap.Bool("last_name_match", lastOK),
		zap.String("extracted", utils.MaskName(extractedName)),
		zap.String("registry", utils.MaskName(registryName)))

	return fmt.Errorf("%w: extracted name %q does not match registry name %q",
		models.ErrIdentityMismatch, extractedName, registryName)
}

// MatchResponsiblePerson verifies that the extracted responsible person
// appears in the registry's responsible-person list. An empty registry list
// skips the check and passes.
func (m *IdentityMatcher) MatchResponsiblePerson(extractedName string, record models.RegistryRecord) error {
	if len(record.ResponsiblePersons) == 0 {
		m.logger.Debug("registry record has no responsible persons, skipping match")
		return nil
	}

	for _, person := range record.ResponsiblePersons {
		if utils.NameMatches(extractedName, person.FullName()) {
			return nil
		}
	}

	m.logger.Info("responsible person not found in registry record",
		zap.String("extracted", utils.MaskName(extractedName)),
		zap.Int("registry_person_count", len(record.ResponsiblePersons)))

	return fmt.Errorf("%w: responsible person %q not in registry record",
		models.ErrIdentityMismatch, utils.NormalizeName(extractedName))
}
