package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/utils"
)

// OptionSets are the closed label sets the merge engine reconciles
// incoming values against. Labels that match none of the options are
// silently skipped.
type OptionSets struct {
	Genders       []string
	CivilStatuses []string
	Nationalities []string
	Cantons       []string
}

// DefaultOptionSets returns the configured label sets.
func DefaultOptionSets() OptionSets {
	return OptionSets{
		Genders:       []string{"male", "female", "other"},
		CivilStatuses: []string{"single", "married", "divorced", "widowed", "registered partnership"},
		Nationalities: []string{"Switzerland", "Germany", "France", "Italy", "Austria", "Liechtenstein", "Portugal", "Spain"},
		Cantons: []string{
			"AG", "AI", "AR", "BE", "BL", "BS", "FR", "GE", "GL", "GR", "JU", "LU",
			"NE", "NW", "OW", "SG", "SH", "SO", "SZ", "TG", "TI", "UR", "VD", "VS", "ZG", "ZH",
		},
	}
}

// MergeEngine folds verified registry and document data into durable
// profiles. Fields are written only when currently empty, every written
// field records its source, and the computed diff is applied in one
// transactional update.
type MergeEngine struct {
	database *mongo.Database
	options  OptionSets
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewMergeEngine creates the engine with the given option sets.
func NewMergeEngine(database *mongo.Database, opts OptionSets) *MergeEngine {
	return &MergeEngine{
		database: database,
		options:  opts,
		logger:   logging.Logger.With(zap.String("service", "merge_engine")),
		now:      time.Now,
	}
}

// mergeDiff accumulates the field writes of one merge pass.
type mergeDiff struct {
	set bson.M
}

func newMergeDiff() *mergeDiff {
	return &mergeDiff{set: bson.M{}}
}

// setIfEmpty records a write when the current value is empty, the incoming
// value is non-empty, and the field was not already claimed in this pass.
func (d *mergeDiff) setIfEmpty(field, current, incoming, source string) {
	if current != "" || incoming == "" {
		return
	}
	if _, claimed := d.set[field]; claimed {
		return
	}
	d.set[field] = incoming
	d.set["field_sources."+field] = source
}

// replaceList replaces a list field wholesale when incoming is non-empty
// and the field was not already claimed in this pass.
func (d *mergeDiff) replaceList(field string, incoming []string, source string) {
	if len(incoming) == 0 {
		return
	}
	if _, claimed := d.set[field]; claimed {
		return
	}
	d.set[field] = incoming
	d.set["field_sources."+field] = source
}

// MergeProfessional merges a registry record and extracted document data
// into the worker's profile. When both supply a name, the registry value
// wins: it is applied first and claims the field.
func (e *MergeEngine) MergeProfessional(ctx context.Context, userID string, registry *models.RegistryRecord, doc *models.ExtractedData) error {
	ctx, span := utils.TraceDatabaseTransaction(ctx, "merge_professional")
	defer span.End()

	collection := e.database.Collection(config.AppConfig.ProfessionalCollection)

	var profile models.ProfessionalProfile
	err := collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile)
	if err != nil && err != mongo.ErrNoDocuments {
		return fmt.Errorf("failed to load professional profile: %w", err)
	}

	diff := newMergeDiff()

	if registry != nil {
		diff.setIfEmpty("first_name", profile.FirstName, registry.FirstName, models.SourceRegistry)
		diff.setIfEmpty("last_name", profile.LastName, registry.LastName, models.SourceRegistry)
		diff.setIfEmpty("gln", profile.GLN, registry.GLN, models.SourceRegistry)
		diff.setIfEmpty("address", profile.Address, registry.Address, models.SourceRegistry)
		diff.setIfEmpty("city", profile.City, registry.City, models.SourceRegistry)
		if canton, ok := reconcileOption(registry.Canton, e.options.Cantons); ok {
			diff.setIfEmpty("canton", profile.Canton, canton, models.SourceRegistry)
		}
		diff.replaceList("professions", registry.Professions, models.SourceRegistry)
	}

	if doc != nil {
		diff.setIfEmpty("first_name", profile.FirstName, doc.FirstName, models.SourceDocument)
		diff.setIfEmpty("last_name", profile.LastName, doc.LastName, models.SourceDocument)
		diff.setIfEmpty("date_of_birth", profile.DateOfBirth, doc.DateOfBirth, models.SourceDocument)
		diff.setIfEmpty("address", profile.Address, doc.Address, models.SourceDocument)
		diff.setIfEmpty("city", profile.City, doc.City, models.SourceDocument)
		diff.setIfEmpty("postal_code", profile.PostalCode, doc.PostalCode, models.SourceDocument)
		diff.setIfEmpty("iban", profile.IBAN, doc.IBAN, models.SourceDocument)

		if gender, ok := reconcileOption(doc.Gender, e.options.Genders); ok {
			diff.setIfEmpty("gender", profile.Gender, gender, models.SourceDocument)
		}
		if civil, ok := reconcileOption(doc.CivilStatus, e.options.CivilStatuses); ok {
			diff.setIfEmpty("civil_status", profile.CivilStatus, civil, models.SourceDocument)
		}
		if nationality, ok := reconcileOption(doc.Nationality, e.options.Nationalities); ok {
			diff.setIfEmpty("nationality", profile.Nationality, nationality, models.SourceDocument)
		}
		if canton, ok := reconcileOption(doc.Canton, e.options.Cantons); ok {
			diff.setIfEmpty("canton", profile.Canton, canton, models.SourceDocument)
		}

		diff.replaceList("languages", doc.Languages, models.SourceDocument)
		diff.replaceList("professions", doc.Professions, models.SourceDocument)
	}

	return e.apply(ctx, collection, bson.M{"user_id": userID}, diff)
}

// MergeFacility merges a registry record into a facility or chain profile.
func (e *MergeEngine) MergeFacility(ctx context.Context, ownerID string, registry *models.RegistryRecord) error {
	ctx, span := utils.TraceDatabaseTransaction(ctx, "merge_facility")
	defer span.End()

	collection := e.database.Collection(config.AppConfig.FacilityCollection)

	var profile models.FacilityProfile
	err := collection.FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&profile)
	if err != nil && err != mongo.ErrNoDocuments {
		return fmt.Errorf("failed to load facility profile: %w", err)
	}

	diff := newMergeDiff()

	if registry != nil {
		diff.setIfEmpty("name", profile.Name, registry.Name, models.SourceRegistry)
		diff.setIfEmpty("gln", profile.GLN, registry.GLN, models.SourceRegistry)
		diff.setIfEmpty("uid", profile.UID, registry.UID, models.SourceRegistry)
		diff.setIfEmpty("address", profile.Address, registry.Address, models.SourceRegistry)
		diff.setIfEmpty("city", profile.City, registry.City, models.SourceRegistry)
		diff.setIfEmpty("commercial_status", profile.CommercialStatus, registry.Status, models.SourceRegistry)
		if canton, ok := reconcileOption(registry.Canton, e.options.Cantons); ok {
			diff.setIfEmpty("canton", profile.Canton, canton, models.SourceRegistry)
		}
	}

	return e.apply(ctx, collection, bson.M{"owner_id": ownerID}, diff)
}

// apply commits the computed diff in a single transactional upsert.
func (e *MergeEngine) apply(ctx context.Context, collection *mongo.Collection, filter bson.M, diff *mergeDiff) error {
	if len(diff.set) == 0 {
		e.logger.Debug("merge produced no writes")
		return nil
	}

	diff.set["updated_at"] = e.now()

	operations := []utils.DatabaseOperation{
		{
			Operation: func() error {
				opts := options.Update().SetUpsert(true)
				update := bson.M{
					"$set":         diff.set,
					"$setOnInsert": bson.M{"created_at": e.now()},
				}
				_, err := collection.UpdateOne(ctx, filter, update, opts)
				return err
			},
			Rollback: func() error {
				unset := bson.M{}
				for field := range diff.set {
					unset[field] = ""
				}
				_, err := collection.UpdateOne(ctx, filter, bson.M{"$unset": unset})
				return err
			},
		},
	}

	if err := utils.ExecuteWithTransaction(ctx, operations); err != nil {
		return fmt.Errorf("failed to apply merge: %w", err)
	}

	e.logger.Info("merge applied", zap.Int("field_count", len(diff.set)))
	return nil
}

// reconcileOption matches an incoming label against the option set,
// ignoring case and diacritics, and returns the canonical label.
func reconcileOption(incoming string, optionSet []string) (string, bool) {
	if incoming == "" {
		return "", false
	}
	normalized := utils.NormalizeName(incoming)
	for _, option := range optionSet {
		if utils.NormalizeName(option) == normalized {
			return option, true
		}
	}
	return "", false
}
