package config

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/redisclient"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

var (
	// MongoDB client
	MongoDB *mongo.Database
	// Redis client
	Redis *redisclient.Client
)

// InitMongoDB initializes the MongoDB connection
func InitMongoDB() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(AppConfig.MongoURI).
		SetMonitor(otelmongo.NewMonitor()).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}

	// Ping the database
	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		log.Fatal(err)
	}

	MongoDB = client.Database(AppConfig.MongoDatabase)

	if err := ensureIndexes(); err != nil {
		logging.Logger.Error("failed to ensure indexes on startup", zap.Error(err))
	}

	logging.Logger.Info("connected to MongoDB",
		zap.String("uri", maskMongoURI(AppConfig.MongoURI)),
		zap.String("database", AppConfig.MongoDatabase),
	)
}

// InitRedis initializes the Redis connection
func InitRedis() {
	redisClient := redis.NewClient(&redis.Options{
		Addr:         AppConfig.RedisURI,
		Password:     AppConfig.RedisPassword,
		DB:           AppConfig.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Wrap with traced client
	Redis = redisclient.NewClient(redisClient)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		logging.Logger.Error("failed to connect to Redis",
			zap.String("uri", AppConfig.RedisURI),
			zap.Error(err))
		return
	}

	logging.Logger.Info("connected to Redis",
		zap.String("uri", AppConfig.RedisURI))
}

// maskMongoURI masks sensitive information in MongoDB URI
func maskMongoURI(uri string) string {
	return "mongodb://****:****@" + uri[strings.LastIndex(uri, "@")+1:]
}

// ensureIndexes creates required indexes if they don't exist
func ensureIndexes() error {
	logger := zap.L().Named("database")
	logger.Info("ensuring required indexes exist")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ensureUniqueIndex(ctx, logger, AppConfig.ProfessionalCollection, "user_id"); err != nil {
		return err
	}

	if err := ensureUniqueIndex(ctx, logger, AppConfig.FacilityCollection, "owner_id"); err != nil {
		return err
	}

	if err := ensureProgressIndex(ctx, logger); err != nil {
		return err
	}

	if err := ensureUniqueIndex(ctx, logger, AppConfig.AccountPhoneCollection, "user_id"); err != nil {
		return err
	}

	if err := ensureExtractionCacheIndex(ctx, logger); err != nil {
		return err
	}

	if err := ensurePhoneVerificationIndex(ctx, logger); err != nil {
		return err
	}

	if err := ensureVerificationAuditIndex(ctx, logger); err != nil {
		return err
	}

	logger.Info("all required indexes verified")
	return nil
}

// listIndexNames returns the names of all indexes on a collection.
func listIndexNames(ctx context.Context, collection *mongo.Collection) (map[string]bool, error) {
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	names := make(map[string]bool)
	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			continue
		}
		if name, ok := index["name"].(string); ok {
			names[name] = true
		}
	}
	return names, nil
}

// ensureUniqueIndex creates a unique single-field index on the collection.
func ensureUniqueIndex(ctx context.Context, logger *zap.Logger, collectionName, field string) error {
	collection := MongoDB.Collection(collectionName)
	indexName := field + "_1"

	existing, err := listIndexNames(ctx, collection)
	if err != nil {
		logger.Error("failed to list indexes", zap.Error(err))
		return err
	}

	if existing[indexName] {
		logger.Debug("index already exists",
			zap.String("collection", collectionName),
			zap.String("index", indexName))
		return nil
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
		Options: options.Index().
			SetName(indexName).
			SetUnique(true),
	}

	_, err = collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		// Another instance may have created it concurrently
		if mongo.IsDuplicateKeyError(err) {
			logger.Info("index already exists (created by another instance)",
				zap.String("collection", collectionName))
			return nil
		}
		logger.Error("failed to create index",
			zap.String("collection", collectionName),
			zap.String("index", indexName),
			zap.Error(err))
		return err
	}

	logger.Info("created collection index",
		zap.String("collection", collectionName),
		zap.String("index", indexName))
	return nil
}

// ensureProgressIndex creates the compound unique index that keys each
// onboarding progress document by (user_id, track).
func ensureProgressIndex(ctx context.Context, logger *zap.Logger) error {
	collection := MongoDB.Collection(AppConfig.ProgressCollection)
	indexName := "user_id_1_track_1"

	existing, err := listIndexNames(ctx, collection)
	if err != nil {
		logger.Error("failed to list indexes", zap.Error(err))
		return err
	}

	if existing[indexName] {
		logger.Debug("index already exists",
			zap.String("collection", AppConfig.ProgressCollection),
			zap.String("index", indexName))
		return nil
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "track", Value: 1}},
		Options: options.Index().
			SetName(indexName).
			SetUnique(true),
	}

	_, err = collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		logger.Error("failed to create progress index",
			zap.String("collection", AppConfig.ProgressCollection),
			zap.Error(err))
		return err
	}

	logger.Info("created collection index",
		zap.String("collection", AppConfig.ProgressCollection),
		zap.String("index", indexName))
	return nil
}

// ensureExtractionCacheIndex creates the indexes for the extraction_cache
// collection: a unique compound key per (user, document type) and a TTL
// index so stale autofill entries are cleaned up server-side.
func ensureExtractionCacheIndex(ctx context.Context, logger *zap.Logger) error {
	collection := MongoDB.Collection(AppConfig.ExtractionCacheCollection)

	existing, err := listIndexNames(ctx, collection)
	if err != nil {
		logger.Error("failed to list indexes", zap.Error(err))
		return err
	}

	indexesToCreate := []mongo.IndexModel{}

	if !existing["user_id_1_document_type_1"] {
		indexesToCreate = append(indexesToCreate, mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "document_type", Value: 1}},
			Options: options.Index().
				SetName("user_id_1_document_type_1").
				SetUnique(true),
		})
	}

	if !existing["expires_at_1"] {
		indexesToCreate = append(indexesToCreate, mongo.IndexModel{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("expires_at_1").
				SetExpireAfterSeconds(0),
		})
	}

	for _, indexModel := range indexesToCreate {
		_, err = collection.Indexes().CreateOne(ctx, indexModel)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			logger.Error("failed to create extraction_cache index",
				zap.String("collection", AppConfig.ExtractionCacheCollection),
				zap.Error(err))
			return err
		}
	}

	if len(indexesToCreate) > 0 {
		logger.Info("created extraction_cache collection indexes",
			zap.String("collection", AppConfig.ExtractionCacheCollection),
			zap.Int("count", len(indexesToCreate)))
	}

	return nil
}

// ensurePhoneVerificationIndex creates the required indexes for the
// phone_verifications collection
func ensurePhoneVerificationIndex(ctx context.Context, logger *zap.Logger) error {
	collection := MongoDB.Collection(AppConfig.PhoneVerificationCollection)

	existing, err := listIndexNames(ctx, collection)
	if err != nil {
		logger.Error("failed to list indexes", zap.Error(err))
		return err
	}

	indexesToCreate := []mongo.IndexModel{}

	// 1. Unique compound index on user_id and phone_number
	if !existing["user_id_1_phone_number_1"] {
		indexesToCreate = append(indexesToCreate, mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "phone_number", Value: 1}},
			Options: options.Index().
				SetName("user_id_1_phone_number_1").
				SetUnique(true),
		})
	}

	// 2. TTL index on expires_at for automatic cleanup
	if !existing["expires_at_1"] {
		indexesToCreate = append(indexesToCreate, mongo.IndexModel{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("expires_at_1").
				SetExpireAfterSeconds(0),
		})
	}

	// 3. Compound index for verification queries
	if !existing["verification_query_1"] {
		indexesToCreate = append(indexesToCreate, mongo.IndexModel{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "code", Value: 1},
				{Key: "expires_at", Value: 1},
			},
			Options: options.Index().
				SetName("verification_query_1"),
		})
	}

	for _, indexModel := range indexesToCreate {
		_, err = collection.Indexes().CreateOne(ctx, indexModel)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				logger.Info("phone_verifications index already exists (created by another instance)",
					zap.String("collection", AppConfig.PhoneVerificationCollection))
				continue
			}
			logger.Error("failed to create phone_verifications index",
				zap.String("collection", AppConfig.PhoneVerificationCollection),
				zap.Error(err))
			return err
		}
	}

	if len(indexesToCreate) > 0 {
		logger.Info("created phone_verifications collection indexes",
			zap.String("collection", AppConfig.PhoneVerificationCollection),
			zap.Int("count", len(indexesToCreate)))
	} else {
		logger.Debug("phone_verifications collection indexes already exist",
			zap.String("collection", AppConfig.PhoneVerificationCollection))
	}

	return nil
}

// ensureVerificationAuditIndex creates the query index for the
// verification_audit collection
func ensureVerificationAuditIndex(ctx context.Context, logger *zap.Logger) error {
	collection := MongoDB.Collection(AppConfig.VerificationAuditCollection)

	existing, err := listIndexNames(ctx, collection)
	if err != nil {
		logger.Error("failed to list indexes", zap.Error(err))
		return err
	}

	if existing["user_id_1_created_at_-1"] {
		return nil
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().
			SetName("user_id_1_created_at_-1"),
	}

	_, err = collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		logger.Error("failed to create verification_audit index",
			zap.String("collection", AppConfig.VerificationAuditCollection),
			zap.Error(err))
		return err
	}

	logger.Info("created verification_audit collection index",
		zap.String("collection", AppConfig.VerificationAuditCollection))
	return nil
}
