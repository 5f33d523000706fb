package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/models"
	"github.com/caremarket/onboarding-api/internal/observability"
	"github.com/caremarket/onboarding-api/internal/utils"
)

// ExtractionCache is the dual-tier autofill cache for extraction results.
// Fast tier: Redis with a 30-day TTL. Durable tier: Mongo with a TTL index
// on expires_at. Entries older than the TTL by wall clock are treated as
// misses even when the store has not expired them yet.
type ExtractionCache struct {
	database *mongo.Database
	ttl      time.Duration
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewExtractionCache creates the cache with the configured TTL.
func NewExtractionCache(database *mongo.Database, ttl time.Duration) *ExtractionCache {
	return &ExtractionCache{
		database: database,
		ttl:      ttl,
		logger:   logging.Logger.With(zap.String("service", "extraction_cache")),
		now:      time.Now,
	}
}

func extractionCacheKey(userID, documentType string) string {
	return fmt.Sprintf("extraction:%s:%s", userID, documentType)
}

// Get returns the cached extraction for (userID, documentType), or nil on
// miss. Redis is consulted first; on a miss the durable tier is checked and
// a hit re-populates Redis.
func (c *ExtractionCache) Get(ctx context.Context, userID, documentType string) (*models.CachedExtraction, error) {
	cacheKey := extractionCacheKey(userID, documentType)
	ctx, span := utils.TraceCacheGet(ctx, cacheKey)
	defer span.End()

	cached, err := config.Redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var entry models.CachedExtraction
		if err := json.Unmarshal([]byte(cached), &entry); err == nil {
			if c.isFresh(&entry) {
				observability.CacheHits.WithLabelValues("extraction").Inc()
				return &entry, nil
			}
			c.purge(ctx, userID, documentType)
			return nil, nil
		}
		c.logger.Warn("corrupt extraction cache entry, dropping",
			zap.String("key", cacheKey))
		_ = config.Redis.Del(ctx, cacheKey).Err()
	} else if err != redis.Nil {
		c.logger.Warn("redis extraction cache read failed",
			zap.String("key", cacheKey),
			zap.Error(err))
	}

	// Durable tier
	var entry models.CachedExtraction
	err = c.collection().FindOne(ctx, bson.M{
		"user_id":       userID,
		"document_type": documentType,
	}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read extraction cache: %w", err)
	}

	if !c.isFresh(&entry) {
		c.purge(ctx, userID, documentType)
		return nil, nil
	}

	// Re-populate the fast tier for subsequent reads
	if data, err := json.Marshal(entry); err == nil {
		remaining := entry.CachedAt.Add(c.ttl).Sub(c.now())
		if err := config.Redis.Set(ctx, cacheKey, data, remaining).Err(); err != nil {
			c.logger.Warn("failed to re-populate redis extraction cache",
				zap.String("key", cacheKey),
				zap.Error(err))
		}
	}

	observability.CacheHits.WithLabelValues("extraction_durable").Inc()
	return &entry, nil
}

// Set stores the extraction in both tiers. A durable-tier failure is logged
// and does not fail the call; the fast tier alone still serves reads for
// its TTL.
func (c *ExtractionCache) Set(ctx context.Context, userID, documentType string, result models.ExtractionResult) error {
	cacheKey := extractionCacheKey(userID, documentType)
	ctx, span := utils.TraceCacheSet(ctx, cacheKey, c.ttl)
	defer span.End()

	now := c.now()
	entry := models.CachedExtraction{
		UserID:       userID,
		DocumentType: documentType,
		Result:       result,
		CachedAt:     now,
		ExpiresAt:    now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction cache entry: %w", err)
	}

	if err := config.Redis.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write extraction cache: %w", err)
	}

	filter := bson.M{"user_id": userID, "document_type": documentType}
	update := bson.M{"$set": entry}
	opts := options.Update().SetUpsert(true)
	if _, err := c.collection().UpdateOne(ctx, filter, update, opts); err != nil {
		c.logger.Warn("failed to write durable extraction cache tier",
			zap.String("key", cacheKey),
			zap.Error(err))
	}

	return nil
}

// Invalidate drops the entry from both tiers, best effort.
func (c *ExtractionCache) Invalidate(ctx context.Context, userID, documentType string) {
	ctx, span := utils.TraceCacheInvalidation(ctx, extractionCacheKey(userID, documentType))
	defer span.End()
	c.purge(ctx, userID, documentType)
}

func (c *ExtractionCache) purge(ctx context.Context, userID, documentType string) {
	cacheKey := extractionCacheKey(userID, documentType)
	if err := config.Redis.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.Warn("failed to purge redis extraction cache",
			zap.String("key", cacheKey),
			zap.Error(err))
	}
	_, err := c.collection().DeleteOne(ctx, bson.M{
		"user_id":       userID,
		"document_type": documentType,
	})
	if err != nil {
		c.logger.Warn("failed to purge durable extraction cache",
			zap.String("key", cacheKey),
			zap.Error(err))
	}
}

func (c *ExtractionCache) isFresh(entry *models.CachedExtraction) bool {
	return c.now().Sub(entry.CachedAt) < c.ttl
}

func (c *ExtractionCache) collection() *mongo.Collection {
	return c.database.Collection(config.AppConfig.ExtractionCacheCollection)
}
