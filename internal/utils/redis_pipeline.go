package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/caremarket/onboarding-api/internal/config"
	"github.com/caremarket/onboarding-api/internal/logging"
)

// RedisPipeline batches cache operations into a single round trip. The
// extraction cache uses it to drop all of a user's keys at once.
type RedisPipeline struct {
	ctx context.Context
}

// NewRedisPipeline creates a new Redis pipeline utility
func NewRedisPipeline(ctx context.Context) *RedisPipeline {
	return &RedisPipeline{ctx: ctx}
}

// BatchDelete deletes multiple keys using a Redis pipeline
func (rp *RedisPipeline) BatchDelete(keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	start := time.Now()
	pipe := config.Redis.Pipeline()

	for _, key := range keys {
		pipe.Del(rp.ctx, key)
	}

	cmds, err := pipe.Exec(rp.ctx)
	if err != nil {
		logging.Logger.Error("failed to execute Redis pipeline",
			zap.Error(err),
			zap.Int("key_count", len(keys)))
		return err
	}

	logging.Logger.Debug("Redis pipeline batch delete completed",
		zap.Int("key_count", len(keys)),
		zap.Int("command_count", len(cmds)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// BatchSet sets multiple key-value pairs with a shared TTL using a Redis pipeline
func (rp *RedisPipeline) BatchSet(keyValues map[string]interface{}, ttl time.Duration) error {
	if len(keyValues) == 0 {
		return nil
	}

	start := time.Now()
	pipe := config.Redis.Pipeline()

	for key, value := range keyValues {
		pipe.Set(rp.ctx, key, value, ttl)
	}

	cmds, err := pipe.Exec(rp.ctx)
	if err != nil {
		logging.Logger.Error("failed to execute Redis pipeline",
			zap.Error(err),
			zap.Int("key_count", len(keyValues)))
		return err
	}

	logging.Logger.Debug("Redis pipeline batch set completed",
		zap.Int("key_count", len(keyValues)),
		zap.Int("command_count", len(cmds)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// BatchGet retrieves multiple string values using a Redis pipeline. Keys that
// do not exist are omitted from the result map.
func (rp *RedisPipeline) BatchGet(keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return make(map[string]string), nil
	}

	start := time.Now()
	pipe := config.Redis.Pipeline()

	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(rp.ctx, key)
	}

	if _, err := pipe.Exec(rp.ctx); err != nil && err != redis.Nil {
		logging.Logger.Error("failed to execute Redis pipeline",
			zap.Error(err),
			zap.Int("key_count", len(keys)))
		return nil, err
	}

	results := make(map[string]string)
	for i, cmd := range cmds {
		val, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		results[keys[i]] = val
	}

	logging.Logger.Debug("Redis pipeline batch get completed",
		zap.Int("key_count", len(keys)),
		zap.Int("result_count", len(results)),
		zap.Duration("duration", time.Since(start)))

	return results, nil
}
