package transcript

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gauner-audio/backend/internal/models"
)

// Cache keeps extracted transcripts in Redis so repeated requests for the same
// video skip the subprocess and network fallbacks. All cache failures degrade
// to a miss; they are logged and never surfaced.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates a transcript cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(videoID, lang string) string {
	return "transcript:" + videoID + ":" + lang
}

// Get returns the cached result for a video, or nil on miss.
func (c *Cache) Get(ctx context.Context, videoID, lang string) *models.TranscriptResult {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, cacheKey(videoID, lang)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("transcript cache read failed", zap.Error(err), zap.String("video_id", videoID))
		}
		return nil
	}
	var result models.TranscriptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("transcript cache entry corrupt", zap.Error(err), zap.String("video_id", videoID))
		return nil
	}
	return &result
}

// Put stores a result. Best effort.
func (c *Cache) Put(ctx context.Context, lang string, result *models.TranscriptResult) {
	if c == nil || c.client == nil || result == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(result.VideoID, lang), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("transcript cache write failed", zap.Error(err), zap.String("video_id", result.VideoID))
	}
}
