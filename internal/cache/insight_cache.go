package cache

import (
	"fmt"
	"time"

	"github.com/noteduco342/campus-stories-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// Insights change on every view/like write, so the TTL is short and every
// engagement write invalidates.
const InsightsTTL = 30 * time.Second

// InsightCache caches per-story engagement breakdowns for the owner overlay.
type InsightCache struct {
	redis *RedisCache
}

// NewInsightCache creates a new insight cache
func NewInsightCache(redis *RedisCache) *InsightCache {
	return &InsightCache{redis: redis}
}

func insightKey(storyID uint) string {
	return fmt.Sprintf("insights:%d", storyID)
}

// Get retrieves cached insights for a story
func (ic *InsightCache) Get(storyID uint) (*models.StoryInsights, bool) {
	if ic == nil || ic.redis == nil {
		return nil, false
	}
	data, err := ic.redis.Get(insightKey(storyID))
	if err != nil || data == nil {
		return nil, false
	}

	var insights models.StoryInsights
	if err := msgpack.Unmarshal(data, &insights); err != nil {
		return nil, false
	}
	return &insights, true
}

// Set caches insights for a story
func (ic *InsightCache) Set(storyID uint, insights *models.StoryInsights) error {
	if ic == nil || ic.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(insights)
	if err != nil {
		return err
	}
	return ic.redis.Set(insightKey(storyID), data, InsightsTTL)
}

// Invalidate removes cached insights after an engagement write or delete
func (ic *InsightCache) Invalidate(storyID uint) {
	if ic == nil || ic.redis == nil {
		return
	}
	_ = ic.redis.Delete(insightKey(storyID))
}
