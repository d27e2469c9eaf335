package cache

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"
)

// Score is a cached sentiment result
type Score struct {
	MarketSentiment int `json:"market_sentiment"`
	WritingQuality  int `json:"writing_quality"`
}

// SentimentCache stores LLM sentiment results keyed by model and text, so a
// reposted text is not scored twice
type SentimentCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewSentimentCache creates a new sentiment cache instance
func NewSentimentCache(redis *RedisClient, ttl time.Duration) *SentimentCache {
	return &SentimentCache{
		redis: redis,
		ttl:   ttl,
	}
}

// TextHash creates a short hash of the scored text
func TextHash(text string) string {
	hash := md5.Sum([]byte(text))
	return fmt.Sprintf("%x", hash[:8]) // Use first 8 bytes for shorter hash
}

func sentimentKey(model, text string) string {
	return fmt.Sprintf("llm:sentiment:%s:%s", model, TextHash(text))
}

// GetScore retrieves a cached score for text
func (c *SentimentCache) GetScore(ctx context.Context, model, text string) (*Score, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	var score Score
	if err := c.redis.Get(ctx, sentimentKey(model, text), &score); err != nil {
		return nil, false
	}

	return &score, true
}

// SetScore caches the score of text
func (c *SentimentCache) SetScore(ctx context.Context, model, text string, score Score) error {
	if c == nil || c.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	return c.redis.Set(ctx, sentimentKey(model, text), score, c.ttl)
}
