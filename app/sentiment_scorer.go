package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fin-nlp/cache"
	"fin-nlp/database"
	"fin-nlp/llm"
)

// SentimentStore is the local side of the sentiment stage
type SentimentStore interface {
	ListUnscored(limit int) ([]database.Submission, error)
	UpsertSentiment(score *database.SentimentScore) error
}

// Scorer rates one post
type Scorer interface {
	ScoreSentiment(ctx context.Context, title, selftext string, maxChars int) (llm.Sentiment, error)
	Model() string
}

// SentimentStats counts the outcomes of a sentiment run
type SentimentStats struct {
	Submissions int
	Scored      int
	Cached      int
	Invalid     int
	Failed      int
}

// SentimentScorer scores every stored post that has no score yet
type SentimentScorer struct {
	scorer   Scorer
	store    SentimentStore
	cache    *cache.SentimentCache
	maxChars int
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewSentimentScorer creates a new sentiment scorer. sc may be nil.
func NewSentimentScorer(scorer Scorer, store SentimentStore, sc *cache.SentimentCache, maxChars int, log *zap.SugaredLogger) *SentimentScorer {
	return &SentimentScorer{
		scorer:   scorer,
		store:    store,
		cache:    sc,
		maxChars: maxChars,
		log:      log,
		now:      time.Now,
	}
}

// Run scores up to limit unscored posts (0 for all). A reply that does not
// parse is logged and the post stays unscored for the next run.
func (ss *SentimentScorer) Run(ctx context.Context, limit int) (SentimentStats, error) {
	var stats SentimentStats

	subs, err := ss.store.ListUnscored(limit)
	if err != nil {
		return stats, fmt.Errorf("list unscored: %w", err)
	}
	ss.log.Infof("🤖 Scoring %d submissions with %s", len(subs), ss.scorer.Model())

	for i := range subs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Submissions++
		sub := &subs[i]

		score, cached, err := ss.score(ctx, sub)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return stats, err
			}
			if errors.Is(err, llm.ErrInvalidScore) {
				stats.Invalid++
				ss.log.Warnw("⚠️ Unusable sentiment reply", "id", sub.ID, "error", err)
				continue
			}
			stats.Failed++
			var apiErr *llm.APIError
			if errors.As(err, &apiErr) {
				ss.log.Errorw("❌ LLM request rejected", "id", sub.ID, "status", apiErr.StatusCode)
			} else {
				ss.log.Errorw("❌ LLM request failed", "id", sub.ID, "error", err)
			}
			continue
		}
		if cached {
			stats.Cached++
		}

		if err := ss.store.UpsertSentiment(&database.SentimentScore{
			PostID:          sub.ID,
			MarketSentiment: score.MarketSentiment,
			WritingQuality:  score.WritingQuality,
			Model:           ss.scorer.Model(),
			ScoredAt:        ss.now().UTC(),
		}); err != nil {
			return stats, err
		}
		stats.Scored++
		ss.log.Debugw("Scored post", "id", sub.ID, "sentiment", score.MarketSentiment, "quality", score.WritingQuality, "cached", cached)
	}

	ss.log.Infof("✅ Sentiment: %d scored (%d from cache), %d invalid replies, %d failed",
		stats.Scored, stats.Cached, stats.Invalid, stats.Failed)
	return stats, nil
}

func (ss *SentimentScorer) score(ctx context.Context, sub *database.Submission) (cache.Score, bool, error) {
	text := sub.Title + "\n" + sub.Selftext
	if hit, ok := ss.cache.GetScore(ctx, ss.scorer.Model(), text); ok {
		return *hit, true, nil
	}

	s, err := ss.scorer.ScoreSentiment(ctx, sub.Title, sub.Selftext, ss.maxChars)
	if err != nil {
		return cache.Score{}, false, err
	}
	score := cache.Score{MarketSentiment: s.MarketSentiment, WritingQuality: s.WritingQuality}
	if ss.cache != nil {
		if err := ss.cache.SetScore(ctx, ss.scorer.Model(), text, score); err != nil {
			ss.log.Debugw("Sentiment not cached", "id", sub.ID, "error", err)
		}
	}
	return score, false, nil
}
