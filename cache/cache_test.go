package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fin-nlp/securityid"
)

func TestCachesWithoutRedisNeverHit(t *testing.T) {
	ctx := context.Background()

	pc := NewProviderCache(nil, time.Hour)
	_, ok := pc.GetNames(ctx, "ticker:GME:2021-02-01")
	assert.False(t, ok)
	assert.Error(t, pc.SetNames(ctx, "ticker:GME:2021-02-01", []securityid.NameRecord{{Permno: 1}}))

	var nilCache *ProviderCache
	_, ok = nilCache.GetNames(ctx, "x")
	assert.False(t, ok)

	sc := NewSentimentCache(nil, time.Hour)
	_, ok = sc.GetScore(ctx, "gpt-4o-mini", "text")
	assert.False(t, ok)
	assert.Error(t, sc.SetScore(ctx, "gpt-4o-mini", "text", Score{MarketSentiment: 1}))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "provider:names:ticker:GME:2021-02-01", providerKey("ticker:GME:2021-02-01"))

	k := sentimentKey("m", "hello")
	assert.Equal(t, "llm:sentiment:m:"+TextHash("hello"), k)
	assert.Len(t, TextHash("hello"), 16)
	assert.NotEqual(t, TextHash("hello"), TextHash("hello!"))
}
