package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-nlp/database"
	"fin-nlp/matcher"
)

func postLine(t *testing.T, id, title, domain, body string) string {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"created_utc": 1609772400,
		"domain":      domain,
		"title":       title,
		"selftext":    body,
		"permalink":   "/r/wallstreetbets/" + id,
	})
	require.NoError(t, err)
	return string(b)
}

func TestSubmissionIngestorRun(t *testing.T) {
	repo := newTestRepository(t)
	const domain = "self.wallstreetbets"

	input := strings.Join([]string{
		postLine(t, "p1", "Buy $GME now", domain, longBody),
		postLine(t, "p2", "My DD on the housing market", domain, longBody),
		postLine(t, "p3", "$TSLA", domain, "too short"),
		`{"id":`,
		postLine(t, "p4", "What a week", domain, longBody),
		postLine(t, "p5", "Is $GME or $AMC the better buy", domain, longBody),
		postLine(t, "p6", "$TSLA deliveries DD", domain, longBody),
		postLine(t, "p7", "$AMC", "self.investing", longBody),
	}, "\n")

	si := NewSubmissionIngestor(newTestMatcher(), repo, 2, nopLogger())
	tally := matcher.NewTally()
	require.NoError(t, si.Run(context.Background(), strings.NewReader(input), tally))

	assert.Equal(t, 8, tally.Seen)
	assert.Equal(t, 1, tally.Malformed)
	assert.Equal(t, 2, tally.Ineligible)
	assert.Equal(t, 1, tally.NoMatch)
	assert.Equal(t, 1, tally.Ambiguous)
	assert.Equal(t, 3, tally.Qualified())
	assert.Equal(t, 2, tally.DD)

	count, err := repo.CountSubmissions()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	p1, err := repo.GetSubmission("p1")
	require.NoError(t, err)
	require.NotNil(t, p1)
	assert.Equal(t, "GME", p1.CompanyMatch)
	assert.Equal(t, string(matcher.TickerWithSymbol), p1.MatchType)
	assert.False(t, p1.IsDD)
	assert.JSONEq(t, `{"permalink":"/r/wallstreetbets/p1"}`, string(p1.Metadata))

	p2, err := repo.GetSubmission("p2")
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.Equal(t, matcher.NoCompany, p2.CompanyMatch)
	assert.True(t, p2.IsDD)

	p5, err := repo.GetSubmission("p5")
	require.NoError(t, err)
	assert.Nil(t, p5)

	// replaying the same input leaves one row per post
	require.NoError(t, si.Run(context.Background(), strings.NewReader(input), matcher.NewTally()))
	count, err = repo.CountSubmissions()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

type failingStore struct{}

func (failingStore) SaveSubmissions(batch []database.Submission, batchSize int) error {
	return errors.New("disk full")
}

func TestSubmissionIngestorStopsOnStoreError(t *testing.T) {
	input := postLine(t, "p1", "Buy $GME now", "self.wallstreetbets", longBody)

	si := NewSubmissionIngestor(newTestMatcher(), failingStore{}, 10, nopLogger())
	err := si.Run(context.Background(), strings.NewReader(input), matcher.NewTally())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSubmissionIngestorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	si := NewSubmissionIngestor(newTestMatcher(), failingStore{}, 10, nopLogger())
	err := si.Run(ctx, strings.NewReader("{}"), matcher.NewTally())
	assert.True(t, errors.Is(err, context.Canceled))
}
