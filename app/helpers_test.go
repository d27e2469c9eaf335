package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fin-nlp/calendar"
	"fin-nlp/config"
	"fin-nlp/database"
	"fin-nlp/llm"
	"fin-nlp/matcher"
	"fin-nlp/provider"
	"fin-nlp/reference"
	"fin-nlp/securityid"
)

var longBody = strings.Repeat("word ", 80)

func newTestRepository(t *testing.T) *database.Repository {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewRepository(db)
	require.NoError(t, repo.InitSchema())
	return repo
}

func newTestResolver(t *testing.T) *calendar.Resolver {
	t.Helper()
	cal, err := calendar.NYSE()
	require.NoError(t, err)
	return calendar.NewResolver(cal, calendar.DefaultWindowDays)
}

func newTestMatcher() *matcher.Matcher {
	refs := reference.Build(
		[]reference.CompanyRow{
			{Ticker: "GME", Alias: "GameStop"},
			{Ticker: "AMC", Alias: "AMC Entertainment"},
			{Ticker: "TSLA", Alias: "Tesla"},
		},
		nil, nil, nil,
	)
	return matcher.New(refs, matcher.WithDomain("self.wallstreetbets"), matcher.WithMinWords(60))
}

func nopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeSource stands in for the provider
type fakeSource struct {
	names    map[string][]securityid.NameRecord
	byPermno map[int64][]securityid.NameRecord
	daily    map[int64][]provider.DailyRow
	err      error

	nameCalls  int
	dailyCalls int
}

func (f *fakeSource) NameHistory(ctx context.Context, ticker string, asOf time.Time) ([]securityid.NameRecord, error) {
	f.nameCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.names[ticker], nil
}

func (f *fakeSource) NameHistoryByPermno(ctx context.Context, permno int64, asOf time.Time) ([]securityid.NameRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byPermno[permno], nil
}

func (f *fakeSource) DailyReturns(ctx context.Context, permno int64, start, end time.Time) ([]provider.DailyRow, error) {
	f.dailyCalls++
	if f.err != nil {
		return nil, f.err
	}
	var out []provider.DailyRow
	for _, r := range f.daily[permno] {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// fakeScorer replies per title
type fakeScorer struct {
	replies map[string]llm.Sentiment
	errs    map[string]error
	calls   int
}

func (f *fakeScorer) ScoreSentiment(ctx context.Context, title, selftext string, maxChars int) (llm.Sentiment, error) {
	f.calls++
	if err, ok := f.errs[title]; ok {
		return llm.Sentiment{}, err
	}
	return f.replies[title], nil
}

func (f *fakeScorer) Model() string {
	return "test-model"
}

func submission(id, ticker string, created time.Time) database.Submission {
	mt := string(matcher.TickerWithSymbol)
	if ticker == matcher.NoCompany {
		mt = string(matcher.DDNoMatch)
	}
	return database.Submission{
		ID:           id,
		CreatedUTC:   created.Unix(),
		Domain:       "self.wallstreetbets",
		Title:        "$" + ticker + " thoughts",
		Selftext:     longBody,
		CompanyMatch: ticker,
		MatchType:    mt,
		IngestedAt:   time.Now().UTC(),
	}
}
