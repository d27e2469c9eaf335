package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-nlp/database"
	models "fin-nlp/database/models_pkg"
	"fin-nlp/matcher"
	"fin-nlp/provider"
	"fin-nlp/securityid"
)

var gmeRecord = securityid.NameRecord{
	Permno:       38703,
	Ticker:       "GME",
	CUSIP9:       "36467W109",
	IssuerName:   "GAMESTOP CORP",
	Exchange:     "N",
	SecurityType: "EQTY",
	Start:        day("2002-02-13"),
}

func dailyRow(d string, ret float64) provider.DailyRow {
	return provider.DailyRow{
		Date:   day(d),
		Return: sql.NullFloat64{Float64: ret, Valid: true},
		Volume: sql.NullFloat64{Float64: 1000, Valid: true},
	}
}

func newRefresherFixture(t *testing.T) (*database.Repository, *fakeSource) {
	t.Helper()
	repo := newTestRepository(t)

	open := time.Date(2021, 1, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSubmissions([]database.Submission{
		submission("s1", "GME", open),
		submission("s2", "GME", open.AddDate(0, 0, 1)),
		submission("s3", "ZZZZ", open),
		submission("s4", "FB", open),
		submission("s5", matcher.NoCompany, open),
	}, 10))

	source := &fakeSource{
		names: map[string][]securityid.NameRecord{
			"GME": {gmeRecord},
			"FB": {
				{Permno: 1, Ticker: "FB", Start: day("2020-01-01"), End: day("2021-12-31")},
				{Permno: 2, Ticker: "FB", Start: day("2020-01-01"), End: day("2021-12-31")},
			},
		},
		byPermno: map[int64][]securityid.NameRecord{
			38703: {gmeRecord},
		},
		daily: map[int64][]provider.DailyRow{
			38703: {
				dailyRow("2021-01-05", 0.01),
				dailyRow("2021-01-06", -0.02),
				{Date: day("2021-01-07")},
			},
		},
	}
	return repo, source
}

func TestSecurityRefresherRun(t *testing.T) {
	repo, source := newRefresherFixture(t)
	through := day("2021-12-31")

	sr := NewSecurityRefresher(source, repo, newTestResolver(t), through, day("2021-01-01"), 100, nopLogger())
	stats, err := sr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Submissions)
	assert.Equal(t, 1, stats.Refreshed)
	assert.Equal(t, 1, stats.Unresolved)
	assert.Equal(t, 1, stats.Ambiguous)
	assert.Equal(t, 1, stats.ReturnsSaved)
	assert.Equal(t, 3, stats.RowsSaved)
	assert.Equal(t, 1, source.dailyCalls)

	sec, err := repo.GetSecurity(38703)
	require.NoError(t, err)
	require.NotNil(t, sec)
	isin, err := securityid.ISIN("US", "36467W109")
	require.NoError(t, err)
	assert.Equal(t, isin, sec.ISIN)
	assert.Equal(t, "GME", sec.Ticker)
	assert.Equal(t, "GME", sec.MatchedTicker)
	assert.Equal(t, "GAMESTOP CORP", sec.IssuerName)
	assert.Equal(t, "2021-12-31", sec.LastUpdated)

	rows, err := repo.ReturnSeries(38703, "2021-01-01", "2021-12-31")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2021-01-05", rows[0].MktDate)
	assert.InDelta(t, 0.01, rows[0].Return.Float64, 1e-12)
	assert.False(t, rows[2].Return.Valid)

	// a second run finds everything current and does not call the provider
	// for returns again
	stats, err = sr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Refreshed)
	assert.Equal(t, 1, stats.AlreadyFresh)
	assert.Equal(t, 0, stats.ReturnsSaved)
	assert.Equal(t, 1, source.dailyCalls)
}

func TestSecurityRefresherAdvancingHorizon(t *testing.T) {
	repo, source := newRefresherFixture(t)

	first := NewSecurityRefresher(source, repo, newTestResolver(t), day("2021-01-06"), day("2021-01-01"), 100, nopLogger())
	stats, err := first.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RowsSaved)

	// the provider publishes more data and the horizon moves
	source.daily[38703] = append(source.daily[38703], dailyRow("2021-06-01", 0.05))

	later := NewSecurityRefresher(source, repo, newTestResolver(t), day("2021-12-31"), day("2021-01-01"), 100, nopLogger())
	stats, err = later.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Refreshed)
	assert.Equal(t, 0, stats.AlreadyFresh)
	assert.Equal(t, 1, stats.ReturnsSaved)
	assert.Equal(t, 2, stats.RowsSaved, "only rows after the last stored day are fetched")
	assert.Equal(t, 2, source.dailyCalls)

	rows, err := repo.ReturnSeries(38703, "2021-01-01", "2021-12-31")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2021-06-01", rows[3].MktDate)

	sec, err := repo.GetSecurity(38703)
	require.NoError(t, err)
	assert.Equal(t, "2021-12-31", sec.LastUpdated)
}

func TestSecurityRefresherKeepsWatermarkWhenReturnsFail(t *testing.T) {
	repo, source := newRefresherFixture(t)
	require.NoError(t, repo.UpsertSecurity(&database.Security{
		Permno:      38703,
		Ticker:      "GME",
		LastUpdated: "2021-01-06",
	}))
	failing := &failingReturns{fakeSource: source}

	sr := NewSecurityRefresher(failing, repo, newTestResolver(t), day("2021-12-31"), day("2021-01-01"), 100, nopLogger())
	stats, err := sr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Refreshed)

	sec, err := repo.GetSecurity(38703)
	require.NoError(t, err)
	assert.Equal(t, "2021-01-06", sec.LastUpdated)
}

// failingReturns resolves names but cannot fetch daily rows
type failingReturns struct {
	*fakeSource
}

func (f *failingReturns) DailyReturns(ctx context.Context, permno int64, start, end time.Time) ([]provider.DailyRow, error) {
	return nil, errors.New("permission denied for table dsf_v2")
}

func TestSecurityRefresherNoCurrentTicker(t *testing.T) {
	repo, source := newRefresherFixture(t)
	source.byPermno = nil

	sr := NewSecurityRefresher(source, repo, newTestResolver(t), day("2021-12-31"), day("2021-01-01"), 100, nopLogger())
	_, err := sr.Run(context.Background())
	require.NoError(t, err)

	sec, err := repo.GetSecurity(38703)
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, models.NoCurrentTicker, sec.Ticker)
	assert.Equal(t, "GME", sec.MatchedTicker)
}

func TestSecurityRefresherStaleIdentity(t *testing.T) {
	repo, source := newRefresherFixture(t)
	require.NoError(t, repo.UpsertSecurity(&database.Security{
		Permno:      38703,
		Ticker:      "GME",
		LastUpdated: "2020-12-31",
	}))

	sr := NewSecurityRefresher(source, repo, newTestResolver(t), day("2021-12-31"), day("2021-01-01"), 100, nopLogger())
	stats, err := sr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Refreshed)

	sec, err := repo.GetSecurity(38703)
	require.NoError(t, err)
	assert.Equal(t, "2021-12-31", sec.LastUpdated)
}

func TestSecurityRefresherStopsWhenUnreachable(t *testing.T) {
	repo, source := newRefresherFixture(t)
	source.err = fmt.Errorf("%w: NameHistory failed after 5 attempts: connection refused", provider.ErrUnreachable)

	sr := NewSecurityRefresher(source, repo, newTestResolver(t), day("2021-12-31"), day("2021-01-01"), 100, nopLogger())
	stats, err := sr.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrUnreachable))
	assert.Equal(t, 1, stats.Submissions)
	assert.Equal(t, 1, source.nameCalls)
}

func TestSecurityRefresherSkipsPermanentErrors(t *testing.T) {
	repo, source := newRefresherFixture(t)
	source.err = errors.New("relation does not exist")

	sr := NewSecurityRefresher(source, repo, newTestResolver(t), day("2021-12-31"), day("2021-01-01"), 100, nopLogger())
	stats, err := sr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Submissions)
	assert.Equal(t, 0, stats.Refreshed)
}
