package provider

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fin-nlp/securityid"
)

// newTestDB stands in for the provider with a SQLite database holding the
// same columns as the CRSP tables
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	db, err := gdb.DB()
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE stocknames (
			permno INTEGER, ticker TEXT, cusip9 TEXT, issuernm TEXT, primaryexch TEXT,
			securitytype TEXT, securitysubtype TEXT, namedt DATE, nameenddt DATE)`,
		`CREATE TABLE dsf (
			permno INTEGER, date DATE, ret REAL, vol REAL, shrout REAL, numtrd REAL, hsiccd INTEGER)`,
		`INSERT INTO stocknames VALUES
			(38703, 'GME', '36467W109', 'GAMESTOP CORP', 'N', 'EQTY', 'COM', '2002-02-13', '2024-12-31'),
			(10001, 'FB', '30303M102', 'FACEBOOK INC', 'Q', 'EQTY', 'COM', '2012-05-18', '2022-06-08'),
			(13407, 'FB', '30303M102', 'META PLATFORMS INC', 'Q', 'EQTY', 'COM', '2021-10-28', '2022-06-08'),
			(77777, 'OLD', NULL, NULL, NULL, NULL, NULL, '1990-01-01', '1999-12-31')`,
		`INSERT INTO dsf VALUES
			(38703, '2021-02-03', 0.03, 100, 70, 10, 5734),
			(38703, '2021-02-01', 0.01, 100, 70, 10, 5734),
			(38703, '2021-02-02', NULL, 100, 70, NULL, 5734),
			(38703, '2021-03-01', -0.5, 100, 70, 10, 5734)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return db
}

func newTestClient(t *testing.T, opts ...ClientOption) *Client {
	base := []ClientOption{WithTables("stocknames", "dsf"), WithRateLimit(0)}
	return NewClient(newTestDB(t), append(base, opts...)...)
}

func TestNameHistory(t *testing.T) {
	c := newTestClient(t)
	asOf := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)

	records, err := c.NameHistory(context.Background(), "GME", asOf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(38703), records[0].Permno)
	assert.Equal(t, "36467W109", records[0].CUSIP9)
	assert.Equal(t, "GAMESTOP CORP", records[0].IssuerName)
	assert.Equal(t, time.Date(2002, 2, 13, 0, 0, 0, 0, time.UTC), records[0].Start)

	sel, err := securityid.Select(records, asOf)
	require.NoError(t, err)
	assert.Equal(t, int64(38703), sel.Permno)

	none, err := c.NameHistory(context.Background(), "GME", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNameHistoryMultipleRows(t *testing.T) {
	c := newTestClient(t)
	asOf := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

	records, err := c.NameHistory(context.Background(), "FB", asOf)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The tighter record wins
	sel, err := securityid.Select(records, asOf)
	require.NoError(t, err)
	assert.Equal(t, int64(13407), sel.Permno)
}

func TestNameHistoryByPermnoNullColumns(t *testing.T) {
	c := newTestClient(t)

	records, err := c.NameHistoryByPermno(context.Background(), 77777, time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "OLD", records[0].Ticker)
	assert.Empty(t, records[0].CUSIP9)
}

func TestDailyReturnsSortedAndBounded(t *testing.T) {
	c := newTestClient(t)

	rows, err := c.DailyReturns(context.Background(), 38703,
		time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, time.Date(2021, 2, 3, 0, 0, 0, 0, time.UTC), rows[2].Date)
	assert.False(t, rows[1].Return.Valid)
	assert.False(t, rows[1].TradeCount.Valid)
	assert.Equal(t, int64(5734), rows[0].IndustryCode.Int64)
}

func TestQueryErrorsAreNotRetried(t *testing.T) {
	c := NewClient(newTestDB(t), WithTables("missing_table", "dsf"), WithRateLimit(0))

	_, err := c.NameHistory(context.Background(), "GME", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnreachable)
}

type memoryNameCache struct {
	mu      sync.Mutex
	entries map[string][]securityid.NameRecord
	hits    int
}

func (m *memoryNameCache) GetNames(_ context.Context, key string) ([]securityid.NameRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.entries[key]
	if ok {
		m.hits++
	}
	return recs, ok
}

func (m *memoryNameCache) SetNames(_ context.Context, key string, records []securityid.NameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = records
	return nil
}

func TestNameHistoryUsesCache(t *testing.T) {
	cache := &memoryNameCache{entries: map[string][]securityid.NameRecord{}}
	c := newTestClient(t, WithNameCache(cache))
	asOf := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)

	first, err := c.NameHistory(context.Background(), "GME", asOf)
	require.NoError(t, err)
	second, err := c.NameHistory(context.Background(), "GME", asOf)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.hits)
	assert.Contains(t, cache.entries, "ticker:GME:2021-02-01")
}
