// Package provider queries the remote security master and daily returns
// tables. The provider is a Postgres endpoint reached through lib/pq.
//
// Every call waits on a client-side rate limiter, runs under a per-call
// timeout and is retried with exponential backoff while it fails with a
// transient error. Rows come back in no guaranteed order; callers sort.
package provider

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fin-nlp/securityid"
)

const (
	// DefaultNamesTable is the CRSP name history table
	DefaultNamesTable = "crsp_q_stock.stocknames_v2"

	// DefaultReturnsTable is the CRSP daily stock file
	DefaultReturnsTable = "crsp_q_stock.dsf"

	// DefaultTimeout is the default per-call timeout
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (calls per second)
	DefaultRateLimit = 5
)

const dateLayout = "2006-01-02"

// DailyRow is one day of a security's market data
type DailyRow struct {
	Date              time.Time
	Return            sql.NullFloat64
	Volume            sql.NullFloat64
	SharesOutstanding sql.NullFloat64
	TradeCount        sql.NullFloat64
	IndustryCode      sql.NullInt64
}

// NameCache stores name history lookups between runs
type NameCache interface {
	GetNames(ctx context.Context, key string) ([]securityid.NameRecord, bool)
	SetNames(ctx context.Context, key string, records []securityid.NameRecord) error
}

// Client is a provider client
type Client struct {
	db           *sql.DB
	namesTable   string
	returnsTable string
	timeout      time.Duration
	retry        RetryPolicy
	limiter      *rate.Limiter
	cache        NameCache
	log          *zap.SugaredLogger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithTables overrides the qualified table names
func WithTables(names, returns string) ClientOption {
	return func(c *Client) {
		if names != "" {
			c.namesTable = names
		}
		if returns != "" {
			c.returnsTable = returns
		}
	}
}

// WithCallTimeout sets the per-call timeout
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryPolicy sets how failed calls are retried
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithRateLimit sets a custom rate limit
func WithRateLimit(callsPerSecond float64) ClientOption {
	return func(c *Client) {
		if callsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(callsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst)
	}
}

// WithNameCache caches name history lookups
func WithNameCache(cache NameCache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets a logger
func WithLogger(log *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a provider client over an open connection
func NewClient(db *sql.DB, opts ...ClientOption) *Client {
	c := &Client{
		db:           db,
		namesTable:   DefaultNamesTable,
		returnsTable: DefaultReturnsTable,
		timeout:      DefaultTimeout,
		retry:        DefaultRetryPolicy,
		limiter:      rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:          zap.NewNop().Sugar(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NameHistory returns the name records of ticker that cover asOf
func (c *Client) NameHistory(ctx context.Context, ticker string, asOf time.Time) ([]securityid.NameRecord, error) {
	day := asOf.Format(dateLayout)
	key := fmt.Sprintf("ticker:%s:%s", ticker, day)
	if records, ok := c.cached(ctx, key); ok {
		return records, nil
	}

	query := fmt.Sprintf(`
		SELECT permno, ticker, cusip9, issuernm, primaryexch, securitytype, securitysubtype, namedt, nameenddt
		FROM %s
		WHERE ticker = $1
		AND namedt <= $2
		AND nameenddt >= $2`, c.namesTable)

	records, err := c.names(ctx, "NameHistory", query, ticker, day)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, records)
	return records, nil
}

// NameHistoryByPermno returns the name records of permno that cover asOf
func (c *Client) NameHistoryByPermno(ctx context.Context, permno int64, asOf time.Time) ([]securityid.NameRecord, error) {
	day := asOf.Format(dateLayout)
	key := fmt.Sprintf("permno:%d:%s", permno, day)
	if records, ok := c.cached(ctx, key); ok {
		return records, nil
	}

	query := fmt.Sprintf(`
		SELECT permno, ticker, cusip9, issuernm, primaryexch, securitytype, securitysubtype, namedt, nameenddt
		FROM %s
		WHERE permno = $1
		AND namedt <= $2
		AND nameenddt >= $2`, c.namesTable)

	records, err := c.names(ctx, "NameHistoryByPermno", query, permno, day)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, records)
	return records, nil
}

// DailyReturns returns the daily rows of permno between start and end
// inclusive, oldest first
func (c *Client) DailyReturns(ctx context.Context, permno int64, start, end time.Time) ([]DailyRow, error) {
	query := fmt.Sprintf(`
		SELECT date, ret, vol, shrout, numtrd, hsiccd
		FROM %s
		WHERE permno = $1
		AND date >= $2
		AND date <= $3`, c.returnsTable)

	var rows []DailyRow
	err := c.do(ctx, "DailyReturns", func(ctx context.Context) error {
		rows = rows[:0]
		result, err := c.db.QueryContext(ctx, query, permno, start.Format(dateLayout), end.Format(dateLayout))
		if err != nil {
			return err
		}
		defer result.Close()

		for result.Next() {
			var row DailyRow
			if err := result.Scan(&row.Date, &row.Return, &row.Volume, &row.SharesOutstanding, &row.TradeCount, &row.IndustryCode); err != nil {
				return err
			}
			row.Date = day(row.Date)
			rows = append(rows, row)
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows, nil
}

func (c *Client) names(ctx context.Context, op, query string, args ...interface{}) ([]securityid.NameRecord, error) {
	var records []securityid.NameRecord
	err := c.do(ctx, op, func(ctx context.Context) error {
		records = records[:0]
		result, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer result.Close()

		for result.Next() {
			var (
				rec                               securityid.NameRecord
				cusip, issuer, exch, typ, subtype sql.NullString
				start                             time.Time
				end                               sql.NullTime
			)
			if err := result.Scan(&rec.Permno, &rec.Ticker, &cusip, &issuer, &exch, &typ, &subtype, &start, &end); err != nil {
				return err
			}
			rec.CUSIP9 = cusip.String
			rec.IssuerName = issuer.String
			rec.Exchange = exch.String
			rec.SecurityType = typ.String
			rec.SecuritySubtype = subtype.String
			rec.Start = day(start)
			if end.Valid {
				rec.End = day(end.Time)
			}
			records = append(records, rec)
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) cached(ctx context.Context, key string) ([]securityid.NameRecord, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.GetNames(ctx, key)
}

func (c *Client) store(ctx context.Context, key string, records []securityid.NameRecord) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetNames(ctx, key, records); err != nil {
		c.log.Debugw("name cache write failed", "key", key, "error", err)
	}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
