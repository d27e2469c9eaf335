package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"go.uber.org/zap"

	"fin-nlp/calendar"
	"fin-nlp/database"
	models "fin-nlp/database/models_pkg"
	"fin-nlp/matcher"
	"fin-nlp/provider"
	"fin-nlp/securityid"
)

// SecuritySource is the provider side of the security refresh
type SecuritySource interface {
	NameHistory(ctx context.Context, ticker string, asOf time.Time) ([]securityid.NameRecord, error)
	NameHistoryByPermno(ctx context.Context, permno int64, asOf time.Time) ([]securityid.NameRecord, error)
	DailyReturns(ctx context.Context, permno int64, start, end time.Time) ([]provider.DailyRow, error)
}

// SecurityStore is the local side of the security refresh
type SecurityStore interface {
	ListMatchedSubmissions(noCompany string, limit int) ([]database.Submission, error)
	GetSecurity(permno int64) (*database.Security, error)
	UpsertSecurity(sec *database.Security) error
	LatestReturnDate(permno int64) (string, error)
	SaveReturns(rows []database.ReturnRecord, batchSize int) error
}

// RefreshStats counts the outcomes of a security refresh
type RefreshStats struct {
	Submissions  int
	Unresolved   int
	Ambiguous    int
	Refreshed    int
	AlreadyFresh int
	ReturnsSaved int
	RowsSaved    int
}

// SecurityRefresher resolves the security behind every matched post and
// keeps its identity row and daily returns current through the data
// horizon. The identity row's LastUpdated is the watermark: it only moves
// once the returns up to it are stored.
type SecurityRefresher struct {
	source      SecuritySource
	store       SecurityStore
	resolver    *calendar.Resolver
	through     time.Time
	returnsFrom time.Time
	batchSize   int
	log         *zap.SugaredLogger
	now         func() time.Time
}

// NewSecurityRefresher creates a new security refresher. through is the
// latest date the provider has data for.
func NewSecurityRefresher(source SecuritySource, store SecurityStore, resolver *calendar.Resolver, through, returnsFrom time.Time, batchSize int, log *zap.SugaredLogger) *SecurityRefresher {
	return &SecurityRefresher{
		source:      source,
		store:       store,
		resolver:    resolver,
		through:     calendar.Day(through),
		returnsFrom: calendar.Day(returnsFrom),
		batchSize:   batchSize,
		log:         log,
		now:         time.Now,
	}
}

// Run refreshes every matched post's security. Per-post problems are
// logged and skipped; a provider that stays unreachable stops the run.
func (sr *SecurityRefresher) Run(ctx context.Context) (RefreshStats, error) {
	var stats RefreshStats

	subs, err := sr.store.ListMatchedSubmissions(matcher.NoCompany, 0)
	if err != nil {
		return stats, fmt.Errorf("list submissions: %w", err)
	}
	sr.log.Infof("🔄 Refreshing securities for %d submissions", len(subs))

	// permnos already handled in this run
	done := make(map[int64]bool)

	for i := range subs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Submissions++
		if err := sr.refresh(ctx, &subs[i], done, &stats); err != nil {
			if errors.Is(err, provider.ErrUnreachable) || errors.Is(err, context.Canceled) {
				return stats, err
			}
			sr.log.Errorw("❌ Security refresh failed", "id", subs[i].ID, "ticker", subs[i].CompanyMatch, "error", err)
		}
	}

	sr.log.Infof("✅ Securities: %d refreshed, %d already current, %d unresolved, %d ambiguous, %d return series saved (%d rows)",
		stats.Refreshed, stats.AlreadyFresh, stats.Unresolved, stats.Ambiguous, stats.ReturnsSaved, stats.RowsSaved)
	return stats, nil
}

func (sr *SecurityRefresher) refresh(ctx context.Context, sub *database.Submission, done map[int64]bool, stats *RefreshStats) error {
	ticker := sub.CompanyMatch
	res, err := sr.resolver.Resolve(postDay(sub))
	if err != nil {
		stats.Unresolved++
		sr.log.Warnw("⚠️ No market date", "id", sub.ID, "error", err)
		return nil
	}
	if res.Degraded {
		sr.log.Warnw("⚠️ Market date degraded to last known session", "id", sub.ID, "market_date", res.Date().Format(models.DateLayout))
	}
	marketDate := res.Date()

	records, err := sr.source.NameHistory(ctx, ticker, marketDate)
	if err != nil {
		return err
	}
	if len(records) > 1 {
		sr.log.Warnw("⚠️ More than one name record", "ticker", ticker, "market_date", marketDate.Format(models.DateLayout), "id", sub.ID, "rows", len(records))
	}
	rec, err := securityid.Select(records, marketDate)
	switch {
	case errors.Is(err, securityid.ErrNotFound):
		stats.Unresolved++
		sr.log.Infow("No ticker match in provider", "ticker", ticker, "market_date", marketDate.Format(models.DateLayout), "id", sub.ID)
		return nil
	case errors.Is(err, securityid.ErrAmbiguous):
		stats.Ambiguous++
		sr.log.Warnw("⚠️ Ambiguous ticker, skipped", "ticker", ticker, "market_date", marketDate.Format(models.DateLayout), "id", sub.ID, "error", err)
		return nil
	case err != nil:
		return err
	}

	if done[rec.Permno] {
		return nil
	}
	done[rec.Permno] = true

	existing, err := sr.store.GetSecurity(rec.Permno)
	if err != nil {
		return err
	}
	if existing.IsFresh(sr.through) {
		stats.AlreadyFresh++
		sr.log.Debugw("Security already current", "permno", rec.Permno, "last_updated", existing.LastUpdated)
		return nil
	}

	if err := sr.refreshReturns(ctx, rec.Permno, stats); err != nil {
		return err
	}
	return sr.refreshIdentity(ctx, rec, ticker, stats)
}

func (sr *SecurityRefresher) refreshIdentity(ctx context.Context, rec securityid.NameRecord, matched string, stats *RefreshStats) error {
	current, err := sr.currentTicker(ctx, rec.Permno)
	if err != nil {
		return err
	}

	sec := &database.Security{
		Permno:          rec.Permno,
		CUSIP9:          rec.CUSIP9,
		Ticker:          current,
		MatchedTicker:   matched,
		IssuerName:      rec.IssuerName,
		Exchange:        rec.Exchange,
		SecurityType:    rec.SecurityType,
		SecuritySubtype: rec.SecuritySubtype,
		LastUpdated:     sr.through.Format(models.DateLayout),
		UpdatedAt:       sr.now().UTC(),
	}
	if rec.CUSIP9 != "" {
		isin, err := securityid.ISIN("US", rec.CUSIP9)
		if err != nil {
			sr.log.Warnw("⚠️ Cannot derive ISIN", "permno", rec.Permno, "cusip9", rec.CUSIP9, "error", err)
		} else {
			sec.ISIN = isin
		}
	}

	if err := sr.store.UpsertSecurity(sec); err != nil {
		return err
	}
	stats.Refreshed++
	sr.log.Infow("Wrote security", "permno", sec.Permno, "ticker", matched, "current_ticker", current, "through", sec.LastUpdated)
	return nil
}

// currentTicker is the ticker the security trades under at the data
// horizon, or models.NoCurrentTicker when it no longer trades
func (sr *SecurityRefresher) currentTicker(ctx context.Context, permno int64) (string, error) {
	records, err := sr.source.NameHistoryByPermno(ctx, permno, sr.through)
	if err != nil {
		return "", err
	}
	rec, err := securityid.Select(records, sr.through)
	if err != nil {
		if errors.Is(err, securityid.ErrNotFound) || errors.Is(err, securityid.ErrAmbiguous) {
			return models.NoCurrentTicker, nil
		}
		return "", err
	}
	return rec.Ticker, nil
}

// refreshReturns fetches the daily rows after the last stored one, or from
// returnsFrom when nothing is stored, through the data horizon
func (sr *SecurityRefresher) refreshReturns(ctx context.Context, permno int64, stats *RefreshStats) error {
	from := sr.returnsFrom
	latest, err := sr.store.LatestReturnDate(permno)
	if err != nil {
		return err
	}
	if latest != "" {
		last, err := time.Parse(models.DateLayout, latest)
		if err != nil {
			return fmt.Errorf("stored return date %q: %w", latest, err)
		}
		if next := last.AddDate(0, 0, 1); next.After(from) {
			from = next
		}
	}
	if from.After(sr.through) {
		sr.log.Debugw("Returns already stored", "permno", permno, "latest", latest)
		return nil
	}
	start, end := from.Format(models.DateLayout), sr.through.Format(models.DateLayout)

	rows, err := sr.source.DailyReturns(ctx, permno, from, sr.through)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		sr.log.Infow("No daily returns in provider", "permno", permno, "from", start, "through", end)
		return nil
	}

	records := make([]database.ReturnRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, database.ReturnRecord{
			Permno:            permno,
			MktDate:           r.Date.Format(models.DateLayout),
			Return:            null.NewFloat(r.Return.Float64, r.Return.Valid),
			Volume:            null.NewFloat(r.Volume.Float64, r.Volume.Valid),
			SharesOutstanding: null.NewFloat(r.SharesOutstanding.Float64, r.SharesOutstanding.Valid),
			TradeCount:        null.NewFloat(r.TradeCount.Float64, r.TradeCount.Valid),
			IndustryCode:      null.NewInt(r.IndustryCode.Int64, r.IndustryCode.Valid),
		})
	}
	if err := sr.store.SaveReturns(records, sr.batchSize); err != nil {
		return err
	}
	stats.ReturnsSaved++
	stats.RowsSaved += len(records)
	sr.log.Infow("Saved daily returns", "permno", permno, "rows", len(records))
	return nil
}

// postDay is the UTC calendar day a post was created on
func postDay(sub *database.Submission) time.Time {
	return calendar.Day(time.Unix(sub.CreatedUTC, 0))
}
