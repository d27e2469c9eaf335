package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"fin-nlp/calendar"
	"fin-nlp/database"
	models "fin-nlp/database/models_pkg"
	"fin-nlp/helpers"
	"fin-nlp/matcher"
	"fin-nlp/provider"
	"fin-nlp/returns"
	"fin-nlp/securityid"
)

// NameSource looks up a ticker's name history
type NameSource interface {
	NameHistory(ctx context.Context, ticker string, asOf time.Time) ([]securityid.NameRecord, error)
}

// PerformanceStore is the local side of the performance stage
type PerformanceStore interface {
	ListMatchedSubmissions(noCompany string, limit int) ([]database.Submission, error)
	GetPerformance(postID string) (*database.PerformanceSummary, error)
	UpsertPerformance(summary *database.PerformanceSummary) error
	ReturnSeries(permno int64, after, through string) ([]database.ReturnRecord, error)
}

// PerformanceStats counts the outcomes of a performance run
type PerformanceStats struct {
	Submissions        int
	Computed           int
	AlreadyComputed    int
	Unresolved         int
	Ambiguous          int
	IncompleteHorizons int
}

// PerformanceBuilder compounds each matched post's forward returns from
// the locally stored daily rows
type PerformanceBuilder struct {
	names      NameSource
	store      PerformanceStore
	resolver   *calendar.Resolver
	compounder *returns.Compounder
	through    time.Time
	windowDays int
	log        *zap.SugaredLogger
	now        func() time.Time
}

// NewPerformanceBuilder creates a new performance builder
func NewPerformanceBuilder(names NameSource, store PerformanceStore, resolver *calendar.Resolver, compounder *returns.Compounder, through time.Time, windowDays int, log *zap.SugaredLogger) *PerformanceBuilder {
	if windowDays <= 0 {
		windowDays = calendar.DefaultWindowDays
	}
	return &PerformanceBuilder{
		names:      names,
		store:      store,
		resolver:   resolver,
		compounder: compounder,
		through:    calendar.Day(through),
		windowDays: windowDays,
		log:        log,
		now:        time.Now,
	}
}

// Run computes a summary for every matched post not yet computed through
// the current data horizon
func (pb *PerformanceBuilder) Run(ctx context.Context) (PerformanceStats, error) {
	var stats PerformanceStats

	subs, err := pb.store.ListMatchedSubmissions(matcher.NoCompany, 0)
	if err != nil {
		return stats, fmt.Errorf("list submissions: %w", err)
	}
	pb.log.Infof("🔄 Computing forward returns for %d submissions", len(subs))

	for i := range subs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Submissions++
		if err := pb.build(ctx, &subs[i], &stats); err != nil {
			if errors.Is(err, provider.ErrUnreachable) || errors.Is(err, context.Canceled) {
				return stats, err
			}
			pb.log.Errorw("❌ Performance failed", "id", subs[i].ID, "ticker", subs[i].CompanyMatch, "error", err)
		}
	}

	pb.log.Infof("✅ Performance: %d computed, %d already current, %d unresolved, %d ambiguous, %d incomplete horizons",
		stats.Computed, stats.AlreadyComputed, stats.Unresolved, stats.Ambiguous, stats.IncompleteHorizons)
	return stats, nil
}

func (pb *PerformanceBuilder) build(ctx context.Context, sub *database.Submission, stats *PerformanceStats) error {
	through := pb.through.Format(models.DateLayout)
	existing, err := pb.store.GetPerformance(sub.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.DataThrough >= through {
		stats.AlreadyComputed++
		return nil
	}

	res, err := pb.resolver.Resolve(postDay(sub))
	if err != nil {
		stats.Unresolved++
		pb.log.Warnw("⚠️ No market date", "id", sub.ID, "error", err)
		return nil
	}
	anchor := res.Date()

	records, err := pb.names.NameHistory(ctx, sub.CompanyMatch, anchor)
	if err != nil {
		return err
	}
	rec, err := securityid.Select(records, anchor)
	switch {
	case errors.Is(err, securityid.ErrNotFound):
		stats.Unresolved++
		pb.log.Infow("No ticker match in provider", "ticker", sub.CompanyMatch, "market_date", anchor.Format(models.DateLayout), "id", sub.ID)
		return nil
	case errors.Is(err, securityid.ErrAmbiguous):
		stats.Ambiguous++
		pb.log.Warnw("⚠️ Ambiguous ticker, skipped", "ticker", sub.CompanyMatch, "id", sub.ID, "error", err)
		return nil
	case err != nil:
		return err
	}

	rows, err := pb.store.ReturnSeries(rec.Permno, anchor.Format(models.DateLayout), pb.seriesEnd(anchor).Format(models.DateLayout))
	if err != nil {
		return err
	}
	obs := make([]returns.Observation, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse(models.DateLayout, r.MktDate)
		if err != nil {
			return fmt.Errorf("stored return date %q: %w", r.MktDate, err)
		}
		obs = append(obs, returns.Observation{Date: d, Return: r.Return})
	}

	results, err := pb.compounder.Compute(anchor, obs, pb.through)
	if err != nil {
		stats.Unresolved++
		pb.log.Warnw("⚠️ Cannot resolve horizons", "id", sub.ID, "error", err)
		return nil
	}

	summary := &database.PerformanceSummary{
		PostID:       sub.ID,
		Ticker:       sub.CompanyMatch,
		Permno:       rec.Permno,
		MarketDate:   anchor.Format(models.DateLayout),
		DataThrough:  through,
		DateComputed: datatypes.Date(calendar.Day(pb.now())),
	}
	for _, hr := range results {
		if !hr.Complete {
			stats.IncompleteHorizons++
		}
		if !summary.SetHorizon(hr.Horizon.Label, hr.Nullable(), hr.Complete) {
			pb.log.Debugw("No column for horizon", "horizon", hr.Horizon.Label, "id", sub.ID,
				"value", helpers.FormatReturn(hr.Nullable()))
		}
	}

	if err := pb.store.UpsertPerformance(summary); err != nil {
		return err
	}
	stats.Computed++
	pb.log.Debugw("Wrote performance", "id", sub.ID, "permno", rec.Permno, "market_date", summary.MarketDate,
		"1mo", helpers.FormatReturn(summary.Return1Mo), "12mo", helpers.FormatReturn(summary.Return12Mo))
	return nil
}

// seriesEnd is the last day any horizon can resolve to
func (pb *PerformanceBuilder) seriesEnd(anchor time.Time) time.Time {
	longest := 0
	for _, h := range pb.compounder.Horizons() {
		if h.Days > longest {
			longest = h.Days
		}
	}
	return anchor.AddDate(0, 0, longest+pb.windowDays)
}
