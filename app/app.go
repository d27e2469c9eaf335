package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fin-nlp/cache"
	"fin-nlp/calendar"
	"fin-nlp/config"
	"fin-nlp/database"
	"fin-nlp/llm"
	"fin-nlp/logger"
	"fin-nlp/matcher"
	"fin-nlp/provider"
	"fin-nlp/reference"
	"fin-nlp/returns"
)

// sentimentCacheTTL bounds how long a scored text is reused
const sentimentCacheTTL = 30 * 24 * time.Hour

// App represents one pipeline run
type App struct {
	config     *config.Config
	db         *database.Database
	redis      *cache.RedisClient
	repo       *database.Repository
	providerDB *sql.DB
	provider   *provider.Client
	resolver   *calendar.Resolver
	log        *zap.SugaredLogger
	closeLog   func()
	runID      string
	started    time.Time
}

// New creates a new application instance
func New(cfg *config.Config) *App {
	return &App{
		config: cfg,
		runID:  uuid.NewString(),
	}
}

// Log returns the run logger; valid after Start
func (a *App) Log() *zap.SugaredLogger {
	return a.log
}

// Start opens the run log, the local store and the calendar. program and
// tables go into the run header.
func (a *App) Start(program string, tables []string) error {
	a.started = time.Now()

	log, closeLog, err := logger.New(a.config.Logging, a.started)
	if err != nil {
		return err
	}
	a.log = log
	a.closeLog = closeLog

	logger.WriteHeader(a.log, logger.Header{
		RunID:       a.runID,
		Program:     program,
		Source:      a.source(program),
		Destination: a.destination(),
		Tables:      tables,
	}, a.started)

	// 1. Local store
	a.log.Info("🗄️  Connecting to database...")
	db, err := database.Connect(a.config.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db
	a.repo = database.NewRepository(db)
	if err := a.repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// 2. Trading calendar
	cal, err := calendar.NYSE()
	if err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	a.resolver = calendar.NewResolver(cal, a.config.Performance.SessionWindow)
	from, to := cal.Coverage()
	a.log.Infof("📅 NYSE calendar covers %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))

	return nil
}

func (a *App) source(program string) string {
	switch program {
	case "ingest":
		return a.config.Ingest.InputPath
	case "securities":
		return fmt.Sprintf("%s:%d/%s", a.config.Provider.Host, a.config.Provider.Port, a.config.Provider.Name)
	case "sentiment":
		return a.config.LLM.Endpoint
	}
	return ""
}

func (a *App) destination() string {
	if a.config.Database.Driver == "postgres" {
		return fmt.Sprintf("postgres %s:%d/%s", a.config.Database.Host, a.config.Database.Port, a.config.Database.Name)
	}
	return "sqlite " + a.config.Database.Path
}

// connectCache connects Redis; the run goes on without it when it is down
func (a *App) connectCache() {
	if a.redis != nil {
		return
	}
	a.log.Info("🧠 Connecting to Redis...")
	a.redis = cache.NewRedisClient(a.config.RedisHost, a.config.RedisPort, a.config.RedisPassword, a.log)
	if a.redis == nil {
		a.log.Warn("⚠️  Redis connection failed. Caching disabled.")
	}
}

// connectProvider opens the provider connection with the configured call
// policy
func (a *App) connectProvider(ctx context.Context) error {
	if a.provider != nil {
		return nil
	}
	a.connectCache()

	a.log.Infof("🔌 Connecting to provider %s:%d...", a.config.Provider.Host, a.config.Provider.Port)
	pdb, err := provider.Open(ctx, a.config.ProviderDSN(), a.config.Provider.CallTimeout)
	if err != nil {
		return fmt.Errorf("provider connection failed: %w", err)
	}
	a.providerDB = pdb

	pc := a.config.Provider
	a.provider = provider.NewClient(pdb,
		provider.WithTables(pc.NamesTable, pc.ReturnsTable),
		provider.WithCallTimeout(pc.CallTimeout),
		provider.WithRetryPolicy(provider.RetryPolicy{
			MaxAttempts:  pc.MaxAttempts,
			Interval:     pc.RetryInterval,
			BackoffCoeff: pc.BackoffCoeff,
		}),
		provider.WithRateLimit(pc.RatePerSecond),
		provider.WithNameCache(cache.NewProviderCache(a.redis, pc.CacheTTL)),
		provider.WithLogger(a.log),
	)
	a.log.Info("✅ Provider connected")
	return nil
}

// RunIngest screens the posts at inputPath into the submissions table
func (a *App) RunIngest(ctx context.Context, inputPath string) error {
	ic := a.config.Ingest
	refs, err := reference.Load(reference.Paths{
		Companies: ic.TickersPath,
		Problem:   ic.ProblemTickers,
		ETF:       ic.ETFTickersPath,
	}, ic.ExcludedTickers)
	if err != nil {
		return err
	}
	a.log.Infof("📚 Loaded %d reference tickers", refs.Len())

	m := matcher.New(refs,
		matcher.WithDomain(ic.Domain),
		matcher.WithMinWords(ic.MinWords),
		matcher.WithRedirects(ic.Redirects),
	)

	in, err := OpenPosts(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	ingestor := NewSubmissionIngestor(m, a.repo, a.config.Database.BatchSize, a.log)
	ingestor.SetProgressInterval(ic.ProgressInterval)

	tally := matcher.NewTally()
	runErr := ingestor.Run(ctx, in, tally)
	LogTally(a.log, tally)
	if runErr != nil {
		return runErr
	}
	return a.logStoreSummary()
}

// RunSecurities refreshes identity rows and daily returns for every
// matched post
func (a *App) RunSecurities(ctx context.Context) error {
	if err := a.connectProvider(ctx); err != nil {
		return err
	}
	pc := a.config.Performance
	sr := NewSecurityRefresher(a.provider, a.repo, a.resolver, pc.DataThrough, pc.ReturnsFrom, a.config.Database.BatchSize, a.log)
	_, err := sr.Run(ctx)
	return err
}

// RunPerformance computes forward returns for every matched post
func (a *App) RunPerformance(ctx context.Context) error {
	if err := a.connectProvider(ctx); err != nil {
		return err
	}
	pc := a.config.Performance
	compounder := returns.NewCompounder(a.resolver, returns.HorizonsFromDays(pc.HorizonDays))
	pb := NewPerformanceBuilder(a.provider, a.repo, a.resolver, compounder, pc.DataThrough, pc.SessionWindow, a.log)
	if _, err := pb.Run(ctx); err != nil {
		return err
	}
	return a.logStoreSummary()
}

// RunSentiment scores up to limit unscored posts
func (a *App) RunSentiment(ctx context.Context, limit int) error {
	lc := a.config.LLM
	if !lc.Enabled {
		a.log.Info("ℹ️  LLM scoring DISABLED, set LLM_ENABLED=true to score posts")
		return nil
	}
	a.connectCache()

	client := llm.NewClient(lc.Endpoint, lc.APIKey, lc.Model, lc.Timeout)
	a.log.Infof("✅ LLM scoring ENABLED (Model: %s)", lc.Model)

	scorer := NewSentimentScorer(client, a.repo, cache.NewSentimentCache(a.redis, sentimentCacheTTL), lc.MaxChars, a.log)
	_, err := scorer.Run(ctx, limit)
	return err
}

func (a *App) logStoreSummary() error {
	total, err := a.repo.CountSubmissions()
	if err != nil {
		return err
	}
	byType, err := a.repo.CountSubmissionsByType()
	if err != nil {
		return err
	}
	computed, err := a.repo.CountPerformance()
	if err != nil {
		return err
	}

	a.log.Infof("📊 Store holds %d submissions, %d with forward returns", total, computed)
	for _, tc := range byType {
		a.log.Infof("     %-20s %d", tc.MatchType, tc.Count)
	}
	return nil
}

// Close releases every connection and flushes the run log
func (a *App) Close() {
	if a.providerDB != nil {
		if err := a.providerDB.Close(); err != nil {
			a.log.Errorf("Error closing provider: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Errorf("Error closing redis: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Errorf("Error closing database: %v", err)
		} else {
			a.log.Info("✅ Database connection closed")
		}
	}
	if a.log != nil {
		a.log.Infof("********** Run %s finished in %s", a.runID, time.Since(a.started).Round(time.Millisecond))
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

// WithShutdown returns a context cancelled on SIGINT or SIGTERM. Stages
// stop at the next post boundary; committed batches stay committed.
func WithShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(interrupt)
		select {
		case <-interrupt:
			fmt.Println("\n🛑 Shutdown signal received, stopping after the current post...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
