package database

import (
	"fmt"

	"fin-nlp/database/performance"
	"fin-nlp/database/securities"
	"fin-nlp/database/sentiment"
	"fin-nlp/database/submissions"
)

// Repository is the entry point to every table of the dataset
type Repository struct {
	db          *Database
	submissions *submissions.Repository
	securities  *securities.Repository
	performance *performance.Repository
	sentiment   *sentiment.Repository
}

// NewRepository creates a repository over an open connection
func NewRepository(db *Database) *Repository {
	return &Repository{
		db:          db,
		submissions: submissions.NewRepository(db.db),
		securities:  securities.NewRepository(db.db),
		performance: performance.NewRepository(db.db),
		sentiment:   sentiment.NewRepository(db.db),
	}
}

// InitSchema performs auto-migration and creates the reporting view
func (r *Repository) InitSchema() error {
	fmt.Println("🔄 Starting database schema initialization...")

	// Drop the view first so AutoMigrate may rebuild the tables under it
	if err := r.db.db.Exec("DROP VIEW IF EXISTS submission_performance").Error; err != nil {
		fmt.Printf("⚠️ Warning: Failed to drop view submission_performance: %v\n", err)
	}

	err := r.db.db.AutoMigrate(
		&Submission{},
		&Security{},
		&ReturnRecord{},
		&PerformanceSummary{},
		&SentimentScore{},
	)
	if err != nil {
		return storeErr("InitSchema", fmt.Errorf("auto-migration failed: %w", err))
	}

	fmt.Println("📊 Creating submission_performance view...")
	if err := r.db.db.Exec(`
		CREATE VIEW submission_performance AS
		SELECT
			s.id,
			s.created_utc,
			s.title,
			s.company_match,
			s.match_type,
			s.is_dd,
			p.permno,
			p.market_date,
			p.return_1mo,
			p.return_2mo,
			p.return_3mo,
			p.return_6mo,
			p.return_12mo,
			ps.market_sentiment,
			ps.writing_quality
		FROM submissions s
		LEFT JOIN post_performance p ON p.post_id = s.id
		LEFT JOIN post_sentiment ps ON ps.post_id = s.id
	`).Error; err != nil {
		fmt.Printf("⚠️ Warning: Failed to create view submission_performance: %v\n", err)
	} else {
		fmt.Println("✅ submission_performance view created successfully")
	}

	fmt.Println("✅ Database schema initialization completed successfully")
	return nil
}

// ============================================================================
// Submissions
// ============================================================================

// SaveSubmissions upserts one batch of qualifying posts in a transaction
func (r *Repository) SaveSubmissions(batch []Submission, batchSize int) error {
	for i := range batch {
		if batch[i].ID == "" {
			return invalid("id", "submission without id", batch[i].Title)
		}
	}
	return storeErr("SaveSubmissions", r.submissions.SaveBatch(batch, batchSize))
}

// GetSubmission retrieves one post, nil when absent
func (r *Repository) GetSubmission(id string) (*Submission, error) {
	sub, err := r.submissions.Get(id)
	return sub, storeErr("GetSubmission", err)
}

// ListSubmissions returns stored posts in creation order
func (r *Repository) ListSubmissions(matchTypes []string, limit int) ([]Submission, error) {
	subs, err := r.submissions.List(matchTypes, limit)
	return subs, storeErr("ListSubmissions", err)
}

// ListMatchedSubmissions returns posts whose company is not noCompany
func (r *Repository) ListMatchedSubmissions(noCompany string, limit int) ([]Submission, error) {
	subs, err := r.submissions.ListWithCompany(noCompany, limit)
	return subs, storeErr("ListMatchedSubmissions", err)
}

// CountSubmissions returns the number of stored posts
func (r *Repository) CountSubmissions() (int64, error) {
	n, err := r.submissions.Count()
	return n, storeErr("CountSubmissions", err)
}

// CountSubmissionsByType groups stored posts by match type
func (r *Repository) CountSubmissionsByType() ([]submissions.TypeCount, error) {
	counts, err := r.submissions.CountByType()
	return counts, storeErr("CountSubmissionsByType", err)
}

// ============================================================================
// Securities
// ============================================================================

// GetSecurity retrieves a security by permno, nil when absent
func (r *Repository) GetSecurity(permno int64) (*Security, error) {
	sec, err := r.securities.Get(permno)
	return sec, storeErr("GetSecurity", err)
}

// UpsertSecurity inserts or refreshes a security
func (r *Repository) UpsertSecurity(sec *Security) error {
	if sec.Permno == 0 {
		return invalid("permno", "security without permno", sec.Ticker)
	}
	return storeErr("UpsertSecurity", r.securities.Upsert(sec))
}

// LatestReturnDate returns the last stored daily row date of a security
func (r *Repository) LatestReturnDate(permno int64) (string, error) {
	latest, err := r.securities.LatestReturnDate(permno)
	return latest, storeErr("LatestReturnDate", err)
}

// SaveReturns upserts daily rows in a transaction
func (r *Repository) SaveReturns(rows []ReturnRecord, batchSize int) error {
	return storeErr("SaveReturns", r.securities.SaveReturns(rows, batchSize))
}

// ReturnSeries returns the daily rows in (after, through]
func (r *Repository) ReturnSeries(permno int64, after, through string) ([]ReturnRecord, error) {
	rows, err := r.securities.ReturnSeries(permno, after, through)
	return rows, storeErr("ReturnSeries", err)
}

// ============================================================================
// Performance
// ============================================================================

// GetPerformance retrieves the summary of one post, nil when absent
func (r *Repository) GetPerformance(postID string) (*PerformanceSummary, error) {
	summary, err := r.performance.Get(postID)
	return summary, storeErr("GetPerformance", err)
}

// UpsertPerformance inserts or replaces the summary of one post
func (r *Repository) UpsertPerformance(summary *PerformanceSummary) error {
	return storeErr("UpsertPerformance", r.performance.Upsert(summary))
}

// CountPerformance returns the number of stored summaries
func (r *Repository) CountPerformance() (int64, error) {
	n, err := r.performance.Count()
	return n, storeErr("CountPerformance", err)
}

// ============================================================================
// Sentiment
// ============================================================================

// ListUnscored returns posts without a sentiment score
func (r *Repository) ListUnscored(limit int) ([]Submission, error) {
	subs, err := r.sentiment.ListUnscored(limit)
	return subs, storeErr("ListUnscored", err)
}

// GetSentiment retrieves the score of one post, nil when absent
func (r *Repository) GetSentiment(postID string) (*SentimentScore, error) {
	score, err := r.sentiment.Get(postID)
	return score, storeErr("GetSentiment", err)
}

// UpsertSentiment inserts or replaces the score of a stored post
func (r *Repository) UpsertSentiment(score *SentimentScore) error {
	sub, err := r.submissions.Get(score.PostID)
	if err != nil {
		return storeErr("UpsertSentiment", err)
	}
	if sub == nil {
		return notStored("submissions", score.PostID)
	}
	return storeErr("UpsertSentiment", r.sentiment.Upsert(score))
}
