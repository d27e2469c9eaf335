package models

import (
	"time"

	"github.com/guregu/null/v6"
	"gorm.io/datatypes"
)

// DateLayout is the layout of every date-only column. Dates are stored as
// ISO strings so they order correctly as text on both SQLite and Postgres.
const DateLayout = "2006-01-02"

// NoCurrentTicker is stored when a security no longer trades as of the
// data horizon
const NoCurrentTicker = "NONE"

// Submission is a qualifying post and the result of matching its title.
//
// Key Fields:
//   - ID: platform post id (primary key, replays overwrite)
//   - CompanyMatch: matched ticker, or "N/A" for DD-only posts
//   - MatchType: the rule that qualified the post
//   - Metadata: every other field of the raw post, passed through as JSON
type Submission struct {
	ID           string         `gorm:"primaryKey;size:16" json:"id"`
	Author       string         `gorm:"size:64" json:"author"`
	CreatedUTC   int64          `gorm:"index;not null" json:"created_utc"`
	Domain       string         `gorm:"size:64;index" json:"domain"`
	Subreddit    string         `gorm:"size:64" json:"subreddit"`
	Title        string         `gorm:"type:text;not null" json:"title"`
	Selftext     string         `gorm:"type:text" json:"selftext"`
	Score        int64          `json:"score"`
	NumComments  int64          `json:"num_comments"`
	UpvoteRatio  float64        `json:"upvote_ratio"`
	CompanyMatch string         `gorm:"size:16;index;not null" json:"company_match"`
	MatchType    string         `gorm:"size:24;index;not null" json:"match_type"`
	IsDD         bool           `gorm:"column:is_dd;not null;default:false" json:"is_dd"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	IngestedAt   time.Time      `json:"ingested_at"`
}

// TableName specifies the table name for Submission
func (Submission) TableName() string {
	return "submissions"
}

// Security is the identity of one security, keyed by its permanent number.
// LastUpdated is the data horizon the row reflects; a row whose
// LastUpdated is on or after the current horizon is not fetched again.
type Security struct {
	Permno          int64     `gorm:"primaryKey;autoIncrement:false" json:"permno"`
	CUSIP9          string    `gorm:"column:cusip9;size:9" json:"cusip9"`
	ISIN            string    `gorm:"column:isin;size:12" json:"isin"`
	Ticker          string    `gorm:"size:16;index" json:"ticker"`   // as of LastUpdated, NONE if delisted
	MatchedTicker   string    `gorm:"size:16" json:"matched_ticker"` // ticker the posts used
	IssuerName      string    `gorm:"size:128" json:"issuer_name"`
	Exchange        string    `gorm:"size:8" json:"exchange"`
	SecurityType    string    `gorm:"size:8" json:"security_type"`
	SecuritySubtype string    `gorm:"size:8" json:"security_subtype"`
	LastUpdated     string    `gorm:"size:10;not null" json:"last_updated"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for Security
func (Security) TableName() string {
	return "securities"
}

// IsFresh reports whether the row already reflects data through the horizon
func (s *Security) IsFresh(through time.Time) bool {
	return s != nil && s.LastUpdated >= through.Format(DateLayout)
}

// ReturnRecord is one daily row of a security's market data
type ReturnRecord struct {
	Permno            int64      `gorm:"primaryKey;autoIncrement:false" json:"permno"`
	MktDate           string     `gorm:"primaryKey;size:10" json:"mkt_date"`
	Return            null.Float `gorm:"column:ret" json:"ret"`
	Volume            null.Float `gorm:"column:vol" json:"vol"`
	SharesOutstanding null.Float `gorm:"column:shrout" json:"shrout"`
	TradeCount        null.Float `gorm:"column:numtrd" json:"numtrd"`
	IndustryCode      null.Int   `gorm:"column:hsiccd" json:"hsiccd"`
}

// TableName specifies the table name for ReturnRecord
func (ReturnRecord) TableName() string {
	return "security_returns"
}

// PerformanceSummary holds the compounded forward returns of the security a
// post matched. A null return means the horizon held no observations.
type PerformanceSummary struct {
	PostID       string         `gorm:"primaryKey;size:16" json:"post_id"`
	Ticker       string         `gorm:"size:16;index" json:"ticker"`
	Permno       int64          `gorm:"index" json:"permno"`
	MarketDate   string         `gorm:"size:10" json:"market_date"`
	Return1Mo    null.Float     `gorm:"column:return_1mo" json:"return_1mo"`
	Return2Mo    null.Float     `gorm:"column:return_2mo" json:"return_2mo"`
	Return3Mo    null.Float     `gorm:"column:return_3mo" json:"return_3mo"`
	Return6Mo    null.Float     `gorm:"column:return_6mo" json:"return_6mo"`
	Return12Mo   null.Float     `gorm:"column:return_12mo" json:"return_12mo"`
	Complete1Mo  bool           `gorm:"column:complete_1mo" json:"complete_1mo"`
	Complete2Mo  bool           `gorm:"column:complete_2mo" json:"complete_2mo"`
	Complete3Mo  bool           `gorm:"column:complete_3mo" json:"complete_3mo"`
	Complete6Mo  bool           `gorm:"column:complete_6mo" json:"complete_6mo"`
	Complete12Mo bool           `gorm:"column:complete_12mo" json:"complete_12mo"`
	DataThrough  string         `gorm:"size:10" json:"data_through"`
	DateComputed datatypes.Date `json:"date_computed"`
}

// TableName specifies the table name for PerformanceSummary
func (PerformanceSummary) TableName() string {
	return "post_performance"
}

// SetHorizon stores the result of one labelled horizon. It returns false
// for labels without a column.
func (p *PerformanceSummary) SetHorizon(label string, value null.Float, complete bool) bool {
	switch label {
	case "1mo":
		p.Return1Mo, p.Complete1Mo = value, complete
	case "2mo":
		p.Return2Mo, p.Complete2Mo = value, complete
	case "3mo":
		p.Return3Mo, p.Complete3Mo = value, complete
	case "6mo":
		p.Return6Mo, p.Complete6Mo = value, complete
	case "12mo":
		p.Return12Mo, p.Complete12Mo = value, complete
	default:
		return false
	}
	return true
}

// SentimentScore is the scored sentiment of a post's text
type SentimentScore struct {
	PostID          string    `gorm:"primaryKey;size:16" json:"post_id"`
	MarketSentiment int       `gorm:"not null" json:"market_sentiment"`
	WritingQuality  int       `gorm:"not null" json:"writing_quality"`
	Model           string    `gorm:"size:64" json:"model"`
	ScoredAt        time.Time `json:"scored_at"`
}

// TableName specifies the table name for SentimentScore
func (SentimentScore) TableName() string {
	return "post_sentiment"
}
