package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"fin-nlp/database"
	"fin-nlp/helpers"
	"fin-nlp/matcher"
)

// SubmissionStore persists qualifying posts
type SubmissionStore interface {
	SaveSubmissions(batch []database.Submission, batchSize int) error
}

// SubmissionIngestor screens raw posts and stores the ones whose title
// names exactly one security or carries the DD tag
type SubmissionIngestor struct {
	matcher   *matcher.Matcher
	store     SubmissionStore
	batchSize int
	log       *zap.SugaredLogger
	now       func() time.Time

	// progress line every n input lines; 0 disables
	progressEvery int
}

// NewSubmissionIngestor creates a new submission ingestor
func NewSubmissionIngestor(m *matcher.Matcher, store SubmissionStore, batchSize int, log *zap.SugaredLogger) *SubmissionIngestor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SubmissionIngestor{
		matcher:   m,
		store:     store,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

// SetProgressInterval logs a progress line every n input lines
func (si *SubmissionIngestor) SetProgressInterval(n int) {
	si.progressEvery = n
}

// Run reads every post from r, records each outcome on tally and commits
// qualifying posts one batch at a time. Only read or storage failures stop
// the run; bad lines are logged and skipped.
func (si *SubmissionIngestor) Run(ctx context.Context, r io.Reader, tally *matcher.Tally) error {
	reader := NewPostReader(r)
	batch := make([]database.Submission, 0, si.batchSize)
	committed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := si.store.SaveSubmissions(batch, si.batchSize); err != nil {
			return fmt.Errorf("commit batch ending line %d: %w", reader.Line(), err)
		}
		committed += len(batch)
		si.log.Infof("✅ Committed %d submissions (%s total, %s lines read)",
			len(batch), helpers.FormatCount(int64(committed)), helpers.FormatCount(int64(reader.Line())))
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		post, err := reader.Next()
		if err == io.EOF {
			break
		}
		var malformed *MalformedLineError
		if errors.As(err, &malformed) {
			tally.RecordMalformed()
			si.log.Warnf("⚠️ Skipping %v", malformed)
			continue
		}
		if err != nil {
			return err
		}

		if si.progressEvery > 0 && reader.Line()%si.progressEvery == 0 {
			si.log.Infof("📥 Read %s lines, %s qualified", helpers.FormatCount(int64(reader.Line())), helpers.FormatCount(int64(tally.Qualified())))
		}

		res := si.matcher.Match(matcher.Candidate{
			Title:    post.Title,
			Selftext: post.Selftext,
			Domain:   post.Domain,
		})
		tally.Record(res)

		switch res.Status {
		case matcher.StatusAmbiguous:
			si.log.Infow("Ambiguous title", "id", post.ID, "token", res.Token, "reason", res.Reason, "title", post.Title)
			continue
		case matcher.StatusIneligible:
			si.log.Debugw("Ineligible post", "id", post.ID, "reason", res.Reason)
			continue
		case matcher.StatusNoMatch:
			continue
		}

		si.log.Debugw("Matched post", "id", post.ID, "company", res.Company, "type", res.Type, "dd", res.IsDD)
		batch = append(batch, si.submission(post, res))
		if len(batch) >= si.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

func (si *SubmissionIngestor) submission(post *RawPost, res matcher.Result) database.Submission {
	return database.Submission{
		ID:           post.ID,
		Author:       post.Author,
		CreatedUTC:   int64(post.CreatedUTC),
		Domain:       post.Domain,
		Subreddit:    post.Subreddit,
		Title:        post.Title,
		Selftext:     post.Selftext,
		Score:        post.Score,
		NumComments:  post.NumComments,
		UpvoteRatio:  post.UpvoteRatio,
		CompanyMatch: res.Company,
		MatchType:    string(res.Type),
		IsDD:         res.IsDD,
		Metadata:     datatypes.JSON(post.Metadata),
		IngestedAt:   si.now().UTC(),
	}
}

// LogTally writes the end-of-run summary of an ingest run
func LogTally(log *zap.SugaredLogger, tally *matcher.Tally) {
	total := int64(tally.Seen)
	log.Info("📊 Ingest summary")
	log.Infof("   Posts read:         %s", helpers.FormatCount(total))
	log.Infof("   Malformed:          %s", helpers.FormatCount(int64(tally.Malformed)))
	log.Infof("   Ineligible:         %s", helpers.FormatCount(int64(tally.Ineligible)))
	log.Infof("   No match:           %s", helpers.FormatCount(int64(tally.NoMatch)))
	log.Infof("   Ambiguous:          %s", helpers.FormatCount(int64(tally.Ambiguous)))
	log.Infof("   Qualified:          %s (%s)", helpers.FormatCount(int64(tally.Qualified())), helpers.Share(int64(tally.Qualified()), total))
	for _, mt := range []matcher.MatchType{matcher.TickerWithSymbol, matcher.SymbolNoMatch, matcher.TickerNoSymbol, matcher.Alias, matcher.DDNoMatch} {
		log.Infof("     %-20s %s", mt, helpers.FormatCount(int64(tally.ByType(mt))))
	}
	log.Infof("   Tagged DD:          %s", helpers.FormatCount(int64(tally.DD)))

	companies := tally.Companies()
	if len(companies) == 0 {
		return
	}
	log.Info("📊 Posts per company (ascending)")
	for _, c := range companies {
		log.Infof("     %-8s %d", c.Company, c.Count)
	}
}
