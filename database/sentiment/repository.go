package sentiment

import (
	"fmt"

	models "fin-nlp/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for sentiment scores
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new sentiment repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListUnscored returns submissions that have no sentiment score yet
func (r *Repository) ListUnscored(limit int) ([]models.Submission, error) {
	var subs []models.Submission
	query := r.db.Model(&models.Submission{}).
		Select("submissions.*").
		Joins("LEFT JOIN post_sentiment ps ON ps.post_id = submissions.id").
		Where("ps.post_id IS NULL").
		Order("submissions.created_utc ASC, submissions.id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("ListUnscored: %w", err)
	}
	return subs, nil
}

// Get retrieves the score of one post
func (r *Repository) Get(postID string) (*models.SentimentScore, error) {
	var score models.SentimentScore
	err := r.db.Where("post_id = ?", postID).First(&score).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &score, nil
}

// Upsert inserts or replaces the score of one post
func (r *Repository) Upsert(score *models.SentimentScore) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}},
		UpdateAll: true,
	}).Create(score).Error
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
