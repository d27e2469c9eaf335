package performance

import (
	"fmt"

	models "fin-nlp/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for post performance summaries
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new performance repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves the summary of one post
func (r *Repository) Get(postID string) (*models.PerformanceSummary, error) {
	var summary models.PerformanceSummary
	err := r.db.Where("post_id = ?", postID).First(&summary).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &summary, nil
}

// Upsert inserts or replaces the summary of one post
func (r *Repository) Upsert(summary *models.PerformanceSummary) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}},
		UpdateAll: true,
	}).Create(summary).Error
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// Count returns the number of stored summaries
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.PerformanceSummary{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}
