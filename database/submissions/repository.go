package submissions

import (
	"fmt"

	models "fin-nlp/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for qualifying posts
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new submissions repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveBatch upserts a batch of submissions in a single transaction.
// A replayed post overwrites its earlier row.
func (r *Repository) SaveBatch(batch []models.Submission, batchSize int) error {
	if len(batch) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(batch)
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).CreateInBatches(batch, batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("SaveBatch: %w", err)
	}
	return nil
}

// Get retrieves one submission by post id
func (r *Repository) Get(id string) (*models.Submission, error) {
	var sub models.Submission
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &sub, nil
}

// List returns submissions in creation order, optionally restricted to
// the given match types
func (r *Repository) List(matchTypes []string, limit int) ([]models.Submission, error) {
	var subs []models.Submission
	query := r.db.Order("created_utc ASC, id ASC")

	if len(matchTypes) > 0 {
		query = query.Where("match_type IN ?", matchTypes)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return subs, nil
}

// ListWithCompany returns submissions that matched a security, skipping
// DD-only posts
func (r *Repository) ListWithCompany(noCompany string, limit int) ([]models.Submission, error) {
	var subs []models.Submission
	query := r.db.Where("company_match <> ?", noCompany).Order("created_utc ASC, id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("ListWithCompany: %w", err)
	}
	return subs, nil
}

// Count returns the number of stored submissions
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.Submission{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

// TypeCount is the number of submissions per match type
type TypeCount struct {
	MatchType string
	Count     int64
}

// CountByType groups stored submissions by match type
func (r *Repository) CountByType() ([]TypeCount, error) {
	var counts []TypeCount
	err := r.db.Model(&models.Submission{}).
		Select("match_type, COUNT(*) AS count").
		Group("match_type").
		Order("match_type").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("CountByType: %w", err)
	}
	return counts, nil
}
