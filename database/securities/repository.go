package securities

import (
	"database/sql"
	"fmt"

	models "fin-nlp/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for security identities and
// their daily returns
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new securities repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves a security by permno
func (r *Repository) Get(permno int64) (*models.Security, error) {
	var sec models.Security
	err := r.db.Where("permno = ?", permno).First(&sec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &sec, nil
}

// Upsert inserts or refreshes a security row
func (r *Repository) Upsert(sec *models.Security) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "permno"}},
		UpdateAll: true,
	}).Create(sec).Error
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// LatestReturnDate returns the last stored mkt_date of permno, "" when
// none is stored
func (r *Repository) LatestReturnDate(permno int64) (string, error) {
	var latest sql.NullString
	err := r.db.Model(&models.ReturnRecord{}).
		Select("MAX(mkt_date)").
		Where("permno = ?", permno).
		Row().Scan(&latest)
	if err != nil {
		return "", fmt.Errorf("LatestReturnDate: %w", err)
	}
	return latest.String, nil
}

// SaveReturns upserts daily rows in a single transaction
func (r *Repository) SaveReturns(rows []models.ReturnRecord, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(rows)
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "permno"}, {Name: "mkt_date"}},
			UpdateAll: true,
		}).CreateInBatches(rows, batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("SaveReturns: %w", err)
	}
	return nil
}

// ReturnSeries returns the daily rows strictly after `after` and on or
// before `through`, oldest first
func (r *Repository) ReturnSeries(permno int64, after, through string) ([]models.ReturnRecord, error) {
	var rows []models.ReturnRecord
	err := r.db.
		Where("permno = ? AND mkt_date > ? AND mkt_date <= ?", permno, after, through).
		Order("mkt_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ReturnSeries: %w", err)
	}
	return rows, nil
}

// CountReturns returns the number of stored daily rows for permno
func (r *Repository) CountReturns(permno int64) (int64, error) {
	var count int64
	if err := r.db.Model(&models.ReturnRecord{}).Where("permno = ?", permno).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("CountReturns: %w", err)
	}
	return count, nil
}
