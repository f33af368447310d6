package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"photocatalog/models"
)

// PlaceRepository handles database operations for gazetteer Place entities
type PlaceRepository struct {
	DB *gorm.DB
}

// NewPlaceRepository creates a new instance of PlaceRepository
func NewPlaceRepository(db *gorm.DB) *PlaceRepository {
	return &PlaceRepository{DB: db}
}

// Count returns the number of imported places
func (r *PlaceRepository) Count() (int64, error) {
	var count int64
	if err := r.DB.Model(&models.Place{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	return count, nil
}

// InsertBatch inserts places, ignoring rows whose geoname id already exists
func (r *PlaceRepository) InsertBatch(places []models.Place) error {
	if len(places) == 0 {
		return nil
	}
	err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&places).Error
	if err != nil {
		return fmt.Errorf("failed to insert place batch: %w", err)
	}
	return nil
}

// FindWithinBox returns all places whose coordinates fall inside the given
// latitude/longitude ranges. This is the index-friendly prefilter; exact
// distances are computed by the caller.
func (r *PlaceRepository) FindWithinBox(minLat, maxLat, minLon, maxLon float64) ([]models.Place, error) {
	var places []models.Place
	err := r.DB.
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLon, maxLon).
		Find(&places).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query places within bounding box: %w", err)
	}
	return places, nil
}
