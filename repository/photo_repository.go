package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"photocatalog/models"
)

// DefaultCommitEvery is the periodic-commit cadence for catalog writes.
const DefaultCommitEvery = 500

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// dayExpr extracts the YYYY-MM-DD day from a stored datetime, which may be in
// EXIF colon form ("2008:09:12 14:30:00") or dash form.
const dayExpr = "SUBSTR(REPLACE(datetime, ':', '-'), 1, 10)"

// placeholderYear marks records whose capture timestamp is a camera default
// rather than a real date; day/location groupings exclude them.
const placeholderYear = "1999"

// PhotoRepository handles database operations for Photo entities
type PhotoRepository struct {
	DB *gorm.DB
}

// NewPhotoRepository creates a new instance of PhotoRepository
func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{DB: db}
}

// columns rewritten when an upsert hits an existing path
var photoUpsertColumns = []string{
	"filename", "datetime", "camera_model", "lens_model", "iso", "fnumber",
	"exposure_time", "focal_length", "orientation", "gps_lat", "gps_lon",
	"location", "status", "file_hash", "file_mtime", "processed_at",
	"error_message",
}

// GetByPath retrieves a cataloged photo by its path
func (r *PhotoRepository) GetByPath(path string) (*models.Photo, error) {
	var photo models.Photo
	err := r.DB.Where("path = ?", path).First(&photo).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get photo by path %s: %w", path, err)
	}
	return &photo, nil
}

// FileStates returns the stored (mtime, hash) pair for every cataloged path,
// failed records included, so unchanged failures are not re-read every run.
func (r *PhotoRepository) FileStates() (map[string]models.FileState, error) {
	type stateRow struct {
		Path      string
		FileMtime *int64
		FileHash  *string
	}
	var rows []stateRow
	err := r.DB.Model(&models.Photo{}).
		Select("path", "file_mtime", "file_hash").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load stored file states: %w", err)
	}

	states := make(map[string]models.FileState, len(rows))
	for _, row := range rows {
		states[row.Path] = models.FileState{Mtime: row.FileMtime, Hash: row.FileHash}
	}
	return states, nil
}

// Count returns the number of cataloged photos
func (r *PhotoRepository) Count() (int64, error) {
	var count int64
	if err := r.DB.Model(&models.Photo{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return count, nil
}

// AllPhotos returns every cataloged record, newest capture first
func (r *PhotoRepository) AllPhotos() ([]models.Photo, error) {
	var photos []models.Photo
	err := r.DB.Order("datetime DESC").Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

// LocationDay is one distinct (day, location) group with its first capture
// timestamp, representative coordinate and photo count.
type LocationDay struct {
	Day           string  `gorm:"column:day"`
	Location      string  `gorm:"column:location"`
	GPSLat        float64 `gorm:"column:gps_lat"`
	GPSLon        float64 `gorm:"column:gps_lon"`
	PhotoCount    int     `gorm:"column:photo_count"`
	FirstDateTime string  `gorm:"column:first_datetime"`
}

// LocationDays returns all distinct (day, location) groups of successfully
// processed, geotagged photos in chronological order, excluding
// placeholder-year records. This is one of the two read-only query shapes the
// map and narrative collaborators depend on.
func (r *PhotoRepository) LocationDays() ([]LocationDay, error) {
	qb := psql.Select(
		dayExpr+" AS day",
		"location",
		"gps_lat",
		"gps_lon",
		"COUNT(*) AS photo_count",
		"MIN(datetime) AS first_datetime",
	).
		From("photos").
		Where("datetime IS NOT NULL").
		Where("location IS NOT NULL").
		Where("gps_lat IS NOT NULL").
		Where("gps_lon IS NOT NULL").
		Where(sq.Eq{"status": models.StatusProcessed}).
		Where(sq.NotLike{"datetime": placeholderYear + "%"}).
		GroupBy(dayExpr, "location").
		OrderBy("first_datetime ASC")

	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build location days query: %w", err)
	}

	var groups []LocationDay
	if err := r.DB.Raw(sqlStr, args...).Scan(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to query location days: %w", err)
	}
	return groups, nil
}

// PhotosForLocationDay returns every processed record for one (day, location)
// pair in capture order. Day is in YYYY-MM-DD form.
func (r *PhotoRepository) PhotosForLocationDay(day, location string) ([]models.Photo, error) {
	qb := psql.Select("*").
		From("photos").
		Where(dayExpr+" = ?", day).
		Where(sq.Eq{"location": location}).
		Where(sq.Eq{"status": models.StatusProcessed}).
		Where(sq.NotLike{"datetime": placeholderYear + "%"}).
		OrderBy("datetime ASC")

	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build location day photos query: %w", err)
	}

	var photos []models.Photo
	if err := r.DB.Raw(sqlStr, args...).Scan(&photos).Error; err != nil {
		return nil, fmt.Errorf("failed to query photos for %s at %s: %w", day, location, err)
	}
	return photos, nil
}

// DayGroup aggregates one calendar day of captures for export.
type DayGroup struct {
	Day        string `gorm:"column:day"`
	PhotoCount int    `gorm:"column:photo_count"`
	Filenames  string `gorm:"column:filenames"`
}

// LocationGroup aggregates one resolved location for export.
type LocationGroup struct {
	Location   string `gorm:"column:location"`
	PhotoCount int    `gorm:"column:photo_count"`
	Filenames  string `gorm:"column:filenames"`
}

// DayLocationGroup aggregates one (day, location) pair for export.
type DayLocationGroup struct {
	Day        string `gorm:"column:day"`
	Location   string `gorm:"column:location"`
	PhotoCount int    `gorm:"column:photo_count"`
	Filenames  string `gorm:"column:filenames"`
}

// GroupByDay returns per-day photo counts with an aggregated filename list,
// most recent day first.
func (r *PhotoRepository) GroupByDay() ([]DayGroup, error) {
	qb := psql.Select(
		dayExpr+" AS day",
		"COUNT(*) AS photo_count",
		"GROUP_CONCAT(filename, '; ') AS filenames",
	).
		From("photos").
		Where("datetime IS NOT NULL").
		GroupBy(dayExpr).
		OrderBy("day DESC")

	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build day grouping query: %w", err)
	}

	var groups []DayGroup
	if err := r.DB.Raw(sqlStr, args...).Scan(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to group photos by day: %w", err)
	}
	return groups, nil
}

// GroupByLocation returns per-location photo counts with an aggregated
// filename list, largest group first.
func (r *PhotoRepository) GroupByLocation() ([]LocationGroup, error) {
	qb := psql.Select(
		"location",
		"COUNT(*) AS photo_count",
		"GROUP_CONCAT(filename, '; ') AS filenames",
	).
		From("photos").
		Where("location IS NOT NULL").
		GroupBy("location").
		OrderBy("photo_count DESC")

	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build location grouping query: %w", err)
	}

	var groups []LocationGroup
	if err := r.DB.Raw(sqlStr, args...).Scan(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to group photos by location: %w", err)
	}
	return groups, nil
}

// GroupByDayLocation returns per-(day, location) photo counts with an
// aggregated filename list.
func (r *PhotoRepository) GroupByDayLocation() ([]DayLocationGroup, error) {
	qb := psql.Select(
		dayExpr+" AS day",
		"location",
		"COUNT(*) AS photo_count",
		"GROUP_CONCAT(filename, '; ') AS filenames",
	).
		From("photos").
		Where("datetime IS NOT NULL").
		GroupBy(dayExpr, "location").
		OrderBy("day DESC, location")

	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build day/location grouping query: %w", err)
	}

	var groups []DayLocationGroup
	if err := r.DB.Raw(sqlStr, args...).Scan(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to group photos by day and location: %w", err)
	}
	return groups, nil
}

// BatchWriter serializes catalog writes through a single open transaction and
// commits every commitEvery records, trading a bounded amount of
// replay-on-crash work for throughput. Close commits whatever remains, so a
// cancelled run never loses already-processed files.
type BatchWriter struct {
	db          *gorm.DB
	tx          *gorm.DB
	commitEvery int
	pending     int
	written     int
}

// NewBatchWriter opens a batch writer over the repository's database
func (r *PhotoRepository) NewBatchWriter(commitEvery int) *BatchWriter {
	if commitEvery <= 0 {
		commitEvery = DefaultCommitEvery
	}
	return &BatchWriter{db: r.DB, tx: r.DB.Begin(), commitEvery: commitEvery}
}

// Upsert inserts or replaces the record for photo.Path inside the current
// transaction, committing when the periodic threshold is reached.
func (w *BatchWriter) Upsert(photo *models.Photo) error {
	if w.tx.Error != nil {
		return fmt.Errorf("catalog batch transaction unavailable: %w", w.tx.Error)
	}

	err := w.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns(photoUpsertColumns),
	}).Create(photo).Error
	if err != nil {
		return fmt.Errorf("failed to upsert photo record for %s: %w", photo.Path, err)
	}

	w.pending++
	if w.pending >= w.commitEvery {
		return w.Flush()
	}
	return nil
}

// Flush commits the open transaction and starts a new one
func (w *BatchWriter) Flush() error {
	if w.pending == 0 {
		return nil
	}
	if err := w.tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit catalog batch: %w", err)
	}
	w.written += w.pending
	w.pending = 0
	w.tx = w.db.Begin()
	return nil
}

// Close commits any remaining records and releases the transaction
func (w *BatchWriter) Close() error {
	if w.pending > 0 {
		if err := w.tx.Commit().Error; err != nil {
			return fmt.Errorf("failed to commit final catalog batch: %w", err)
		}
		w.written += w.pending
		w.pending = 0
		return nil
	}
	w.tx.Rollback()
	return nil
}

// Written reports how many records have been durably committed
func (w *BatchWriter) Written() int {
	return w.written
}
