package models

// Photo status values. A failed record keeps its hash/mtime so the file is
// not re-read every run.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Photo represents one cataloged file in the 'photos' table. The path is the
// unique key: re-inserting a path replaces the record, it never duplicates.
// EXIF-derived fields are nullable and kept as strings in the exact form the
// source file carried them.
type Photo struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Filename string `gorm:"not null" json:"filename"`
	Path     string `gorm:"column:path;uniqueIndex;not null" json:"path"`

	DateTime     *string  `gorm:"column:datetime;index" json:"datetime,omitempty"`
	CameraModel  *string  `json:"camera_model,omitempty"`
	LensModel    *string  `json:"lens_model,omitempty"`
	ISO          *string  `gorm:"column:iso" json:"iso,omitempty"`
	FNumber      *string  `gorm:"column:fnumber" json:"fnumber,omitempty"`
	ExposureTime *string  `json:"exposure_time,omitempty"`
	FocalLength  *string  `json:"focal_length,omitempty"`
	Orientation  *string  `json:"orientation,omitempty"`
	GPSLat       *float64 `gorm:"column:gps_lat" json:"gps_lat,omitempty"`
	GPSLon       *float64 `gorm:"column:gps_lon" json:"gps_lon,omitempty"`
	Location     *string  `gorm:"index" json:"location,omitempty"`

	Status       string  `gorm:"not null;default:processed;index" json:"status"`
	FileHash     *string `json:"file_hash,omitempty"`
	FileMtime    *int64  `json:"file_mtime,omitempty"`
	ProcessedAt  int64   `gorm:"not null" json:"processed_at"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Photo) TableName() string {
	return "photos"
}

// FileState is the stored (mtime, hash) pair consulted when deciding whether
// a previously cataloged file needs re-extraction.
type FileState struct {
	Mtime *int64
	Hash  *string
}
