package models

// Place is one gazetteer entry in the 'locations' table, bulk-imported once
// from the tab-separated place dataset. Latitude and longitude are always
// present; rows missing either are rejected at import.
type Place struct {
	GeonameID int64  `gorm:"column:geonameid;primaryKey" json:"geonameid"`
	Name      string `json:"name"`
	ASCIIName string `gorm:"column:asciiname" json:"asciiname"`

	// indexed individually and as a pair to support bounding-box range queries
	Latitude  float64 `gorm:"not null;index:idx_locations_lat;index:idx_locations_lat_lon,priority:1" json:"latitude"`
	Longitude float64 `gorm:"not null;index:idx_locations_lon;index:idx_locations_lat_lon,priority:2" json:"longitude"`

	FeatureClass *string `json:"feature_class,omitempty"`
	FeatureCode  *string `json:"feature_code,omitempty"`
	CountryCode  *string `json:"country_code,omitempty"`
	Admin1Code   *string `json:"admin1_code,omitempty"`
	Admin2Code   *string `json:"admin2_code,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Place) TableName() string {
	return "locations"
}
