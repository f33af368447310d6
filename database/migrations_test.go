package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"photocatalog/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func schemaVersion(t *testing.T, db *gorm.DB) int {
	t.Helper()
	var version int
	row := db.Model(&schemaMigration{}).Select("COALESCE(MAX(version), 0)").Row()
	require.NoError(t, row.Scan(&version))
	return version
}

func TestMigrateFreshStore(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	m := db.Migrator()
	assert.True(t, m.HasTable(&models.Photo{}))
	assert.True(t, m.HasTable(&models.Place{}))
	assert.True(t, m.HasColumn(&models.Place{}, "Admin1Code"))
	assert.Equal(t, 2, schemaVersion(t, db))
}

func TestMigrateLegacyStore(t *testing.T) {
	db := openTestDB(t)

	// a store written before version tracking: locations exists but has no
	// admin code columns
	require.NoError(t, db.Exec(`CREATE TABLE locations (
		geonameid INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		asciiname TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		feature_class TEXT,
		feature_code TEXT,
		country_code TEXT
	)`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO locations (geonameid, name, asciiname, latitude, longitude, country_code)
		 VALUES (1, 'Cincinnati', 'Cincinnati', 39.10, -84.51, 'US')`,
	).Error)

	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasColumn(&models.Place{}, "Admin1Code"))
	assert.True(t, db.Migrator().HasColumn(&models.Place{}, "Admin2Code"))

	var place models.Place
	require.NoError(t, db.First(&place, "geonameid = ?", 1).Error)
	assert.Equal(t, "Cincinnati", place.Name)
	assert.Nil(t, place.Admin1Code)
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var count int64
	require.NoError(t, db.Model(&schemaMigration{}).Count(&count).Error)
	assert.Equal(t, int64(len(migrations)), count)
	assert.Equal(t, 2, schemaVersion(t, db))
}
