package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"photocatalog/models"
)

// schemaMigration is the version bookkeeping row for applied migrations.
type schemaMigration struct {
	Version   int    `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	AppliedAt int64  `gorm:"not null"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

type migration struct {
	version int
	name    string
	apply   func(tx *gorm.DB) error
}

// migrations are strictly additive: new nullable columns and indexes only,
// never drops or renames, so stores written by older versions stay readable.
// Step 1 also upgrades stores that predate version tracking, since
// AutoMigrate only adds what is missing.
var migrations = []migration{
	{
		version: 1,
		name:    "create catalog tables",
		apply: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Photo{}, &models.Place{})
		},
	},
	{
		version: 2,
		name:    "add gazetteer admin codes",
		apply: func(tx *gorm.DB) error {
			m := tx.Migrator()
			if !m.HasTable(&models.Place{}) {
				return nil
			}
			for _, field := range []string{"Admin1Code", "Admin2Code"} {
				if m.HasColumn(&models.Place{}, field) {
					continue
				}
				if err := m.AddColumn(&models.Place{}, field); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrate applies pending schema migrations in version order. Each step runs
// in its own transaction together with its bookkeeping row, so a failed step
// leaves the recorded version consistent with the actual schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("failed to prepare schema_migrations table: %w", err)
	}

	var current int
	row := db.Model(&schemaMigration{}).Select("COALESCE(MAX(version), 0)").Row()
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:   m.version,
				Name:      m.name,
				AppliedAt: time.Now().Unix(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("schema migration %d (%s) failed: %w", m.version, m.name, err)
		}
		log.Printf("applied schema migration %d: %s", m.version, m.name)
	}
	return nil
}
