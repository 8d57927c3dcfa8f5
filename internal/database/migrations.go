package database

import (
	"log"
	"recon-backend/internal/database/versions/migration_0"
	"recon-backend/internal/database/versions/migration_1"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID:      "0",
			Migrate: migration_0.Migration,
		},
		{
			ID:       "1",
			Migrate:  migration_1.Migration,
			Rollback: migration_1.Rollback,
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// Run by the migrator when no previous migration is recorded, the latest
		// schema is created directly instead of replaying every migration.

		log.Println("clean database detected, running full schema initialization")

		return txn.AutoMigrate(&StoredModel{})
	})

	return migrator
}
