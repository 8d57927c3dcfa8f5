package migration_1

import (
	"fmt"

	"gorm.io/gorm"
)

const nameIndex = "idx_models_name"

func Migration(db *gorm.DB) error {
	if err := db.Exec(fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON models (name)", nameIndex)).Error; err != nil {
		return fmt.Errorf("error creating unique index on model name: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Exec(fmt.Sprintf("DROP INDEX IF EXISTS %s", nameIndex)).Error; err != nil {
		return fmt.Errorf("error dropping unique index on model name: %w", err)
	}

	return nil
}
